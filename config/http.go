package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the public base URL of the application. The provider's
	// webhook callback URL is derived from it.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}
