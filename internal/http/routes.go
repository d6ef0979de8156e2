package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Submission *service.SubmissionService
	Ingest     *service.IngestService
	DB         *sql.DB           // Optional: health check
	Replay     core.ReplayCache  // Optional: health check
	Registry   core.JobRegistry  // Optional: health check job counts
	Logger     *slog.Logger      // Optional: request logging
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	generateHandlers := &GenerateHandlers{Svc: services.Submission}
	webhookHandlers := &WebhookHandlers{Svc: services.Ingest}
	healthHandlers := &HealthHandlers{
		DB:       services.DB,
		Replay:   services.Replay,
		Registry: services.Registry,
	}

	mux.HandleFunc("POST /generate", generateHandlers.Generate)
	mux.HandleFunc("POST /webhook/research", webhookHandlers.Receive)
	mux.HandleFunc("GET /jobs/{handle}/status", generateHandlers.JobStatus)
	mux.HandleFunc("GET /healthz", healthHandlers.Health)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Health)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Recover(logger)(Logging(logger)(mux))
}
