package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[ServiceMode]bool
		wantErr bool
	}{
		{
			name:  "both services",
			input: "http,sweeper",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:  "http only",
			input: "http",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:  "whitespace tolerated",
			input: " http , sweeper ",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only commas",
			input:   ",,",
			wantErr: true,
		},
		{
			name:    "unknown service",
			input:   "http,scheduler",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppConfigServiceToggles(t *testing.T) {
	cfg := AppConfig{Services: "http"}
	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.False(t, cfg.IsSweeperEnabled())

	cfg.Services = "sweeper"
	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsSweeperEnabled())

	cfg.Services = "bogus"
	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.False(t, cfg.IsSweeperEnabled())
}

func TestSanitizeClamps(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		p := ProviderConfig{MaxAttempts: 0, BackoffBase: -time.Second}
		p.Sanitize()
		assert.Equal(t, 1, p.MaxAttempts)
		assert.Equal(t, 2*time.Second, p.BackoffBase)
		assert.Equal(t, 60*time.Second, p.RequestTimeout)
		assert.Equal(t, 10*time.Minute, p.EffectStaleAfter)

		p.MaxAttempts = 50
		p.Sanitize()
		assert.Equal(t, 10, p.MaxAttempts)
	})

	t.Run("sweeper", func(t *testing.T) {
		s := SweeperConfig{Interval: time.Second, BatchSize: 5000}
		s.Sanitize()
		assert.Equal(t, time.Minute, s.Interval)
		assert.Equal(t, 1000, s.BatchSize)
		assert.Equal(t, 24*time.Hour, s.Horizon)
		assert.Equal(t, 72*time.Hour, s.Retention)
	})

	t.Run("webhook", func(t *testing.T) {
		w := WebhookConfig{}
		w.Sanitize()
		assert.Equal(t, 5*time.Minute, w.Tolerance)
		assert.Equal(t, 24*time.Hour, w.ReplayTTL)
	})
}
