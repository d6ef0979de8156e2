package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/yoyaba/gtm-docgen/config"
	"github.com/yoyaba/gtm-docgen/internal/core"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Registry core.JobRegistry      // Required: job registry
	Store    core.IdempotencyStore // Required: execution store
	Config   config.SweeperConfig  // Required: sweeper configuration
	Logger   *slog.Logger          // Optional: structured logger
}

// SweeperService expires jobs whose webhook never arrived and purges
// execution records past retention. A webhook landing after expiry is
// acknowledged by the ingestion path as a duplicate; expiry is terminal.
type SweeperService struct {
	registry core.JobRegistry
	store    core.IdempotencyStore
	config   config.SweeperConfig
	logger   *slog.Logger
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("IdempotencyStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
		logger.Debug("SweeperService initialized",
			"interval", opts.Config.Interval,
			"horizon", opts.Config.Horizon,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &SweeperService{
		registry: opts.Registry,
		store:    opts.Store,
		config:   opts.Config,
		logger:   logger,
	}, nil
}

// MustNewSweeperService constructs a new SweeperService and panics on error.
func MustNewSweeperService(opts SweeperServiceOptions) *SweeperService {
	svc, err := NewSweeperService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)
	}

	// Jitter prevents a thundering herd when several instances start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exposed for tests and for one-shot admin use.
func (s *SweeperService) Sweep(ctx context.Context) (expired, purged int64) {
	return s.sweep(ctx)
}

func (s *SweeperService) sweep(ctx context.Context) (int64, int64) {
	expired, err := s.registry.ExpireStale(ctx, core.ExpireStaleParams{
		Horizon:   s.config.Horizon,
		BatchSize: s.config.BatchSize,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "expire stale jobs failed", "error", err)
	}

	purged, err := s.store.PurgeExpired(ctx, s.config.BatchSize)
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "purge execution records failed", "error", err)
	}

	if s.logger != nil && (expired > 0 || purged > 0) {
		s.logger.InfoContext(ctx, "sweep pass finished",
			"jobs_expired", expired,
			"executions_purged", purged,
		)
	}
	return expired, purged
}

// waitWithJitter delays up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
