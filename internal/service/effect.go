package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
)

// defaultStaleAfter is the lease on an in_progress execution. A record older
// than this belongs to a crashed run and may be taken over.
const defaultStaleAfter = 10 * time.Minute

// EffectResult reports what the executor did for a completion.
type EffectResult struct {
	// ResultRef identifies the document, whether created now or previously.
	ResultRef string
	// Deduplicated is true when the document already existed and no side
	// effect ran.
	Deduplicated bool
}

// EffectExecutorOptions groups dependencies for EffectExecutor.
type EffectExecutorOptions struct {
	Store    core.IdempotencyStore // Required: execution guard
	Docs     core.DocumentCreator  // Required: document collaborator
	Composer *Composer             // Required: document composer
	CRM      core.CRMClient        // Optional: deal writeback after success
	Logger   *slog.Logger          // Optional: structured logger
	Time     data.TimeProvider     // Optional: clock for writeback timestamps
	// StaleAfter overrides the in_progress takeover lease. Zero means 10m.
	StaleAfter time.Duration
}

// EffectExecutor creates the research document for a completed job exactly
// once per dedupe key. All concurrency and redelivery safety lives in the
// idempotency store; the executor itself is stateless.
type EffectExecutor struct {
	store        core.IdempotencyStore
	docs         core.DocumentCreator
	composer     *Composer
	crm          core.CRMClient
	logger       *slog.Logger
	timeProvider data.TimeProvider
	staleAfter   time.Duration
}

// NewEffectExecutor constructs a new EffectExecutor.
func NewEffectExecutor(opts EffectExecutorOptions) (*EffectExecutor, error) {
	if opts.Store == nil {
		return nil, errors.New("IdempotencyStore is required")
	}
	if opts.Docs == nil {
		return nil, errors.New("DocumentCreator is required")
	}
	if opts.Composer == nil {
		return nil, errors.New("Composer is required")
	}

	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	timeProvider := opts.Time
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "effect_executor")
	}

	return &EffectExecutor{
		store:        opts.Store,
		docs:         opts.Docs,
		composer:     opts.Composer,
		crm:          opts.CRM,
		logger:       logger,
		timeProvider: timeProvider,
		staleAfter:   staleAfter,
	}, nil
}

// MustNewEffectExecutor constructs a new EffectExecutor and panics on error.
func MustNewEffectExecutor(opts EffectExecutorOptions) *EffectExecutor {
	e, err := NewEffectExecutor(opts)
	if err != nil {
		panic(err)
	}
	return e
}

// Execute runs the document-creation effect for a completed job. Calling it
// any number of times with the same job yields the same result ref and at
// most one created document.
func (e *EffectExecutor) Execute(ctx context.Context, job *model.ResearchJob, outputText string) (*EffectResult, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	key := model.EffectDedupeKey(job.Handle)

	begin, err := e.store.Begin(ctx, key, e.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("claim effect execution: %w", err)
	}

	switch begin.Outcome {
	case core.BeginAlreadySucceeded:
		ref := ""
		if begin.Record != nil && begin.Record.ResultRef != nil {
			ref = *begin.Record.ResultRef
		}
		if e.logger != nil {
			e.logger.InfoContext(ctx, "effect already executed",
				"handle", job.Handle,
				"result_ref", ref,
			)
		}
		return &EffectResult{ResultRef: ref, Deduplicated: true}, nil

	case core.BeginInProgress:
		return nil, apperrors.Conflictf("effect execution for %q already in progress", job.Handle)

	case core.BeginStarted, core.BeginRetryAfterFailure:
		return e.run(ctx, job, outputText)

	default:
		return nil, fmt.Errorf("unexpected begin outcome: %s", begin.Outcome)
	}
}

// run performs the side effect while holding the dedupe key.
func (e *EffectExecutor) run(ctx context.Context, job *model.ResearchJob, outputText string) (*EffectResult, error) {
	key := model.EffectDedupeKey(job.Handle)

	doc, err := e.composer.Compose(job, outputText)
	if err != nil {
		e.markFailed(ctx, key, err)
		return nil, apperrors.EffectFailed(err, "compose document")
	}

	created, err := e.docs.CreateDocument(ctx, core.CreateDocumentRequest{
		Title:      doc.Title,
		Sections:   doc.Sections,
		RequestKey: key,
	})
	if err != nil {
		e.markFailed(ctx, key, err)
		return nil, apperrors.EffectFailed(err, "create document")
	}

	ref := created.URL
	if ref == "" {
		ref = created.DocumentID
	}
	if err := e.store.MarkSucceeded(ctx, key, ref); err != nil {
		// The document exists but the guard record still says in_progress.
		// A later retry observes the stale lease, takes over, and the
		// collaborator dedupes on the request key.
		return nil, fmt.Errorf("mark effect succeeded: %w", err)
	}

	if e.logger != nil {
		e.logger.InfoContext(ctx, "document created",
			"handle", job.Handle,
			"result_ref", ref,
		)
	}

	e.writeBackCRM(ctx, job, ref)
	return &EffectResult{ResultRef: ref}, nil
}

func (e *EffectExecutor) markFailed(ctx context.Context, key string, cause error) {
	if err := e.store.MarkFailed(ctx, key, cause.Error()); err != nil && e.logger != nil {
		e.logger.ErrorContext(ctx, "mark effect failed",
			"dedupe_key", key,
			"error", err,
		)
	}
}

// writeBackCRM updates the deal record after a successful document creation.
// Best effort: a CRM failure never fails the effect.
func (e *EffectExecutor) writeBackCRM(ctx context.Context, job *model.ResearchJob, docRef string) {
	if e.crm == nil {
		return
	}
	err := e.crm.UpdateDealStatus(ctx, core.DealUpdateParams{
		CompanyID:   job.Context.CompanyID,
		Status:      "completed",
		DocumentURL: docRef,
		CompletedAt: e.timeProvider.Now().UTC(),
	})
	if err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "crm writeback failed",
			"handle", job.Handle,
			"company_id", job.Context.CompanyID,
			"error", err,
		)
	}
}
