package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	"github.com/yoyaba/gtm-docgen/internal/webhook"
)

// defaultReplayTTL is how long webhook event ids are remembered in the fast
// path cache. Covers the provider's documented redelivery window.
const defaultReplayTTL = 24 * time.Hour

// SignatureVerifier is the ingestion gate. Satisfied by webhook.Verifier.
type SignatureVerifier interface {
	Verify(headers http.Header, body []byte) (*webhook.Verified, error)
}

// IngestOutcome classifies how a delivery was handled.
type IngestOutcome string

const (
	// OutcomeRejected means signature verification failed.
	OutcomeRejected IngestOutcome = "rejected"
	// OutcomeMalformed means the signed payload could not be parsed.
	OutcomeMalformed IngestOutcome = "malformed"
	// OutcomeUnknownType means the event type is not one this system acts on.
	OutcomeUnknownType IngestOutcome = "unknown_type"
	// OutcomeUnknownJob means no registered job matches the handle.
	OutcomeUnknownJob IngestOutcome = "unknown_job"
	// OutcomeDuplicate means the job already reached a terminal state.
	OutcomeDuplicate IngestOutcome = "duplicate"
	// OutcomeCompleted means the completion was recorded and the document created.
	OutcomeCompleted IngestOutcome = "completed"
	// OutcomeFailureRecorded means a failure or cancellation was recorded.
	OutcomeFailureRecorded IngestOutcome = "failure_recorded"
	// OutcomeEffectPending means the completion was recorded but the document
	// effect did not finish; it stays claimable for retry.
	OutcomeEffectPending IngestOutcome = "effect_pending"
)

// IngestAck is the response contract for one delivery. Any HTTPStatus below
// 500 acknowledges the delivery; 5xx asks the provider to redeliver.
type IngestAck struct {
	HTTPStatus int
	Outcome    IngestOutcome
	EventID    string
	Handle     string
	ResultRef  string
}

// IngestServiceOptions groups dependencies for IngestService.
type IngestServiceOptions struct {
	Verifier SignatureVerifier     // Required: signature gate
	Registry core.JobRegistry      // Required: job registry
	Provider core.ResearchProvider // Required: result re-fetch
	Effects  *EffectExecutor       // Required: document effect
	Replay   core.ReplayCache      // Optional: event-id replay detection
	Logger   *slog.Logger          // Optional: structured logger
	// ReplayTTL overrides how long event ids are remembered. Zero means 24h.
	ReplayTTL time.Duration
}

// IngestService processes provider webhook deliveries. Deliveries are
// at-least-once and unordered; every path through Handle is safe to repeat.
type IngestService struct {
	verifier  SignatureVerifier
	registry  core.JobRegistry
	provider  core.ResearchProvider
	effects   *EffectExecutor
	replay    core.ReplayCache
	logger    *slog.Logger
	replayTTL time.Duration
}

// NewIngestService constructs a new IngestService.
func NewIngestService(opts IngestServiceOptions) (*IngestService, error) {
	if opts.Verifier == nil {
		return nil, errors.New("SignatureVerifier is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("ResearchProvider is required")
	}
	if opts.Effects == nil {
		return nil, errors.New("EffectExecutor is required")
	}

	replayTTL := opts.ReplayTTL
	if replayTTL <= 0 {
		replayTTL = defaultReplayTTL
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "ingest_service")
	}

	return &IngestService{
		verifier:  opts.Verifier,
		registry:  opts.Registry,
		provider:  opts.Provider,
		effects:   opts.Effects,
		replay:    opts.Replay,
		logger:    logger,
		replayTTL: replayTTL,
	}, nil
}

// MustNewIngestService constructs a new IngestService and panics on error.
func MustNewIngestService(opts IngestServiceOptions) *IngestService {
	svc, err := NewIngestService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Handle processes one raw delivery. The returned error is reserved for
// storage or provider failures where a 5xx should make the provider retry;
// every business outcome, including rejection, comes back as an ack.
func (s *IngestService) Handle(ctx context.Context, headers http.Header, body []byte) (*IngestAck, error) {
	verified, err := s.verifier.Verify(headers, body)
	if err != nil {
		var rej *webhook.RejectionError
		if errors.As(err, &rej) {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "webhook rejected", "reason", rej.Reason)
			}
			return &IngestAck{HTTPStatus: http.StatusUnauthorized, Outcome: OutcomeRejected}, nil
		}
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	event, err := model.ParseWebhookEvent(body)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook payload malformed",
				"event_id", verified.EventID,
				"error", err,
			)
		}
		return &IngestAck{
			HTTPStatus: http.StatusBadRequest,
			Outcome:    OutcomeMalformed,
			EventID:    verified.EventID,
		}, nil
	}
	event.SignatureTS = verified.Timestamp

	if !event.Type.Known() {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "ignoring unknown event type",
				"event_id", event.EventID,
				"type", event.Type,
			)
		}
		return s.ack(event, OutcomeUnknownType), nil
	}

	replayed := s.recordEventID(ctx, event)

	job, err := s.registry.GetByHandle(ctx, event.JobHandle())
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "webhook for unknown job",
					"event_id", event.EventID,
					"handle", event.JobHandle(),
				)
			}
			return s.ack(event, OutcomeUnknownJob), nil
		}
		return nil, fmt.Errorf("lookup job: %w", err)
	}

	if job.State.Terminal() {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "duplicate delivery for terminal job",
				"event_id", event.EventID,
				"handle", job.Handle,
				"state", job.State,
			)
		}
		return s.ack(event, OutcomeDuplicate), nil
	}

	// A seen id with a live job means an earlier attempt did not finish,
	// usually because we answered 5xx and the provider redelivered. Process it.
	if replayed && s.logger != nil {
		s.logger.InfoContext(ctx, "reprocessing replayed event id for live job",
			"event_id", event.EventID,
			"handle", job.Handle,
		)
	}

	if event.Type == model.EventResponseCompleted {
		return s.handleCompleted(ctx, event, job)
	}
	return s.handleFailed(ctx, event, job)
}

// recordEventID remembers the event id and reports whether it was seen before.
// The cache never acknowledges a delivery on its own: an id claimed by an
// attempt that later failed must still be reprocessed when the provider
// redelivers it, so only the registry's terminal-state check declares a
// duplicate. A cache error degrades to a miss.
func (s *IngestService) recordEventID(ctx context.Context, event *model.WebhookEvent) bool {
	if s.replay == nil {
		return false
	}
	claimed, err := s.replay.Claim(ctx, event.EventID, s.replayTTL)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "replay cache unavailable, continuing",
				"event_id", event.EventID,
				"error", err,
			)
		}
		return false
	}
	return !claimed
}

// handleCompleted re-fetches the result, records the transition, and runs the
// document effect. The webhook body is only a pointer; the payload that feeds
// the document always comes from the provider directly.
func (s *IngestService) handleCompleted(
	ctx context.Context,
	event *model.WebhookEvent,
	job *model.ResearchJob,
) (*IngestAck, error) {
	result, err := s.provider.Fetch(ctx, job.Handle)
	if err != nil {
		// Nothing recorded yet, so a 5xx here buys a clean redelivery.
		return nil, fmt.Errorf("fetch research result: %w", err)
	}

	outputTokens := estimateTokens(result.OutputText)
	won, err := s.registry.Transition(ctx, core.TransitionParams{
		Handle:       job.Handle,
		To:           model.JobStateCompleted,
		OutputTokens: &outputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	if !won {
		// Another delivery or the sweeper got there first. Re-read so the
		// log shows what actually happened, then ack.
		current, readErr := s.registry.GetByHandle(ctx, job.Handle)
		if readErr == nil && s.logger != nil {
			s.logger.InfoContext(ctx, "lost completion race",
				"event_id", event.EventID,
				"handle", job.Handle,
				"state", current.State,
			)
		}
		return s.ack(event, OutcomeDuplicate), nil
	}

	effect, err := s.effects.Execute(ctx, job, result.OutputText)
	if err != nil {
		// The completion is already durable. The execution record holds the
		// failure; acknowledging stops the provider from resubmitting
		// research that already finished.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "document effect failed",
				"event_id", event.EventID,
				"handle", job.Handle,
				"error", err,
			)
		}
		return s.ack(event, OutcomeEffectPending), nil
	}

	if effect.ResultRef != "" {
		if err := s.registry.RecordResult(ctx, job.Handle, effect.ResultRef); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "record result ref failed",
				"handle", job.Handle,
				"result_ref", effect.ResultRef,
				"error", err,
			)
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "completion processed",
			"event_id", event.EventID,
			"handle", job.Handle,
			"result_ref", effect.ResultRef,
			"deduplicated", effect.Deduplicated,
			"output_tokens", outputTokens,
		)
	}
	ack := s.ack(event, OutcomeCompleted)
	ack.ResultRef = effect.ResultRef
	return ack, nil
}

// handleFailed records a provider-side failure or cancellation.
func (s *IngestService) handleFailed(
	ctx context.Context,
	event *model.WebhookEvent,
	job *model.ResearchJob,
) (*IngestAck, error) {
	reason := "provider reported " + string(event.Type)
	won, err := s.registry.Transition(ctx, core.TransitionParams{
		Handle:        job.Handle,
		To:            model.JobStateFailed,
		FailureReason: &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	if !won {
		return s.ack(event, OutcomeDuplicate), nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "failure recorded",
			"event_id", event.EventID,
			"handle", job.Handle,
			"reason", reason,
		)
	}
	return s.ack(event, OutcomeFailureRecorded), nil
}

func (s *IngestService) ack(event *model.WebhookEvent, outcome IngestOutcome) *IngestAck {
	return &IngestAck{
		HTTPStatus: http.StatusOK,
		Outcome:    outcome,
		EventID:    event.EventID,
		Handle:     event.JobHandle(),
	}
}
