package core

import (
	"context"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

// This file contains the port definitions (hexagonal architecture) between the
// service layer and the data layer / outbound collaborators. Services depend
// on these interfaces, never on concrete implementations.

// TransitionParams groups parameters for JobRegistry.Transition to keep param count ≤3.
type TransitionParams struct {
	Handle        string
	To            model.JobState
	ResultRef     *string
	FailureReason *string
	OutputTokens  *int
}

// ExpireStaleParams groups parameters for the expiry sweep.
type ExpireStaleParams struct {
	Horizon   time.Duration
	BatchSize int
}

// JobRegistry defines the interface for research job records. The registry is
// the single owner of job state; all transitions go through Transition.
type JobRegistry interface {
	Create(ctx context.Context, job *model.ResearchJob) error
	GetByHandle(ctx context.Context, handle string) (*model.ResearchJob, error)
	// Transition moves a job from submitted to the given terminal state.
	// Returns false when the job was not in submitted, meaning another
	// delivery or the sweeper won the race. Never an error on a lost race.
	Transition(ctx context.Context, params TransitionParams) (bool, error)
	// RecordResult attaches the artifact reference to an already completed
	// job. The completed transition happens before the effect runs, so the
	// ref lands in a second write.
	RecordResult(ctx context.Context, handle, resultRef string) error
	// ExpireStale marks submitted jobs older than the horizon as expired.
	// Processes up to BatchSize jobs per call to prevent long locks.
	// Returns the number of jobs expired.
	ExpireStale(ctx context.Context, params ExpireStaleParams) (int64, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// BeginOutcome classifies the result of claiming a dedupe key.
type BeginOutcome string

const (
	// BeginStarted means this caller now owns the execution.
	BeginStarted BeginOutcome = "started"
	// BeginAlreadySucceeded means a previous execution finished; Record carries the result ref.
	BeginAlreadySucceeded BeginOutcome = "already_succeeded"
	// BeginInProgress means another execution currently holds the key.
	BeginInProgress BeginOutcome = "in_progress"
	// BeginRetryAfterFailure means a previous execution failed and this caller took over the key.
	BeginRetryAfterFailure BeginOutcome = "retry_after_failure"
)

// BeginResult is the outcome of IdempotencyStore.Begin plus the stored record.
type BeginResult struct {
	Outcome BeginOutcome
	Record  *model.IdempotencyRecord
}

// IdempotencyStore guards side-effect executions keyed by dedupe key.
// Records live at least as long as the provider's redelivery window.
type IdempotencyStore interface {
	// Begin claims the key. Exactly one concurrent caller observes
	// BeginStarted; the rest observe the current state of the record.
	// An in_progress record older than staleAfter is taken over.
	Begin(ctx context.Context, key string, staleAfter time.Duration) (*BeginResult, error)
	MarkSucceeded(ctx context.Context, key, resultRef string) error
	MarkFailed(ctx context.Context, key, errMsg string) error
	// PurgeExpired removes records past their retention window.
	PurgeExpired(ctx context.Context, batchSize int) (int64, error)
}

// ReplayCache flags webhook event ids that were delivered before. Advisory
// only; the registry's terminal-state check decides what is a duplicate, so
// loss of the cache is harmless.
type ReplayCache interface {
	// Claim records the event id if unseen. Returns true when this caller
	// claimed it, false when the id was already seen.
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
}

// SubmitResearchParams groups parameters for ResearchProvider.Submit.
type SubmitResearchParams struct {
	Input       string
	CompanyName string
}

// ResearchResult is the provider's completed response, re-fetched by handle.
type ResearchResult struct {
	Handle     string
	Status     string
	OutputText string
	Error      *string
}

// ResearchProvider defines the outbound interface to the deep-research provider.
type ResearchProvider interface {
	// Submit starts a background research job and returns the provider handle.
	Submit(ctx context.Context, params SubmitResearchParams) (string, error)
	// Fetch retrieves the full response for a handle. The webhook payload is
	// only a pointer; the result is always re-fetched.
	Fetch(ctx context.Context, handle string) (*ResearchResult, error)
}

// CreateDocumentRequest carries the composed document plus the dedupe key so
// the collaborator can apply its own request-level dedupe.
type CreateDocumentRequest struct {
	Title      string
	Sections   []model.DocumentSection
	RequestKey string
}

// CreatedDocument identifies the artifact produced by DocumentCreator.
type CreatedDocument struct {
	DocumentID string
	URL        string
	RevisionID string
}

// DocumentCreator defines the outbound interface to the document collaborator.
type DocumentCreator interface {
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*CreatedDocument, error)
}

// DealUpdateParams groups parameters for CRMClient.UpdateDealStatus.
type DealUpdateParams struct {
	CompanyID   string
	Status      string
	DocumentURL string
	CompletedAt time.Time
}

// CRMClient defines the outbound interface for deal writeback after a
// document is created. Failures are logged, never fatal to the pipeline.
type CRMClient interface {
	UpdateDealStatus(ctx context.Context, params DealUpdateParams) error
}
