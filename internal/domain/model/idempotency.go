package model

import "time"

// ExecutionStatus represents the status of one guarded effect execution.
type ExecutionStatus string

const (
	// ExecutionInProgress indicates an execution holds the dedupe key.
	ExecutionInProgress ExecutionStatus = "in_progress"
	// ExecutionSucceeded indicates the effect completed; the result ref is stored.
	ExecutionSucceeded ExecutionStatus = "succeeded"
	// ExecutionFailed indicates the effect failed and may be retried.
	ExecutionFailed ExecutionStatus = "failed"
)

// Valid returns true if the ExecutionStatus is one of the known statuses.
func (s ExecutionStatus) Valid() bool {
	return s == ExecutionInProgress || s == ExecutionSucceeded || s == ExecutionFailed
}

// IdempotencyRecord guards execution of the document-creation effect.
// Records are retained for the provider's full retry window and never
// deleted while a redelivery could still arrive.
type IdempotencyRecord struct {
	DedupeKey  string          `json:"dedupe_key"            db:"dedupe_key"`
	Status     ExecutionStatus `json:"status"                db:"status"`
	ResultRef  *string         `json:"result_ref,omitempty"  db:"result_ref"`
	LastError  *string         `json:"last_error,omitempty"  db:"last_error"`
	StartedAt  time.Time       `json:"started_at"            db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	ExpiresAt  time.Time       `json:"expires_at"            db:"expires_at"`
}

// EffectDedupeKey derives the dedupe key for a job's document-creation effect.
// It is keyed on the job handle, not the webhook event id, because the
// provider may redeliver the same completion under a fresh event id.
func EffectDedupeKey(jobHandle string) string {
	return "doc:" + jobHandle
}
