// Package model defines the core data types for the research document pipeline.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobState represents the lifecycle state of a research job.
type JobState string

const (
	// JobStateSubmitted indicates the job was accepted by the provider and is running.
	JobStateSubmitted JobState = "submitted"
	// JobStateCompleted indicates the provider finished and the completion was recorded.
	JobStateCompleted JobState = "completed"
	// JobStateFailed indicates the provider reported a terminal failure.
	JobStateFailed JobState = "failed"
	// JobStateExpired indicates no webhook arrived within the validity horizon.
	JobStateExpired JobState = "expired"
)

// Valid returns true if the JobState is one of the known states.
func (s JobState) Valid() bool {
	return s == JobStateSubmitted || s == JobStateCompleted ||
		s == JobStateFailed || s == JobStateExpired
}

// Terminal returns true if no further transition is permitted out of the state.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateExpired
}

// ErrJobNotFound is returned when a job handle is not known to the registry.
var ErrJobNotFound = errors.New("research job not found")

// SubmissionContext is the immutable snapshot recorded at submission time.
// It must be sufficient to act on completion without further lookups.
type SubmissionContext struct {
	CompanyID   string          `json:"company_id"   db:"company_id"`
	CompanyName string          `json:"company_name" db:"company_name"`
	StageTS     time.Time       `json:"stage_ts"     db:"stage_ts"`
	Enrichment  json.RawMessage `json:"enrichment"   db:"enrichment"`
}

// ResearchJob represents one submitted long-running research request.
// The provider-issued handle is the primary key; state transitions are
// monotonic and owned exclusively by the job registry.
type ResearchJob struct {
	Handle           string            `json:"handle"                   db:"job_handle"`
	Context          SubmissionContext `json:"context"`
	State            JobState          `json:"state"                    db:"state"`
	ResultRef        *string           `json:"result_ref,omitempty"     db:"result_ref"`
	FailureReason    *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	InputTokens      int               `json:"input_tokens"             db:"input_tokens"`
	OutputTokens     *int              `json:"output_tokens,omitempty"  db:"output_tokens"`
	CreatedAt        time.Time         `json:"created_at"               db:"created_at"`
	LastTransitionAt time.Time         `json:"last_transition_at"       db:"last_transition_at"`
}

// SubmitRequest represents a request to generate a research document for a company.
type SubmitRequest struct {
	CompanyID   string          `json:"companyId"`
	CompanyName string          `json:"companyName"`
	StageTS     time.Time       `json:"stageTimestamp"`
	Enrichment  json.RawMessage `json:"enrichedData,omitempty"`
}

// Validate validates the SubmitRequest fields.
func (r *SubmitRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) == "" {
		return errors.New("company id is required")
	}
	if strings.TrimSpace(r.CompanyName) == "" {
		return errors.New("company name is required")
	}
	if r.StageTS.IsZero() {
		return errors.New("stage timestamp is required")
	}
	if len(r.Enrichment) > 0 && !json.Valid(r.Enrichment) {
		return fmt.Errorf("enriched data must be valid JSON")
	}
	return nil
}

// Snapshot converts the request into the immutable submission context stored
// alongside the job record.
func (r *SubmitRequest) Snapshot() SubmissionContext {
	return SubmissionContext{
		CompanyID:   r.CompanyID,
		CompanyName: r.CompanyName,
		StageTS:     r.StageTS.UTC(),
		Enrichment:  r.Enrichment,
	}
}

// JobStatusResponse represents the status information for a specific job,
// as exposed by the job-status query.
type JobStatusResponse struct {
	Handle        string    `json:"handle"`
	CompanyName   string    `json:"company_name"`
	State         JobState  `json:"state"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ResultRef     *string   `json:"result_ref,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
}

// JobStats represents counts of jobs in each lifecycle state.
type JobStats struct {
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
}
