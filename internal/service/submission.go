package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
)

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Registry core.JobRegistry      // Required: job registry
	Provider core.ResearchProvider // Required: research provider client
	Logger   *slog.Logger          // Optional: structured logger
}

// SubmissionService accepts generation requests and submits research jobs.
type SubmissionService struct {
	registry core.JobRegistry
	provider core.ResearchProvider
	logger   *slog.Logger
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("ResearchProvider is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "submission_service")
	}

	return &SubmissionService{
		registry: opts.Registry,
		provider: opts.Provider,
		logger:   logger,
	}, nil
}

// MustNewSubmissionService constructs a new SubmissionService and panics on error.
func MustNewSubmissionService(opts SubmissionServiceOptions) *SubmissionService {
	svc, err := NewSubmissionService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Submit validates the request, starts a background research job, and records
// it in the registry keyed by the provider handle. A provider failure leaves
// no record behind; a registry failure after submission is surfaced so the
// operator can reconcile the orphaned provider job.
func (s *SubmissionService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.ResearchJob, error) {
	if req == nil {
		return nil, apperrors.Validation("submit request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid submit request")
	}

	input := buildResearchInput(req)
	handle, err := s.provider.Submit(ctx, core.SubmitResearchParams{
		Input:       input,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		return nil, fmt.Errorf("submit research job: %w", err)
	}

	job := &model.ResearchJob{
		Handle:      handle,
		Context:     req.Snapshot(),
		State:       model.JobStateSubmitted,
		InputTokens: estimateTokens(input),
	}
	if err := s.registry.Create(ctx, job); err != nil {
		if errors.Is(err, data.ErrDuplicateHandle) {
			return nil, apperrors.Conflictf("job handle %q already registered", handle)
		}
		return nil, fmt.Errorf("record research job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "research job recorded",
			"handle", job.Handle,
			"company_id", req.CompanyID,
			"company", req.CompanyName,
			"input_tokens", job.InputTokens,
		)
	}
	return job, nil
}

// Status returns the current lifecycle view of a job, read straight from the
// registry. Never served from a cache.
func (s *SubmissionService) Status(ctx context.Context, handle string) (*model.JobStatusResponse, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, apperrors.Validation("job handle is required")
	}
	job, err := s.registry.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, apperrors.NotFound("job not found")
		}
		return nil, fmt.Errorf("get job status: %w", err)
	}
	return &model.JobStatusResponse{
		Handle:        job.Handle,
		CompanyName:   job.Context.CompanyName,
		State:         job.State,
		SubmittedAt:   job.CreatedAt,
		ResultRef:     job.ResultRef,
		FailureReason: job.FailureReason,
	}, nil
}

// buildResearchInput renders the research prompt from the submission snapshot.
func buildResearchInput(req *model.SubmitRequest) string {
	var b strings.Builder
	b.WriteString("Produce a go-to-market research report for the company below.\n\n")
	b.WriteString("Company: ")
	b.WriteString(req.CompanyName)
	b.WriteString("\nCRM record id: ")
	b.WriteString(req.CompanyID)
	b.WriteString("\nStage entered at: ")
	b.WriteString(req.StageTS.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString("\n")

	if len(req.Enrichment) > 0 {
		if pretty := indentJSON(req.Enrichment); pretty != "" {
			b.WriteString("\nEnrichment data:\n")
			b.WriteString(pretty)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRespond with a JSON object holding a \"title\" string and a " +
		"\"sections\" array of {\"heading\", \"body\"} objects.\n")
	return b.String()
}

func indentJSON(raw json.RawMessage) string {
	var buf strings.Builder
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}

// estimateTokens is a coarse length heuristic, roughly four characters per
// token. Good enough for accounting, not for billing.
func estimateTokens(text string) int {
	return len(text) / 4
}
