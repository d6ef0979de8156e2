// Package httpx provides HTTP handlers for the research document pipeline API.
package httpx

import (
	"net/http"

	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
	"github.com/yoyaba/gtm-docgen/internal/service"
)

// GenerateHandlers provides HTTP handlers for document generation triggers.
type GenerateHandlers struct {
	Svc *service.SubmissionService
}

// Generate handles HTTP requests to start a research document generation.
func (h *GenerateHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), &req)
	if err != nil {
		writeAppError(w, err, "submit_failed")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"handle":       job.Handle,
		"state":        job.State,
		"submitted_at": job.CreatedAt,
	})
}

// JobStatus handles HTTP requests for a job's lifecycle state.
func (h *GenerateHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")

	status, err := h.Svc.Status(r.Context(), handle)
	if err != nil {
		writeAppError(w, err, "status_failed")
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// writeAppError maps the error taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error, fallback string) {
	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodeValidation:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: string(code), Err: err})
	case apperrors.ErrCodeNotFound:
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: string(code), Err: err})
	case apperrors.ErrCodeConflict:
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: string(code), Err: err})
	case apperrors.ErrCodeTransientProvider:
		WriteError(w, ErrorParams{Code: http.StatusBadGateway, ErrCode: string(code), Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: fallback, Err: err})
	}
}
