package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/yoyaba/gtm-docgen/internal/service"
)

// maxWebhookBodyBytes bounds inbound webhook payloads.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers provides the HTTP handler for provider webhook deliveries.
type WebhookHandlers struct {
	Svc *service.IngestService
}

// Receive handles one provider delivery. The raw body is read in full before
// anything else because the signature covers the exact bytes on the wire.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "read_failed", Err: err})
		return
	}
	if len(body) > maxWebhookBodyBytes {
		WriteError(w, ErrorParams{
			Code:    http.StatusRequestEntityTooLarge,
			ErrCode: "payload_too_large",
			Err:     errors.New("webhook payload exceeds limit"),
		})
		return
	}

	ack, err := h.Svc.Handle(r.Context(), r.Header, body)
	if err != nil {
		// Storage or provider trouble: a 5xx makes the provider redeliver.
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "ingest_failed", Err: err})
		return
	}

	WriteJSON(w, ack.HTTPStatus, map[string]string{
		"outcome":  string(ack.Outcome),
		"event_id": ack.EventID,
	})
}
