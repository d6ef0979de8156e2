package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType represents a provider webhook event type.
type EventType string

const (
	// EventResponseCompleted signals a research response finished successfully.
	EventResponseCompleted EventType = "response.completed"
	// EventResponseFailed signals a research response failed on the provider side.
	EventResponseFailed EventType = "response.failed"
	// EventResponseCancelled signals a research response was cancelled.
	EventResponseCancelled EventType = "response.cancelled"
)

// Known returns true if the event type is one this system acts on.
// Unrecognized types are acknowledged and ignored for forward compatibility.
func (t EventType) Known() bool {
	return t == EventResponseCompleted || t == EventResponseFailed || t == EventResponseCancelled
}

// WebhookEvent is one inbound provider callback, parsed after signature
// verification succeeded. The body is a minimal pointer: the full result is
// always re-fetched by handle rather than trusted from the payload.
type WebhookEvent struct {
	EventID   string    `json:"id"`
	Type      EventType `json:"type"`
	CreatedAt int64     `json:"created_at"`
	Data      struct {
		ID string `json:"id"`
	} `json:"data"`

	// ReceivedAt and SignatureTS are populated by the ingestion pipeline,
	// not from the payload.
	ReceivedAt  time.Time `json:"-"`
	SignatureTS time.Time `json:"-"`
}

// JobHandle returns the provider job handle the event references.
func (e *WebhookEvent) JobHandle() string {
	return strings.TrimSpace(e.Data.ID)
}

// ParseWebhookEvent decodes a verified webhook payload.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if strings.TrimSpace(event.EventID) == "" {
		return nil, errors.New("webhook event id is required")
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return nil, errors.New("webhook event type is required")
	}
	return &event, nil
}
