package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

const researchOutput = `{"title":"Acme GTM Plan","sections":[{"heading":"Overview","body":"Acme builds robots."}]}`

func completionBody(eventID, handle string) []byte {
	return fmt.Appendf(nil,
		`{"id":%q,"type":"response.completed","created_at":1748779200,"data":{"id":%q}}`,
		eventID, handle,
	)
}

func postWebhook(f *routerFixture, headers http.Header, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/research", bytes.NewReader(body))
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// TestWebhookEndToEnd drives the full pipeline through the router: submit a
// generation, deliver the signed completion webhook twice, and read the final
// status. The redelivery must not create a second document.
func TestWebhookEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newRouterFixture(t, ctrl)
	f.provider.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("resp_abc123", nil)
	f.provider.EXPECT().
		Fetch(gomock.Any(), "resp_abc123").
		Return(&core.ResearchResult{
			Handle:     "resp_abc123",
			Status:     "completed",
			OutputText: researchOutput,
		}, nil)
	f.docs.EXPECT().
		CreateDocument(gomock.Any(), gomock.Any()).
		Return(&core.CreatedDocument{URL: "https://docs.example.com/d/doc_1"}, nil).
		Times(1)

	// Submit.
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(submitPayload))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// First delivery completes the job and creates the document.
	body := completionBody("evt_1", "resp_abc123")
	rec = postWebhook(f, f.signedWebhookHeaders("evt_1", body), body)
	require.Equal(t, http.StatusOK, rec.Code)
	var ack map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "completed", ack["outcome"])
	assert.Equal(t, "evt_1", ack["event_id"])

	// Redelivery with a fresh event id is acknowledged without a new document.
	body = completionBody("evt_2", "resp_abc123")
	rec = postWebhook(f, f.signedWebhookHeaders("evt_2", body), body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "duplicate", ack["outcome"])

	// Status reflects the completion and the document ref.
	req = httptest.NewRequest(http.MethodGet, "/jobs/resp_abc123/status", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var status model.JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.JobStateCompleted, status.State)
	require.NotNil(t, status.ResultRef)
	assert.Equal(t, "https://docs.example.com/d/doc_1", *status.ResultRef)
}

func TestWebhookHandlerRejections(t *testing.T) {
	t.Run("unsigned delivery rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newRouterFixture(t, ctrl)
		body := completionBody("evt_1", "resp_abc123")

		rec := postWebhook(f, http.Header{}, body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newRouterFixture(t, ctrl)
		body := completionBody("evt_1", "resp_abc123")
		headers := f.signedWebhookHeaders("evt_1", body)
		tampered := bytes.Replace(body, []byte("resp_abc123"), []byte("resp_evil99"), 1)

		rec := postWebhook(f, headers, tampered)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// Nothing was recorded for either handle.
		_, err := f.registry.GetByHandle(context.Background(), "resp_evil99")
		assert.Error(t, err)
	})

	t.Run("oversized payload rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newRouterFixture(t, ctrl)
		body := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)

		rec := postWebhook(f, f.signedWebhookHeaders("evt_big", body), body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("unknown job acknowledged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newRouterFixture(t, ctrl)
		body := completionBody("evt_1", "resp_unknown")

		rec := postWebhook(f, f.signedWebhookHeaders("evt_1", body), body)
		require.Equal(t, http.StatusOK, rec.Code)
		var ack map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.Equal(t, "unknown_job", ack["outcome"])
	})

	t.Run("provider failure returns 500 for redelivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		f := newRouterFixture(t, ctrl)
		f.provider.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("resp_abc123", nil)
		f.provider.EXPECT().Fetch(gomock.Any(), "resp_abc123").Return(nil, assert.AnError)

		req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(submitPayload))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		body := completionBody("evt_1", "resp_abc123")
		rec = postWebhook(f, f.signedWebhookHeaders("evt_1", body), body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestWebhookHandlerFailureEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newRouterFixture(t, ctrl)
	f.provider.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("resp_abc123", nil)

	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(submitPayload))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := []byte(`{"id":"evt_1","type":"response.failed","created_at":1748779200,"data":{"id":"resp_abc123"}}`)
	rec = postWebhook(f, f.signedWebhookHeaders("evt_1", body), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "failure_recorded", ack["outcome"])

	job, err := f.registry.GetByHandle(context.Background(), "resp_abc123")
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, job.State)
}
