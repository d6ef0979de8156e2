package httpx

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/mocks"
	"github.com/yoyaba/gtm-docgen/internal/service"
	"github.com/yoyaba/gtm-docgen/internal/webhook"
)

// testSigningSecret is the base64 of "test-signing-secret".
const testSigningSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldA=="

// routerFixture wires a full router over in-memory stores and mocked
// outbound collaborators.
type routerFixture struct {
	handler  http.Handler
	registry *data.MemoryJobRegistry
	store    *data.MemoryIdempotencyStore
	replay   *data.MemoryReplayCache
	provider *mocks.MockResearchProvider
	docs     *mocks.MockDocumentCreator
	verifier *webhook.Verifier
}

func newRouterFixture(t *testing.T, ctrl *gomock.Controller) *routerFixture {
	t.Helper()

	registry := data.NewMemoryJobRegistry(nil)
	store := data.NewMemoryIdempotencyStore(nil)
	replay := data.NewMemoryReplayCache(nil)
	provider := mocks.NewMockResearchProvider(ctrl)
	docs := mocks.NewMockDocumentCreator(ctrl)

	verifier := webhook.MustNewVerifier(webhook.VerifierOptions{Secret: testSigningSecret})

	executor := service.MustNewEffectExecutor(service.EffectExecutorOptions{
		Store:    store,
		Docs:     docs,
		Composer: service.MustNewComposer(service.ComposerOptions{}),
	})
	submission := service.MustNewSubmissionService(service.SubmissionServiceOptions{
		Registry: registry,
		Provider: provider,
	})
	ingest := service.MustNewIngestService(service.IngestServiceOptions{
		Verifier: verifier,
		Registry: registry,
		Provider: provider,
		Effects:  executor,
		Replay:   replay,
	})

	handler := NewRouter(RouterServices{
		Submission: submission,
		Ingest:     ingest,
		Replay:     replay,
		Registry:   registry,
	})

	return &routerFixture{
		handler:  handler,
		registry: registry,
		store:    store,
		replay:   replay,
		provider: provider,
		docs:     docs,
		verifier: verifier,
	}
}

// signedWebhookHeaders produces valid signature headers for the given body.
func (f *routerFixture) signedWebhookHeaders(eventID string, body []byte) http.Header {
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	h := http.Header{}
	h.Set(webhook.HeaderID, eventID)
	h.Set(webhook.HeaderTimestamp, ts)
	h.Set(webhook.HeaderSignature, f.verifier.Sign(eventID, ts, body))
	return h
}
