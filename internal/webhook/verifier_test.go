package webhook

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldA==" // "test-signing-secret"

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierOptions{
		Secret: testSecret,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)
	return v
}

func signedHeaders(v *Verifier, id string, ts time.Time, body []byte) http.Header {
	tsStr := strconv.FormatInt(ts.Unix(), 10)
	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, tsStr)
	h.Set(HeaderSignature, v.Sign(id, tsStr, body))
	return h
}

func TestVerifier_Verify_Valid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, now)
	body := []byte(`{"id":"evt_1","type":"response.completed","data":{"id":"resp_abc123"}}`)

	verified, err := v.Verify(signedHeaders(v, "evt_1", now, body), body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", verified.EventID)
	assert.Equal(t, now.Unix(), verified.Timestamp.Unix())
}

func TestVerifier_Verify_SecretWithoutPrefix(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v, err := NewVerifier(VerifierOptions{
		Secret: base64.StdEncoding.EncodeToString([]byte("test-signing-secret")),
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	body := []byte(`{}`)
	_, err = v.Verify(signedHeaders(v, "evt_1", now, body), body)
	assert.NoError(t, err)
}

func TestVerifier_Verify_Rejections(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, now)
	body := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name    string
		headers http.Header
		reason  RejectionReason
	}{
		{
			name:    "missing all headers",
			headers: http.Header{},
			reason:  ReasonMissingHeader,
		},
		{
			name: "missing signature header",
			headers: func() http.Header {
				h := signedHeaders(v, "evt_1", now, body)
				h.Del(HeaderSignature)
				return h
			}(),
			reason: ReasonMissingHeader,
		},
		{
			name: "non-numeric timestamp",
			headers: func() http.Header {
				h := signedHeaders(v, "evt_1", now, body)
				h.Set(HeaderTimestamp, "not-a-timestamp")
				return h
			}(),
			reason: ReasonMalformedTimestamp,
		},
		{
			name:    "timestamp too old",
			headers: signedHeaders(v, "evt_1", now.Add(-6*time.Minute), body),
			reason:  ReasonStaleTimestamp,
		},
		{
			name:    "timestamp too far in future",
			headers: signedHeaders(v, "evt_1", now.Add(6*time.Minute), body),
			reason:  ReasonStaleTimestamp,
		},
		{
			name: "tampered body",
			headers: func() http.Header {
				return signedHeaders(v, "evt_1", now, []byte(`{"id":"evt_other"}`))
			}(),
			reason: ReasonBadSignature,
		},
		{
			name: "garbage signature",
			headers: func() http.Header {
				h := signedHeaders(v, "evt_1", now, body)
				h.Set(HeaderSignature, "v1,!!!not-base64!!!")
				return h
			}(),
			reason: ReasonBadSignature,
		},
		{
			name: "unknown signature version",
			headers: func() http.Header {
				h := signedHeaders(v, "evt_1", now, body)
				h.Set(HeaderSignature, "v2"+h.Get(HeaderSignature)[2:])
				return h
			}(),
			reason: ReasonBadSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.headers, body)
			require.Error(t, err)
			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.reason, rej.Reason)
		})
	}
}

func TestVerifier_Verify_EdgeOfToleranceWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, now)
	body := []byte(`{}`)

	// Exactly at the boundary is still accepted.
	_, err := v.Verify(signedHeaders(v, "evt_1", now.Add(-5*time.Minute), body), body)
	assert.NoError(t, err)

	_, err = v.Verify(signedHeaders(v, "evt_1", now.Add(5*time.Minute), body), body)
	assert.NoError(t, err)
}

func TestVerifier_Verify_MultipleCandidateSignatures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(t, now)
	body := []byte(`{"id":"evt_1"}`)

	h := signedHeaders(v, "evt_1", now, body)
	// A rotated-out signature next to the valid one still verifies.
	h.Set(HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString([]byte("stale"))+" "+h.Get(HeaderSignature))

	_, err := v.Verify(h, body)
	assert.NoError(t, err)
}

func TestNewVerifier_InvalidSecret(t *testing.T) {
	_, err := NewVerifier(VerifierOptions{Secret: ""})
	assert.Error(t, err)

	_, err = NewVerifier(VerifierOptions{Secret: "whsec_%%%"})
	assert.Error(t, err)
}
