// Package webhook verifies inbound callback signatures. Verification is the
// first gate of the ingestion pipeline and runs before any payload parsing.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names the provider signs callbacks with.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// secretPrefix on the shared secret is informational and stripped before decoding.
const secretPrefix = "whsec_"

// defaultTolerance bounds how far a signed timestamp may drift from local time.
const defaultTolerance = 5 * time.Minute

// RejectionReason classifies why a callback was rejected.
type RejectionReason string

const (
	// ReasonMissingHeader means a required signature header was absent.
	ReasonMissingHeader RejectionReason = "missing_header"
	// ReasonMalformedTimestamp means the timestamp header was not a unix epoch.
	ReasonMalformedTimestamp RejectionReason = "malformed_timestamp"
	// ReasonStaleTimestamp means the timestamp fell outside the tolerance window.
	ReasonStaleTimestamp RejectionReason = "stale_timestamp"
	// ReasonBadSignature means no candidate signature matched.
	ReasonBadSignature RejectionReason = "bad_signature"
)

// RejectionError carries the typed reason a callback failed verification.
type RejectionError struct {
	Reason RejectionReason
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("webhook rejected: %s", e.Reason)
}

// Reject builds a RejectionError for the given reason.
func Reject(reason RejectionReason) *RejectionError {
	return &RejectionError{Reason: reason}
}

// Verified holds the authenticated envelope a successful verification yields.
type Verified struct {
	EventID   string
	Timestamp time.Time
}

// Verifier checks HMAC-SHA256 webhook signatures over the canonical signed
// content `{id}.{timestamp}.{body}`.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOptions configures a Verifier.
type VerifierOptions struct {
	// Secret is the shared signing secret, base64 encoded, with an optional
	// whsec_ prefix.
	Secret string
	// Tolerance overrides the timestamp drift window. Zero means 5 minutes.
	Tolerance time.Duration
	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewVerifier creates a Verifier from the encoded shared secret.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(opts.Secret), secretPrefix)
	if raw == "" {
		return nil, errors.New("webhook secret is required")
	}
	secret, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: now}, nil
}

// MustNewVerifier creates a Verifier and panics on error. For wiring at startup.
func MustNewVerifier(opts VerifierOptions) *Verifier {
	v, err := NewVerifier(opts)
	if err != nil {
		panic(err)
	}
	return v
}

// Verify checks the signature headers against the raw request body. It never
// mutates anything and is safe to call on arbitrary untrusted input.
func (v *Verifier) Verify(headers http.Header, body []byte) (*Verified, error) {
	id := strings.TrimSpace(headers.Get(HeaderID))
	tsHeader := strings.TrimSpace(headers.Get(HeaderTimestamp))
	sigHeader := strings.TrimSpace(headers.Get(HeaderSignature))
	if id == "" || tsHeader == "" || sigHeader == "" {
		return nil, Reject(ReasonMissingHeader)
	}

	epoch, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return nil, Reject(ReasonMalformedTimestamp)
	}
	ts := time.Unix(epoch, 0)

	now := v.now()
	if ts.Before(now.Add(-v.tolerance)) || ts.After(now.Add(v.tolerance)) {
		return nil, Reject(ReasonStaleTimestamp)
	}

	expected := v.sign(id, tsHeader, body)
	if !matchSignature(expected, sigHeader) {
		return nil, Reject(ReasonBadSignature)
	}

	return &Verified{EventID: id, Timestamp: ts.UTC()}, nil
}

// sign computes the HMAC-SHA256 of `{id}.{timestamp}.{body}`.
func (v *Verifier) sign(id, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign produces the header value for the given envelope. Used by tests and by
// any outbound delivery that mirrors the inbound scheme.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	return "v1," + base64.StdEncoding.EncodeToString(v.sign(id, timestamp, body))
}

// matchSignature compares the expected MAC against each space-separated
// `v1,<base64>` candidate in constant time. Multiple candidates appear
// during secret rotation.
func matchSignature(expected []byte, header string) bool {
	matched := false
	for _, candidate := range strings.Fields(header) {
		version, encoded, found := strings.Cut(candidate, ",")
		if !found || version != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare(expected, sig) == 1 {
			matched = true
		}
	}
	return matched
}
