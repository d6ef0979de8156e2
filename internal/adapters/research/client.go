// Package research provides the HTTP client for the deep-research provider.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/core"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoffBase    = 2 * time.Second
	maxErrorBodyBytes     = 4 << 10
)

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	BaseURL    string // Required: provider API base, e.g. https://api.openai.com
	APIKey     string // Required: bearer token
	Model      string // Required: research model name
	WebhookURL string // Required: public callback URL registered with submissions
	HTTPClient *http.Client
	Logger     *slog.Logger
	// MaxAttempts bounds retries on 429/5xx/timeouts. Zero means 3.
	MaxAttempts int
	// BackoffBase is the first retry delay, doubled per attempt. Zero means 2s.
	BackoffBase time.Duration
}

// Client submits background research jobs and fetches their results.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	webhookURL  string
	httpClient  *http.Client
	logger      *slog.Logger
	maxAttempts int
	backoffBase time.Duration
}

// NewClient constructs a new provider client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("provider base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("provider API key is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("provider model is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "research_client")
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		webhookURL:  opts.WebhookURL,
		httpClient:  httpClient,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}, nil
}

// MustNewClient constructs a new provider client and panics on error.
func MustNewClient(opts ClientOptions) *Client {
	c, err := NewClient(opts)
	if err != nil {
		panic(err)
	}
	return c
}

type submitPayload struct {
	Model      string         `json:"model"`
	Input      string         `json:"input"`
	Background bool           `json:"background"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type responseEnvelope struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Submit starts a background research job and returns the provider handle.
// The handle is the only durable link between this system and the provider,
// so an empty one is an error even on HTTP 200.
func (c *Client) Submit(ctx context.Context, params core.SubmitResearchParams) (string, error) {
	payload := submitPayload{
		Model:      c.model,
		Input:      params.Input,
		Background: true,
	}
	if c.webhookURL != "" {
		payload.Metadata = map[string]any{"webhook_url": c.webhookURL}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	env, err := c.doWithRetry(ctx, http.MethodPost, "/v1/responses", body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(env.ID) == "" {
		return "", errors.New("provider returned no response id")
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "research job submitted",
			"handle", env.ID,
			"company", params.CompanyName,
			"status", env.Status,
		)
	}
	return env.ID, nil
}

// Fetch retrieves the full response for a handle.
func (c *Client) Fetch(ctx context.Context, handle string) (*core.ResearchResult, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, errors.New("handle is required")
	}

	env, err := c.doWithRetry(ctx, http.MethodGet, "/v1/responses/"+handle, nil)
	if err != nil {
		return nil, err
	}

	result := &core.ResearchResult{
		Handle:     env.ID,
		Status:     env.Status,
		OutputText: extractOutputText(env),
	}
	if env.Error != nil && env.Error.Message != "" {
		msg := env.Error.Message
		result.Error = &msg
	}
	return result, nil
}

// extractOutputText concatenates the message output blocks. Reasoning and
// tool-call blocks are skipped.
func extractOutputText(env *responseEnvelope) string {
	var b strings.Builder
	for _, item := range env.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" {
				b.WriteString(content.Text)
			}
		}
	}
	return b.String()
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (*responseEnvelope, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoffBase << (attempt - 2)
			if c.logger != nil {
				c.logger.WarnContext(ctx, "retrying provider request",
					"method", method,
					"path", path,
					"attempt", attempt,
					"delay", delay.String(),
					"error", lastErr,
				)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		env, err := c.do(ctx, method, path, body)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if !apperrors.IsTransientProvider(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("provider request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*responseEnvelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.TransientProvider(err, "provider request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, apperrors.TransientProvider(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			"provider returned retryable status",
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("provider returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &env, nil
}

var _ core.ResearchProvider = (*Client)(nil)
