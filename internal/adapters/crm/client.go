// Package crm provides the writeback client for the CRM system.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/core"
)

const defaultRequestTimeout = 15 * time.Second

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	BaseURL    string // Required: CRM API base URL
	AuthToken  string // Required: bearer token
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client updates CRM company records after a research document is created.
// All calls are best-effort from the pipeline's point of view.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a new CRM client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("crm base URL is required")
	}
	if strings.TrimSpace(opts.AuthToken) == "" {
		return nil, errors.New("crm auth token is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "crm_client")
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		authToken:  opts.AuthToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// MustNewClient constructs a new CRM client and panics on error.
func MustNewClient(opts ClientOptions) *Client {
	c, err := NewClient(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// UpdateDealStatus patches the research-document properties on a company record.
func (c *Client) UpdateDealStatus(ctx context.Context, params core.DealUpdateParams) error {
	if strings.TrimSpace(params.CompanyID) == "" {
		return errors.New("company id is required")
	}

	payload := map[string]any{
		"properties": map[string]string{
			"research_doc_status":       params.Status,
			"research_doc_url":          params.DocumentURL,
			"research_doc_completed_at": strconv.FormatInt(params.CompletedAt.UTC().UnixMilli(), 10),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal crm payload: %w", err)
	}

	url := c.baseURL + "/crm/v3/objects/companies/" + params.CompanyID
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("crm returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "crm deal status updated",
			"company_id", params.CompanyID,
			"status", params.Status,
		)
	}
	return nil
}

var _ core.CRMClient = (*Client)(nil)
