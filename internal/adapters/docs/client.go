// Package docs provides the HTTP client for the document collaborator.
package docs

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

	"github.com/google/uuid"

	"github.com/yoyaba/gtm-docgen/internal/core"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
)

const defaultRequestTimeout = 30 * time.Second

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	BaseURL    string // Required: document service base URL
	AuthToken  string // Required: bearer token
	FolderID   string // Optional: destination folder for created documents
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client creates research documents. Each request carries the caller's dedupe
// key so the collaborator can drop duplicates on its side too.
type Client struct {
	baseURL    string
	authToken  string
	folderID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a new document client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("docs base URL is required")
	}
	if strings.TrimSpace(opts.AuthToken) == "" {
		return nil, errors.New("docs auth token is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "docs_client")
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		authToken:  opts.AuthToken,
		folderID:   opts.FolderID,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// MustNewClient constructs a new document client and panics on error.
func MustNewClient(opts ClientOptions) *Client {
	c, err := NewClient(opts)
	if err != nil {
		panic(err)
	}
	return c
}

type createDocumentPayload struct {
	Title      string       `json:"title"`
	Sections   []docSection `json:"sections"`
	FolderID   string       `json:"folder_id,omitempty"`
	RequestKey string       `json:"request_key"`
}

type docSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type createDocumentResponse struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
	RevisionID string `json:"revision_id"`
}

// CreateDocument creates one document from the composed sections.
func (c *Client) CreateDocument(ctx context.Context, req core.CreateDocumentRequest) (*core.CreatedDocument, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("document title is required")
	}
	if strings.TrimSpace(req.RequestKey) == "" {
		return nil, errors.New("request key is required")
	}

	payload := createDocumentPayload{
		Title:      req.Title,
		FolderID:   c.folderID,
		RequestKey: req.RequestKey,
	}
	for _, s := range req.Sections {
		payload.Sections = append(payload.Sections, docSection{Heading: s.Heading, Body: s.Body})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal document payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.RequestKey)
	httpReq.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.EffectFailed(err, "document request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, apperrors.EffectFailed(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			"document service rejected create",
		)
	}

	var created createDocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, apperrors.EffectFailed(err, "decode document response")
	}
	if strings.TrimSpace(created.DocumentID) == "" {
		return nil, apperrors.EffectFailed(errors.New("empty document id"), "document service returned no id")
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "document created",
			"document_id", created.DocumentID,
			"request_key", req.RequestKey,
			"request_id", requestID,
		)
	}

	return &core.CreatedDocument{
		DocumentID: created.DocumentID,
		URL:        created.URL,
		RevisionID: created.RevisionID,
	}, nil
}

var _ core.DocumentCreator = (*Client)(nil)
