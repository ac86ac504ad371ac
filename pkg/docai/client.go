// Package docai provides a client for a Document AI style structured
// document extraction API.
package docai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the document processing operations used by the pipeline.
type Client interface {
	// Process runs the configured processor over one document and returns the
	// recognized text and typed entities.
	Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
}

// ProcessRequest is a single document processing request.
type ProcessRequest struct {
	Content  []byte
	MimeType string
}

// ProcessResponse is the parsed processor output.
type ProcessResponse struct {
	Document Document `json:"document"`
}

// Document holds the processor's view of the input.
type Document struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
	Pages    []Page   `json:"pages"`
}

// Entity is one typed extraction with the provider-native confidence in [0,1].
type Entity struct {
	Type        string  `json:"type"`
	MentionText string  `json:"mentionText"`
	Confidence  float64 `json:"confidence"`
}

// Page carries page-level detection quality.
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Confidence float64 `json:"confidence"`
}

// APIError is a non-2xx response from the processor endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docai: api error %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	projectID   string
	processorID string
	http        *http.Client
}

// NewClient creates a Document AI client.
func NewClient(apiKey, projectID, processorID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     "https://documentai.googleapis.com/v1",
		projectID:   projectID,
		processorID: processorID,
		http:        &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	body := map[string]any{
		"rawDocument": map[string]any{
			"content":  base64.StdEncoding.EncodeToString(req.Content),
			"mimeType": req.MimeType,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "docai: marshal request")
	}

	endpoint := fmt.Sprintf("%s/projects/%s/processors/%s:process",
		c.baseURL, c.projectID, c.processorID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "docai: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "docai: process request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "docai: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
	}

	var parsed ProcessResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "docai: parse response")
	}

	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
