// Package vision provides a client for a Vision style OCR annotation API.
package vision

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

// Client defines the OCR operations used by the pipeline.
type Client interface {
	// Annotate runs document text detection over one document.
	Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error)
}

// AnnotateRequest is a single OCR request.
type AnnotateRequest struct {
	Content  []byte
	MimeType string
}

// AnnotateResponse is the parsed annotation output.
type AnnotateResponse struct {
	Responses []AnnotationResult `json:"responses"`
}

// AnnotationResult holds one document's detection output.
type AnnotationResult struct {
	FullTextAnnotation *FullTextAnnotation `json:"fullTextAnnotation,omitempty"`
	Error              *Status             `json:"error,omitempty"`
}

// FullTextAnnotation is the recognized document text.
type FullTextAnnotation struct {
	Text  string `json:"text"`
	Pages []Page `json:"pages"`
}

// Page carries page-level detection quality in [0,1].
type Page struct {
	Confidence float64 `json:"confidence"`
}

// Status is an embedded provider error for one document.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the annotation endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision: api error %d: %s", e.StatusCode, e.Message)
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Vision OCR client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://vision.googleapis.com/v1",
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error) {
	body := map[string]any{
		"requests": []map[string]any{
			{
				"image": map[string]any{
					"content": base64.StdEncoding.EncodeToString(req.Content),
				},
				"features": []map[string]any{
					{"type": "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "vision: marshal request")
	}

	endpoint := fmt.Sprintf("%s/images:annotate?key=%s", c.baseURL, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "vision: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "vision: annotate request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vision: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
	}

	var parsed AnnotateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "vision: parse response")
	}

	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
