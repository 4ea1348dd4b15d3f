package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/gophdocs/pkg/api"
)

// ErrNotFound is returned when the server answers 404
var ErrNotFound = errors.New("not found")

// StatusError ответ сервера с кодом не из 2xx
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Is позволяет errors.Is(err, ErrNotFound) находить ответы 404
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент. С пустым токеном заголовок Authorization не отправляется.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовок Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// CreateDocument creates a document with the given title and initial content
func (c *Client) CreateDocument(ctx context.Context, title, content string) (*api.Document, error) {
	var doc api.Document
	req := api.CreateDocumentRequest{Title: title, Content: content}
	if err := c.doRequest(ctx, http.MethodPost, "/api/documents", req, &doc); err != nil {
		return nil, fmt.Errorf("create document request failed: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the summaries of every stored document
func (c *Client) ListDocuments(ctx context.Context) ([]api.DocumentSummary, error) {
	var docs []api.DocumentSummary
	if err := c.doRequest(ctx, http.MethodGet, "/api/documents", nil, &docs); err != nil {
		return nil, fmt.Errorf("list documents request failed: %w", err)
	}
	return docs, nil
}

// GetDocument fetches a document with its persisted content
func (c *Client) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	var doc api.Document
	if err := c.doRequest(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, fmt.Errorf("get document request failed: %w", err)
	}
	return &doc, nil
}

// DeleteDocument removes a document and returns what was deleted
func (c *Client) DeleteDocument(ctx context.Context, id string) (*api.Document, error) {
	var resp api.DeleteDocumentResponse
	if err := c.doRequest(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("delete document request failed: %w", err)
	}
	return &resp.Document, nil
}

// doRequest выполняет HTTP запрос и декодирует успешный ответ в result
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
