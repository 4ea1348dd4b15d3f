package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
	"github.com/iudanet/gophdocs/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// mockDocumentStorage keeps documents in memory
type mockDocumentStorage struct {
	docs    map[string]*models.Document
	failErr error
	mu      sync.Mutex
}

func newMockDocumentStorage() *mockDocumentStorage {
	return &mockDocumentStorage{docs: make(map[string]*models.Document)}
}

func (m *mockDocumentStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentStorage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	docs := make([]*models.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *mockDocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *mockDocumentStorage) DeleteDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return doc, nil
}

func newTestRouter(store DocumentStorage) *mux.Router {
	r := mux.NewRouter()
	NewDocumentHandler(setupTestLogger(), store).Register(r.PathPrefix("/api/documents").Subrouter())
	return r
}

func TestDocumentHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "title and content",
			body:           `{"title":"Notes","content":"hello"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "title only",
			body:           `{"title":"Empty"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			body:           `{"content":"hello"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "title is required",
		},
		{
			name:           "blank title",
			body:           `{"title":"   "}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "title is required",
		},
		{
			name:           "title too long",
			body:           `{"title":"` + strings.Repeat("t", 201) + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "title must not exceed 200 characters",
		},
		{
			name:           "invalid json",
			body:           `{"title":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockDocumentStorage()
			router := newTestRouter(store)

			req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.expectedError != "" {
				var errResp api.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
				assert.Equal(t, tt.expectedError, errResp.Error)
				assert.Empty(t, store.docs)
				return
			}

			var doc api.Document
			require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
			assert.NotEmpty(t, doc.ID)
			assert.Equal(t, 0, doc.Version)
			assert.False(t, doc.CreatedAt.IsZero())
			assert.Contains(t, store.docs, doc.ID)
		})
	}
}

func TestDocumentHandler_Create_StorageError(t *testing.T) {
	store := newMockDocumentStorage()
	store.failErr = errors.New("db down")
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString(`{"title":"x"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	store := newMockDocumentStorage()
	now := time.Now()
	store.docs["d1"] = &models.Document{ID: "d1", Title: "one", Content: "secret", CreatedAt: now, UpdatedAt: now}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	var list []api.DocumentSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "d1", list[0].ID)
	assert.Equal(t, "one", list[0].Title)
}

func TestDocumentHandler_List_Empty(t *testing.T) {
	router := newTestRouter(newMockDocumentStorage())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDocumentHandler_Get(t *testing.T) {
	store := newMockDocumentStorage()
	now := time.Now()
	store.docs["d1"] = &models.Document{ID: "d1", Title: "one", Content: "hello", Version: 3, CreatedAt: now, UpdatedAt: now}
	router := newTestRouter(store)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "existing", path: "/api/documents/d1", expectedStatus: http.StatusOK},
		{name: "missing", path: "/api/documents/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				var errResp api.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
				assert.Equal(t, api.ErrDocumentNotFoundText, errResp.Error)
				return
			}

			var doc api.Document
			require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
			assert.Equal(t, "hello", doc.Content)
			assert.Equal(t, 3, doc.Version)
		})
	}
}

func TestDocumentHandler_Delete(t *testing.T) {
	store := newMockDocumentStorage()
	now := time.Now()
	store.docs["d1"] = &models.Document{ID: "d1", Title: "one", CreatedAt: now, UpdatedAt: now}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/d1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.DeleteDocumentResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "d1", resp.Document.ID)
	assert.NotContains(t, store.docs, "d1")

	req = httptest.NewRequest(http.MethodDelete, "/api/documents/d1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
