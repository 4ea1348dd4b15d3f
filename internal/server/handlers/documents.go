package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
	"github.com/iudanet/gophdocs/internal/validation"
	"github.com/iudanet/gophdocs/pkg/api"
)

// DocumentStorage часть хранилища, нужная DocumentHandler
type DocumentStorage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) (*models.Document, error)
}

// DocumentHandler обрабатывает CRUD запросы к документам
type DocumentHandler struct {
	logger  *slog.Logger
	storage DocumentStorage
}

// NewDocumentHandler создает новый handler документов
func NewDocumentHandler(logger *slog.Logger, storage DocumentStorage) *DocumentHandler {
	return &DocumentHandler{
		logger:  logger,
		storage: storage,
	}
}

// Create обрабатывает POST /api/documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateTitle(req.Title); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	doc := &models.Document{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Content:   req.Content,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.storage.CreateDocument(ctx, doc); err != nil {
		h.logger.ErrorContext(ctx, "failed to create document", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "document created",
		slog.String("doc_id", doc.ID),
		slog.String("title", doc.Title))

	sendJSON(h.logger, w, toAPIDocument(doc), http.StatusCreated)
}

// List обрабатывает GET /api/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.storage.ListDocuments(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list documents", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]api.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, api.DocumentSummary{
			ID:        doc.ID,
			Title:     doc.Title,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	doc, err := h.storage.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			sendError(h.logger, w, api.ErrDocumentNotFoundText, http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get document", slog.String("doc_id", id), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, toAPIDocument(doc), http.StatusOK)
}

// Delete обрабатывает DELETE /api/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	doc, err := h.storage.DeleteDocument(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrDocumentNotFound) {
			sendError(h.logger, w, api.ErrDocumentNotFoundText, http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete document", slog.String("doc_id", id), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "document deleted", slog.String("doc_id", id))

	sendJSON(h.logger, w, api.DeleteDocumentResponse{
		Message:  "Document deleted successfully",
		Document: toAPIDocument(doc),
	}, http.StatusOK)
}

// Register регистрирует маршруты документов в r
func (h *DocumentHandler) Register(r *mux.Router) {
	r.HandleFunc("", h.Create).Methods(http.MethodPost)
	r.HandleFunc("", h.List).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.Delete).Methods(http.MethodDelete)
}

func toAPIDocument(doc *models.Document) api.Document {
	return api.Document{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
