package storage

import (
	"context"

	"github.com/iudanet/gophdocs/internal/models"
)

// DocumentStorage defines interface for document persistence
type DocumentStorage interface {
	// CreateDocument stores a new document
	// ID, timestamps and version are set by the caller
	CreateDocument(ctx context.Context, doc *models.Document) error

	// ListDocuments returns every document ordered by CreatedAt descending
	// Returns empty slice if there are no documents
	ListDocuments(ctx context.Context) ([]*models.Document, error)

	// GetDocument retrieves document by ID
	// Returns ErrDocumentNotFound if document doesn't exist
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// DeleteDocument removes document and returns it as it was before removal
	// Returns ErrDocumentNotFound if document doesn't exist
	DeleteDocument(ctx context.Context, id string) (*models.Document, error)

	// UpdateContent replaces content and version of a document
	// Never moves the stored version backwards: returns ErrStaleVersion
	// if the stored version is already greater than version.
	// Returns ErrDocumentNotFound if document doesn't exist
	UpdateContent(ctx context.Context, id, content string, version int) error

	// Close releases the underlying connection
	Close() error
}
