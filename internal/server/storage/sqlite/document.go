package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

// CreateDocument stores a new document
func (s *Storage) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, title, content, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Content,
		doc.Version,
		doc.CreatedAt.UnixMilli(),
		doc.UpdatedAt.UnixMilli(),
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrDocumentAlreadyExists
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// ListDocuments returns every document ordered by CreatedAt descending
func (s *Storage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT id, title, content, version, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return docs, nil
}

// GetDocument retrieves document by ID
// Returns ErrDocumentNotFound if document doesn't exist
func (s *Storage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, title, content, version, created_at, updated_at
		FROM documents
		WHERE id = ?
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, err
	}

	return doc, nil
}

// DeleteDocument removes document and returns the removed row
// Returns ErrDocumentNotFound if document doesn't exist
func (s *Storage) DeleteDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		DELETE FROM documents
		WHERE id = ?
		RETURNING id, title, content, version, created_at, updated_at
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, err
	}

	return doc, nil
}

// UpdateContent replaces content and version unless a newer version is stored
func (s *Storage) UpdateContent(ctx context.Context, id, content string, version int) error {
	query := `
		UPDATE documents
		SET content = ?, version = ?, updated_at = ?
		WHERE id = ? AND version <= ?
	`

	result, err := s.db.ExecContext(ctx, query, content, version, time.Now().UnixMilli(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		// Либо строки нет, либо в ней уже более новая версия
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrDocumentNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check document: %w", err)
		}
		return storage.ErrStaleVersion
	}

	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	doc := &models.Document{}
	var createdAt, updatedAt int64

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&doc.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.CreatedAt = time.UnixMilli(createdAt)
	doc.UpdatedAt = time.UnixMilli(updatedAt)

	return doc, nil
}
