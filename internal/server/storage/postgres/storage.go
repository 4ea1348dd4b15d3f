// Package postgres implements document storage on PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// uniqueViolation is the SQLSTATE of a duplicate key
const uniqueViolation = "23505"

// Storage represents PostgreSQL storage implementation
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to dsn and applies migrations
func New(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) runMigrations(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// CreateDocument stores a new document
func (s *Storage) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, title, content, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query, doc.ID, doc.Title, doc.Content, doc.Version, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
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
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query)
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
func (s *Storage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, title, content, version, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	return scanDocument(s.pool.QueryRow(ctx, query, id))
}

// DeleteDocument removes document and returns the removed row
func (s *Storage) DeleteDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		DELETE FROM documents
		WHERE id = $1
		RETURNING id, title, content, version, created_at, updated_at
	`

	return scanDocument(s.pool.QueryRow(ctx, query, id))
}

// UpdateContent replaces content and version unless a newer version is stored
func (s *Storage) UpdateContent(ctx context.Context, id, content string, version int) error {
	query := `
		UPDATE documents
		SET content = $1, version = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND version <= $2
	`

	tag, err := s.pool.Exec(ctx, query, content, version, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check document: %w", err)
		}
		if !exists {
			return storage.ErrDocumentNotFound
		}
		return storage.ErrStaleVersion
	}

	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	return doc, nil
}
