package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

func TestDocumentStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	doc := newTestDocument("Notes", "hello", time.Now())
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "Notes", got.Title)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, 0, got.Version)
	assert.Equal(t, doc.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	err = s.CreateDocument(ctx, doc)
	assert.ErrorIs(t, err, storage.ErrDocumentAlreadyExists)
}

func TestDocumentStorage_GetNotFound(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetDocument(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestDocumentStorage_ListOrderedByCreatedAtDesc(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	base := time.Now()
	first := newTestDocument("first", "", base.Add(-2*time.Hour))
	second := newTestDocument("second", "", base.Add(-time.Hour))
	third := newTestDocument("third", "", base)

	for _, doc := range []*models.Document{second, third, first} {
		require.NoError(t, s.CreateDocument(ctx, doc))
	}

	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "third", docs[0].Title)
	assert.Equal(t, "second", docs[1].Title)
	assert.Equal(t, "first", docs[2].Title)
}

func TestDocumentStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	doc := newTestDocument("to delete", "bye", time.Now())
	require.NoError(t, s.CreateDocument(ctx, doc))

	deleted, err := s.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, deleted.ID)
	assert.Equal(t, "bye", deleted.Content)

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)

	_, err = s.DeleteDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestDocumentStorage_UpdateContent(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	doc := newTestDocument("doc", "hello", time.Now().Add(-time.Minute))
	require.NoError(t, s.CreateDocument(ctx, doc))

	tests := []struct {
		wantErr     error
		name        string
		content     string
		wantContent string
		version     int
		wantVersion int
	}{
		{
			name:        "newer version is stored",
			content:     "hello world",
			version:     1,
			wantContent: "hello world",
			wantVersion: 1,
		},
		{
			name:        "same version is stored again",
			content:     "hello world!",
			version:     1,
			wantContent: "hello world!",
			wantVersion: 1,
		},
		{
			name:        "jump ahead",
			content:     "Say: hello world!",
			version:     3,
			wantContent: "Say: hello world!",
			wantVersion: 3,
		},
		{
			name:        "older version is rejected",
			content:     "stale",
			version:     2,
			wantErr:     storage.ErrStaleVersion,
			wantContent: "Say: hello world!",
			wantVersion: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateContent(ctx, doc.ID, tt.content, tt.version)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			got, err := s.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, got.Content)
			assert.Equal(t, tt.wantVersion, got.Version)
		})
	}

	err := s.UpdateContent(ctx, uuid.New().String(), "x", 1)
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func newTestDocument(title, content string, createdAt time.Time) *models.Document {
	return &models.Document{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
