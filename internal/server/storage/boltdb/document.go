package boltdb

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

// record is the stored form of a document
type record struct {
	ID        string `cbor:"1,keyasint"`
	Title     string `cbor:"2,keyasint"`
	Content   string `cbor:"3,keyasint"`
	Version   int    `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"` // unix milliseconds
	UpdatedAt int64  `cbor:"6,keyasint"` // unix milliseconds
}

func toRecord(doc *models.Document) record {
	return record{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt.UnixMilli(),
		UpdatedAt: doc.UpdatedAt.UnixMilli(),
	}
}

func (r record) document() *models.Document {
	return &models.Document{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Version:   r.Version,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}
}

func decodeRecord(data []byte) (record, error) {
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return r, nil
}

func putRecord(bucket *bbolt.Bucket, r record) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := bucket.Put([]byte(r.ID), data); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// CreateDocument stores a new document
func (s *Storage) CreateDocument(ctx context.Context, doc *models.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDocuments)
		if bucket.Get([]byte(doc.ID)) != nil {
			return storage.ErrDocumentAlreadyExists
		}
		return putRecord(bucket, toRecord(doc))
	})
}

// ListDocuments returns every document ordered by CreatedAt descending
func (s *Storage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	records := make([]record, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(_, v []byte) error {
			r, err := decodeRecord(v)
			if err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	slices.SortStableFunc(records, func(a, b record) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})

	docs := make([]*models.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, r.document())
	}

	return docs, nil
}

// GetDocument retrieves document by ID
func (s *Storage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc *models.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return storage.ErrDocumentNotFound
		}

		r, err := decodeRecord(data)
		if err != nil {
			return err
		}
		doc = r.document()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// DeleteDocument removes document and returns it
func (s *Storage) DeleteDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc *models.Document

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDocuments)
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrDocumentNotFound
		}

		r, err := decodeRecord(data)
		if err != nil {
			return err
		}
		doc = r.document()

		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// UpdateContent replaces content and version unless a newer version is stored
func (s *Storage) UpdateContent(ctx context.Context, id, content string, version int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDocuments)
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrDocumentNotFound
		}

		r, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if r.Version > version {
			return storage.ErrStaleVersion
		}

		r.Content = content
		r.Version = version
		r.UpdatedAt = time.Now().UnixMilli()

		return putRecord(bucket, r)
	})
}
