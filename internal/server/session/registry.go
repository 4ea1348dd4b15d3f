package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

// loadTimeout bounds a shared document load
const loadTimeout = 10 * time.Second

// ErrDocumentNotFound indicates that the store has no such document
var ErrDocumentNotFound = errors.New("document not found")

// DocumentLoader loads the persisted state of a document
type DocumentLoader interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Registry maps document IDs to resident sessions.
// Sessions are loaded lazily and stay resident for the registry lifetime.
type Registry struct {
	loader   DocumentLoader
	sink     CommitSink
	logger   *slog.Logger
	sessions map[string]*Session
	loads    singleflight.Group
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
// sink may be nil, in which case commits are not persisted.
func NewRegistry(loader DocumentLoader, sink CommitSink, logger *slog.Logger) *Registry {
	return &Registry{
		loader:   loader,
		sink:     sink,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// GetOrLoad returns the resident session for docID, loading it from the
// store on first access. Concurrent first accesses share one load, which
// outlives the cancellation of any single caller.
// Returns ErrDocumentNotFound if the store has no such document.
func (r *Registry) GetOrLoad(ctx context.Context, docID string) (*Session, error) {
	if s, ok := r.Lookup(docID); ok {
		return s, nil
	}

	v, err, _ := r.loads.Do(docID, func() (any, error) {
		if s, ok := r.Lookup(docID); ok {
			return s, nil
		}

		// загрузка общая: отмена одного вызывающего не должна ломать остальных
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		doc, err := r.loader.GetDocument(loadCtx, docID)
		if err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return nil, ErrDocumentNotFound
			}
			return nil, fmt.Errorf("failed to load document %s: %w", docID, err)
		}

		s := newSession(doc.ID, doc.Content, doc.Version, r.sink, r.logger)

		r.mu.Lock()
		r.sessions[docID] = s
		r.mu.Unlock()

		r.logger.Info("session loaded",
			slog.String("doc_id", docID),
			slog.Int("version", doc.Version))

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Session), nil
}

// Lookup returns the resident session without loading it
func (r *Registry) Lookup(docID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[docID]
	return s, ok
}

// Broadcast delivers msg to the participants of docID except exclude.
// It reports whether the session is resident.
func (r *Registry) Broadcast(docID string, msg any, exclude Conn) bool {
	s, ok := r.Lookup(docID)
	if !ok {
		return false
	}
	s.Broadcast(msg, exclude)
	return true
}

// LeaveAll removes conn from every session it joined and returns their IDs
func (r *Registry) LeaveAll(conn Conn) []string {
	var left []string
	for _, s := range r.snapshot() {
		if s.Leave(conn) {
			left = append(left, s.DocID())
		}
	}
	return left
}

// Len returns the number of resident sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
