package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/storage"
	"github.com/iudanet/gophdocs/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// fakeConn records every payload sent to it
type fakeConn struct {
	id       string
	payloads [][]byte
	mu       sync.Mutex
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.payloads = append(c.payloads, payload)
	return true
}

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// types returns the type tag of every received message in order
func (c *fakeConn) types(t *testing.T) []api.MessageType {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]api.MessageType, 0, len(c.payloads))
	for _, p := range c.payloads {
		var head struct {
			Type api.MessageType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(p, &head))
		out = append(out, head.Type)
	}
	return out
}

// last decodes the most recent message of the given type into v
func (c *fakeConn) last(t *testing.T, typ api.MessageType, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.payloads) - 1; i >= 0; i-- {
		var head struct {
			Type api.MessageType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(c.payloads[i], &head))
		if head.Type == typ {
			require.NoError(t, json.Unmarshal(c.payloads[i], v))
			return
		}
	}
	t.Fatalf("no %s message received by %s", typ, c.id)
}

func (c *fakeConn) count(t *testing.T, typ api.MessageType) int {
	n := 0
	for _, got := range c.types(t) {
		if got == typ {
			n++
		}
	}
	return n
}

// operationVersions returns the version of every OPERATION received, in order
func (c *fakeConn) operationVersions(t *testing.T) []int {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var versions []int
	for _, p := range c.payloads {
		var msg api.OperationMessage
		require.NoError(t, json.Unmarshal(p, &msg))
		if msg.Type == api.MessageOperation {
			versions = append(versions, msg.Version)
		}
	}
	return versions
}

// fakeLoader serves documents from a map and counts loads
type fakeLoader struct {
	docs  map[string]*models.Document
	err   error
	loads int
	mu    sync.Mutex
}

func (l *fakeLoader) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.err != nil {
		return nil, l.err
	}
	doc, ok := l.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	return doc, nil
}

// recordingSink collects commits
type recordingSink struct {
	commits []Commit
	mu      sync.Mutex
}

func (s *recordingSink) Enqueue(c Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, c)
}

func (s *recordingSink) all() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}
