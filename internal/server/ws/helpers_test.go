package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophdocs/internal/models"
	"github.com/iudanet/gophdocs/internal/server/session"
	"github.com/iudanet/gophdocs/internal/server/storage"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLoader struct {
	docs map[string]*models.Document
	err  error
}

func (l *fakeLoader) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if l.err != nil {
		return nil, l.err
	}
	doc, ok := l.docs[id]
	if !ok {
		return nil, storage.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func newTestLoader() *fakeLoader {
	now := time.Now()
	return &fakeLoader{docs: map[string]*models.Document{
		"doc1": {ID: "doc1", Title: "one", Content: "hello", Version: 4, CreatedAt: now, UpdatedAt: now},
	}}
}

func newTestRegistry(loader session.DocumentLoader) *session.Registry {
	return session.NewRegistry(loader, nil, setupTestLogger())
}

// fakePeer records decoded messages
type fakePeer struct {
	id       string
	userID   string
	messages []map[string]any
	mu       sync.Mutex
}

func (p *fakePeer) ID() string     { return p.id }
func (p *fakePeer) UserID() string { return p.userID }

func (p *fakePeer) Send(payload []byte) bool {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
	return true
}

func (p *fakePeer) all() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.messages...)
}

func (p *fakePeer) lastOf(t *testing.T, typ string) map[string]any {
	t.Helper()
	msgs := p.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == typ {
			return msgs[i]
		}
	}
	require.Failf(t, "message not received", "%s never reached %s", typ, p.id)
	return nil
}

func (p *fakePeer) countOf(typ string) int {
	n := 0
	for _, m := range p.all() {
		if m["type"] == typ {
			n++
		}
	}
	return n
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
