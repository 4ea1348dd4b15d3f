package session

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/gophdocs/internal/server/storage"
	"github.com/iudanet/gophdocs/pkg/api"
)

// writeTimeout bounds a single store or publish call
const writeTimeout = 5 * time.Second

// ContentUpdater persists document content
type ContentUpdater interface {
	UpdateContent(ctx context.Context, id, content string, version int) error
}

// Publisher mirrors applied operations to an external channel
type Publisher interface {
	PublishOperation(ctx context.Context, docID string, msg api.OperationMessage) error
}

// Persister writes commits to the store in the background.
// Each document is pinned to one worker so its writes keep version order.
// Commits are dropped when a worker queue is full; nothing is retried.
type Persister struct {
	store     ContentUpdater
	publisher Publisher
	logger    *slog.Logger
	queues    []chan Commit
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

// NewPersister starts workers goroutines with queueSize buffered commits each.
// publisher may be nil.
func NewPersister(store ContentUpdater, publisher Publisher, workers, queueSize int, logger *slog.Logger) *Persister {
	workers = max(workers, 1)

	p := &Persister{
		store:     store,
		publisher: publisher,
		logger:    logger,
		queues:    make([]chan Commit, workers),
	}

	for i := range p.queues {
		p.queues[i] = make(chan Commit, queueSize)
		p.wg.Add(1)
		go p.run(p.queues[i])
	}

	return p
}

// Enqueue schedules c for persistence without blocking
func (p *Persister) Enqueue(c Commit) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("persister closed, commit dropped",
			slog.String("doc_id", c.DocID),
			slog.Int("version", c.Version))
		return
	}

	select {
	case p.queues[p.worker(c.DocID)] <- c:
	default:
		p.logger.Warn("persist queue full, commit dropped",
			slog.String("doc_id", c.DocID),
			slog.Int("version", c.Version))
	}
}

// Close stops accepting commits and waits until queued ones are written
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Persister) worker(docID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Persister) run(queue <-chan Commit) {
	defer p.wg.Done()

	for c := range queue {
		p.write(c)
	}
}

func (p *Persister) write(c Commit) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.store.UpdateContent(ctx, c.DocID, c.Content, c.Version); err != nil {
		if errors.Is(err, storage.ErrStaleVersion) {
			p.logger.Debug("stored version is newer, skipped",
				slog.String("doc_id", c.DocID),
				slog.Int("version", c.Version))
		} else {
			p.logger.Error("failed to persist document",
				slog.String("doc_id", c.DocID),
				slog.Int("version", c.Version),
				slog.Any("error", err))
		}
	}

	if p.publisher == nil {
		return
	}

	msg := api.OperationMessage{
		Type:      api.MessageOperation,
		DocID:     c.DocID,
		UserID:    c.Operation.UserID,
		Operation: c.Operation,
		Version:   c.Version,
	}
	if err := p.publisher.PublishOperation(ctx, c.DocID, msg); err != nil {
		p.logger.Error("failed to publish operation",
			slog.String("doc_id", c.DocID),
			slog.Int("version", c.Version),
			slog.Any("error", err))
	}
}
