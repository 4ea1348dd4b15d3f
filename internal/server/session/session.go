// Package session holds the live, in-memory state of documents being edited.
//
// A Session is the single authority for one document: every edit passes
// through Session.Submit, which reconciles it against the history the client
// missed, applies it, bumps the version and fans the result out while holding
// the session lock. Persistence happens afterwards and never blocks editing.
package session

import (
	"encoding/json"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/iudanet/gophdocs/pkg/api"
	"github.com/iudanet/gophdocs/pkg/ot"
)

// LatestVersion as a base version applies an operation as is, without
// reconciling it against history
const LatestVersion = math.MaxInt

// Conn is a participant connection as seen by a session
type Conn interface {
	// ID identifies the connection for its whole lifetime
	ID() string
	// Send queues payload for delivery without blocking.
	// It returns false when the connection is closed or cannot keep up.
	Send(payload []byte) bool
}

// HistoryEntry is an operation already applied to the session.
// Version is the session version before the operation was applied.
type HistoryEntry struct {
	Operation ot.Operation
	Version   int
}

// Snapshot is the state returned to a joining connection
type Snapshot struct {
	Content string
	Users   []string
	Version int
}

// Commit describes one applied operation for the persistence pipeline
type Commit struct {
	DocID     string
	Content   string
	Operation ot.Operation
	Version   int // version after the operation
}

// CommitSink receives commits in version order. Enqueue must not block.
type CommitSink interface {
	Enqueue(c Commit)
}

type participant struct {
	conn   Conn
	userID string
}

// Session is the authoritative state of one document
type Session struct {
	sink         CommitSink
	logger       *slog.Logger
	docID        string
	content      string
	history      []HistoryEntry
	participants []participant // join order
	version      int
	mu           sync.Mutex
}

func newSession(docID, content string, version int, sink CommitSink, logger *slog.Logger) *Session {
	return &Session{
		docID:   docID,
		content: content,
		version: version,
		sink:    sink,
		logger:  logger.With(slog.String("doc_id", docID)),
	}
}

// DocID returns the document identifier
func (s *Session) DocID() string {
	return s.docID
}

// Join registers conn under userID, sends it INIT and announces it to the others.
// Joining again with the same connection only rebinds the user id.
func (s *Session) Join(conn Conn, userID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(conn); i >= 0 {
		s.participants[i].userID = userID
	} else {
		s.participants = append(s.participants, participant{conn: conn, userID: userID})
	}

	snap := s.snapshotLocked()

	// INIT отправляем под локом, чтобы ни одна OPERATION его не обогнала
	s.sendLocked(conn, api.InitMessage{
		Type:    api.MessageInit,
		Content: snap.Content,
		Version: snap.Version,
		Users:   snap.Users,
	})
	s.broadcastLocked(api.PresenceMessage{Type: api.MessageUserJoined, UserID: userID}, conn)

	s.logger.Debug("participant joined",
		slog.String("conn_id", conn.ID()),
		slog.String("user_id", userID),
		slog.Int("participants", len(s.participants)))

	return snap
}

// Submit reconciles op, declared against baseVersion, with the operations
// the client has not seen, applies it and broadcasts it to every participant.
// It returns the operation as applied and the new version.
//
// A failing operation leaves the session untouched.
func (s *Session) Submit(conn Conn, op ot.Operation, baseVersion int) (ot.Operation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(conn); i >= 0 && s.participants[i].userID != "" {
		op.UserID = s.participants[i].userID
	}

	if err := op.Validate(); err != nil {
		return op, s.version, err
	}

	if baseVersion < s.version {
		op = ot.TransformAll(op, s.missedSinceLocked(baseVersion))
	}

	content, err := ot.Apply(s.content, op)
	if err != nil {
		return op, s.version, err
	}
	// в историю попадает только реально удаленный диапазон
	op = ot.Clamp(op, ot.Len(s.content))

	s.content = content
	s.history = append(s.history, HistoryEntry{Version: s.version, Operation: op})
	s.version++

	s.broadcastLocked(api.OperationMessage{
		Type:      api.MessageOperation,
		UserID:    op.UserID,
		Operation: op,
		Version:   s.version,
	}, nil)

	if s.sink != nil {
		s.sink.Enqueue(Commit{DocID: s.docID, Content: s.content, Version: s.version, Operation: op})
	}

	return op, s.version, nil
}

// Cursor relays a cursor position to everyone but the sender.
// userID is used when conn has not joined the session.
func (s *Session) Cursor(conn Conn, userID string, cursor json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(conn); i >= 0 && s.participants[i].userID != "" {
		userID = s.participants[i].userID
	}

	s.broadcastLocked(api.CursorMessage{Type: api.MessageCursor, UserID: userID, Cursor: cursor}, conn)
}

// Leave removes conn and announces it to the remaining participants.
// It reports whether conn was a participant.
func (s *Session) Leave(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(conn)
	if i < 0 {
		return false
	}

	userID := s.participants[i].userID
	s.participants = slices.Delete(s.participants, i, i+1)
	s.broadcastLocked(api.PresenceMessage{Type: api.MessageUserLeft, UserID: userID}, nil)

	s.logger.Debug("participant left",
		slog.String("conn_id", conn.ID()),
		slog.String("user_id", userID),
		slog.Int("participants", len(s.participants)))

	return true
}

// Has reports whether conn participates in the session
func (s *Session) Has(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(conn) >= 0
}

// Snapshot returns current content, version and roster
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// History returns a copy of the retained history
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// missedSinceLocked returns the operations applied at or after baseVersion.
// When baseVersion is not retained it falls back to the whole history.
func (s *Session) missedSinceLocked(baseVersion int) []ot.Operation {
	start := 0
	if len(s.history) > 0 {
		if i := baseVersion - s.history[0].Version; i >= 0 && i < len(s.history) && s.history[i].Version == baseVersion {
			start = i
		} else {
			s.logger.Warn("base version not in history, replaying all retained entries",
				slog.Int("base_version", baseVersion),
				slog.Int("oldest_version", s.history[0].Version))
		}
	}

	missed := make([]ot.Operation, 0, len(s.history)-start)
	for _, h := range s.history[start:] {
		missed = append(missed, h.Operation)
	}
	return missed
}

func (s *Session) snapshotLocked() Snapshot {
	users := make([]string, 0, len(s.participants))
	for _, p := range s.participants {
		users = append(users, p.userID)
	}
	return Snapshot{Content: s.content, Version: s.version, Users: users}
}

func (s *Session) indexOf(conn Conn) int {
	id := conn.ID()
	return slices.IndexFunc(s.participants, func(p participant) bool {
		return p.conn.ID() == id
	})
}
