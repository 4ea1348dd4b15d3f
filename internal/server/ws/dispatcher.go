// Package ws exposes document sessions over websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/iudanet/gophdocs/internal/server/session"
	"github.com/iudanet/gophdocs/pkg/api"
)

// errLoadFailedText is sent when a JOIN fails for a reason other than a missing document
const errLoadFailedText = "Failed to load document"

// Peer is a connection able to take part in sessions
type Peer interface {
	session.Conn
	// UserID is the authenticated user, empty for anonymous connections
	UserID() string
}

// Dispatcher routes inbound client messages to sessions
type Dispatcher struct {
	registry *session.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over registry
func NewDispatcher(registry *session.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Dispatch handles one raw message from peer.
// Malformed messages and messages for sessions that are not resident are dropped.
// A panic while handling the message is logged and the message is dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, peer Peer, raw []byte) {
	defer func() {
		if err := recover(); err != nil {
			d.logger.Error("Panic recovered while dispatching message",
				slog.String("conn_id", peer.ID()),
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	var msg api.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.logger.Debug("dropping malformed message",
			slog.String("conn_id", peer.ID()),
			slog.Any("error", err))
		return
	}

	userID := msg.UserID
	if id := peer.UserID(); id != "" {
		userID = id
	}

	switch msg.Type {
	case api.MessageJoin:
		d.join(ctx, peer, msg.DocID, userID)
	case api.MessageOperation:
		d.operation(peer, msg, userID)
	case api.MessageCursor:
		if s, ok := d.registry.Lookup(msg.DocID); ok {
			s.Cursor(peer, userID, msg.Cursor)
		}
	case api.MessageLeave:
		if s, ok := d.registry.Lookup(msg.DocID); ok {
			s.Leave(peer)
		}
	default:
		d.logger.Debug("dropping message of unknown type",
			slog.String("conn_id", peer.ID()),
			slog.String("type", string(msg.Type)))
	}
}

// Disconnect removes peer from every session it joined
func (d *Dispatcher) Disconnect(peer Peer) {
	left := d.registry.LeaveAll(peer)
	if len(left) > 0 {
		d.logger.Debug("connection left sessions",
			slog.String("conn_id", peer.ID()),
			slog.Any("doc_ids", left))
	}
}

func (d *Dispatcher) join(ctx context.Context, peer Peer, docID, userID string) {
	if docID == "" {
		return
	}

	s, err := d.registry.GetOrLoad(ctx, docID)
	if err != nil {
		text := api.ErrDocumentNotFoundText
		if !errors.Is(err, session.ErrDocumentNotFound) {
			d.logger.Error("failed to load session",
				slog.String("doc_id", docID),
				slog.Any("error", err))
			text = errLoadFailedText
		}
		d.reply(peer, api.ErrorMessage{Error: text})
		return
	}

	s.Join(peer, userID)
}

func (d *Dispatcher) operation(peer Peer, msg api.ClientMessage, userID string) {
	if msg.Operation == nil {
		return
	}
	s, ok := d.registry.Lookup(msg.DocID)
	if !ok {
		return
	}

	op := *msg.Operation
	op.UserID = userID

	baseVersion := session.LatestVersion
	if msg.Version != nil {
		baseVersion = *msg.Version
	}

	if _, _, err := s.Submit(peer, op, baseVersion); err != nil {
		d.logger.Warn("operation rejected",
			slog.String("doc_id", msg.DocID),
			slog.String("conn_id", peer.ID()),
			slog.Any("error", err))
	}
}

func (d *Dispatcher) reply(peer Peer, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("failed to encode reply", slog.Any("error", err))
		return
	}
	peer.Send(payload)
}
