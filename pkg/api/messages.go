package api

import (
	"encoding/json"

	"github.com/iudanet/gophdocs/pkg/ot"
)

// MessageType tags every websocket message
type MessageType string

const (
	// Client → server
	MessageJoin  MessageType = "JOIN"
	MessageLeave MessageType = "LEAVE"

	// Both directions
	MessageOperation MessageType = "OPERATION"
	MessageCursor    MessageType = "CURSOR"

	// Server → client
	MessageInit       MessageType = "INIT"
	MessageUserJoined MessageType = "USER_JOINED"
	MessageUserLeft   MessageType = "USER_LEFT"
)

// ErrDocumentNotFoundText is sent back when a JOIN names an unknown document
const ErrDocumentNotFoundText = "Document not found"

// ClientMessage is the union of every message a client may send.
// Fields not relevant to Type are ignored.
type ClientMessage struct {
	Operation *ot.Operation   `json:"operation,omitempty"`
	Version   *int            `json:"version,omitempty"` // base version of Operation
	Type      MessageType     `json:"type"`
	DocID     string          `json:"docId"`
	UserID    string          `json:"userId,omitempty"`
	Cursor    json.RawMessage `json:"cursor,omitempty"` // opaque, relayed as is
}

// InitMessage is sent to a connection right after it joins a document
type InitMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Users   []string    `json:"users"` // join order
	Version int         `json:"version"`
}

// OperationMessage announces an applied operation.
// DocID is only filled for messages published outside the websocket.
type OperationMessage struct {
	Type      MessageType  `json:"type"`
	DocID     string       `json:"docId,omitempty"`
	UserID    string       `json:"userId"`
	Operation ot.Operation `json:"operation"`
	Version   int          `json:"version"` // version after the operation
}

// PresenceMessage is USER_JOINED or USER_LEFT
type PresenceMessage struct {
	Type   MessageType `json:"type"`
	UserID string      `json:"userId"`
}

// CursorMessage relays a participant cursor
type CursorMessage struct {
	Type   MessageType     `json:"type"`
	UserID string          `json:"userId"`
	Cursor json.RawMessage `json:"cursor,omitempty"`
}

// ErrorMessage reports a failed request on the websocket
type ErrorMessage struct {
	Error string `json:"error"`
}
