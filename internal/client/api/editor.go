package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophdocs/pkg/api"
	"github.com/iudanet/gophdocs/pkg/ot"
)

const editorWriteWait = 10 * time.Second

// ErrJoinRejected is returned when the server answers a JOIN with an error
var ErrJoinRejected = errors.New("join rejected")

// Event is one message received on an editing connection.
// Error messages carry no type; Type is empty and Error is set.
type Event struct {
	Type  api.MessageType
	Error string
	Raw   json.RawMessage
}

// Decode unmarshals the raw message into v
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Editor is a live websocket connection to the editing endpoint
type Editor struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens an editing connection to /ws. The API token, if any, is sent
// as a bearer header.
func (c *Client) Dial(ctx context.Context) (*Editor, error) {
	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL+"/ws", header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed: %w", &StatusError{StatusCode: resp.StatusCode, Message: resp.Status})
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &Editor{conn: conn}, nil
}

func websocketURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://"), nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://"), nil
	case strings.HasPrefix(baseURL, "ws://"), strings.HasPrefix(baseURL, "wss://"):
		return baseURL, nil
	default:
		return "", fmt.Errorf("unsupported server URL scheme: %q", baseURL)
	}
}

// Join subscribes to a document and waits for its INIT snapshot.
// Messages arriving before INIT are skipped.
func (e *Editor) Join(ctx context.Context, docID, userID string) (*api.InitMessage, error) {
	if err := e.send(api.ClientMessage{Type: api.MessageJoin, DocID: docID, UserID: userID}); err != nil {
		return nil, err
	}

	for {
		ev, err := e.Next(ctx)
		if err != nil {
			return nil, err
		}
		if ev.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrJoinRejected, ev.Error)
		}
		if ev.Type != api.MessageInit {
			continue
		}

		var init api.InitMessage
		if err := ev.Decode(&init); err != nil {
			return nil, fmt.Errorf("failed to decode init message: %w", err)
		}
		return &init, nil
	}
}

// Leave unsubscribes from a document
func (e *Editor) Leave(docID string) error {
	return e.send(api.ClientMessage{Type: api.MessageLeave, DocID: docID})
}

// Submit sends an operation composed against baseVersion
func (e *Editor) Submit(docID string, op ot.Operation, baseVersion int) error {
	return e.send(api.ClientMessage{
		Type:      api.MessageOperation,
		DocID:     docID,
		Operation: &op,
		Version:   &baseVersion,
	})
}

// Cursor relays an opaque cursor payload to the other participants
func (e *Editor) Cursor(docID string, cursor json.RawMessage) error {
	return e.send(api.ClientMessage{Type: api.MessageCursor, DocID: docID, Cursor: cursor})
}

// Next blocks until the next server message arrives or ctx is done.
// Once ctx has ended the connection can no longer be read.
func (e *Editor) Next(ctx context.Context) (Event, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = e.conn.SetReadDeadline(deadline)
	} else {
		_ = e.conn.SetReadDeadline(time.Time{})
	}

	stop := context.AfterFunc(ctx, func() {
		// разблокируем ReadMessage
		_ = e.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := e.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Event{}, ctxErr
		}
		return Event{}, fmt.Errorf("failed to read message: %w", err)
	}

	var head struct {
		Type  api.MessageType `json:"type"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Event{}, fmt.Errorf("failed to decode message: %w", err)
	}

	return Event{Type: head.Type, Error: head.Error, Raw: data}, nil
}

// Close sends a close frame and closes the connection
func (e *Editor) Close() error {
	e.writeMu.Lock()
	_ = e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(editorWriteWait))
	e.writeMu.Unlock()

	return e.conn.Close()
}

func (e *Editor) send(msg api.ClientMessage) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	_ = e.conn.SetWriteDeadline(time.Now().Add(editorWriteWait))
	if err := e.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}
