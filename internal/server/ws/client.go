package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const writeWait = 10 * time.Second

// Client is one websocket connection.
// Reads are dispatched inline; writes go through a bounded queue drained by
// a dedicated goroutine, so Send never blocks a session.
type Client struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	send      chan []byte
	done      chan struct{}
	id        string
	userID    string
	closeOnce sync.Once
	opts      ClientOptions
}

// ClientOptions tune a connection
type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
}

func newClient(conn *websocket.Conn, userID string, opts ClientOptions, logger *slog.Logger) *Client {
	id := ulid.Make().String()
	return &Client{
		conn:   conn,
		id:     id,
		userID: userID,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("conn_id", id)),
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user, if any
func (c *Client) UserID() string { return c.userID }

// Send queues payload. A client whose queue is full is disconnected.
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("send buffer full, closing connection",
			slog.Int("buffer", cap(c.send)))
		c.Close()
		return false
	}
}

// Close stops the connection. It is safe to call from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// run serves the connection until it is closed
func (c *Client) run(ctx context.Context, dispatcher *Dispatcher) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	defer dispatcher.Disconnect(c)
	defer func() {
		c.Close()
		<-writerDone
	}()

	c.readPump(ctx, dispatcher)
}

func (c *Client) readPump(ctx context.Context, dispatcher *Dispatcher) {
	pongWait := c.opts.PingInterval * 2

	if c.opts.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection read failed", slog.Any("error", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		dispatcher.Dispatch(ctx, c, payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("connection write failed", slog.Any("error", err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.write(websocket.CloseMessage, msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("failed to send close frame", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
