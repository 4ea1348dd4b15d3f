package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/gophdocs/internal/server/handlers"
	"github.com/iudanet/gophdocs/internal/server/middleware"
)

// Defaults applied to zero HandlerConfig fields
const (
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 1 << 20
	DefaultPingInterval   = 30 * time.Second
)

// HandlerConfig configures the websocket endpoint
type HandlerConfig struct {
	// AllowedOrigins restricts browser origins; empty or "*" allows all
	AllowedOrigins []string
	Client         ClientOptions
}

// Handler upgrades HTTP requests to editor connections and tracks them
// so they can be closed on shutdown
type Handler struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	clients    map[*Client]struct{}
	upgrader   websocket.Upgrader
	cfg        HandlerConfig
	wg         sync.WaitGroup
	mu         sync.Mutex
	closing    bool
}

// NewHandler creates a websocket handler
func NewHandler(dispatcher *Dispatcher, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if cfg.Client.SendBuffer <= 0 {
		cfg.Client.SendBuffer = DefaultSendBuffer
	}
	if cfg.Client.MaxMessageSize <= 0 {
		cfg.Client.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.Client.PingInterval <= 0 {
		cfg.Client.PingInterval = DefaultPingInterval
	}

	h := &Handler{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		clients:    make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := handlers.GetUserID(r.Context())

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	c := newClient(conn, userID, h.cfg.Client, h.logger)
	h.track(c)
	defer h.untrack(c)

	h.logger.Info("websocket connected",
		slog.String("conn_id", c.ID()),
		slog.String("user_id", userID),
		slog.String("remote_addr", r.RemoteAddr))

	c.run(r.Context(), h.dispatcher)

	h.logger.Info("websocket disconnected", slog.String("conn_id", c.ID()))
}

// Len returns the number of open connections
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown refuses new connections, closes the open ones and waits for their
// handlers to finish or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for c := range h.clients {
		c.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) track(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.closing {
		c.Close()
	}
}

func (h *Handler) untrack(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return middleware.OriginAllowed(h.cfg.AllowedOrigins, origin)
}
