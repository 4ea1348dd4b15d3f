// Package server assembles the document store, live sessions and HTTP
// endpoints into a runnable server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophdocs/internal/config"
	"github.com/iudanet/gophdocs/internal/server/events"
	"github.com/iudanet/gophdocs/internal/server/handlers"
	"github.com/iudanet/gophdocs/internal/server/middleware"
	"github.com/iudanet/gophdocs/internal/server/session"
	"github.com/iudanet/gophdocs/internal/server/storage"
	"github.com/iudanet/gophdocs/internal/server/storage/boltdb"
	"github.com/iudanet/gophdocs/internal/server/storage/postgres"
	"github.com/iudanet/gophdocs/internal/server/storage/sqlite"
	"github.com/iudanet/gophdocs/internal/server/ws"
)

const readHeaderTimeout = 10 * time.Second

// Server is a configured, not yet listening, collaborative editing server
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.DocumentStorage
	publisher  *events.RedisPublisher
	persister  *session.Persister
	registry   *session.Registry
	ws         *ws.Handler
	limiter    *middleware.RateLimiter
	handler    http.Handler
	httpServer *http.Server
}

// New opens the configured store and optional Redis mirror and builds the server
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	store, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher *events.RedisPublisher
	if cfg.RedisAddr != "" {
		publisher, err = events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannelPrefix, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return NewWithStorage(cfg, store, publisher, version, logger), nil
}

// NewWithStorage builds the server around an open store.
// publisher may be nil. The server takes ownership of both.
func NewWithStorage(cfg *config.Config, store storage.DocumentStorage, publisher *events.RedisPublisher, version string, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		publisher: publisher,
	}

	// nil *RedisPublisher не должен превратиться в non-nil интерфейс
	var pub session.Publisher
	if publisher != nil {
		pub = publisher
	}

	s.persister = session.NewPersister(store, pub, cfg.PersistWorkers, cfg.PersistQueue, logger)
	s.registry = session.NewRegistry(store, s.persister, logger)
	s.ws = ws.NewHandler(ws.NewDispatcher(s.registry, logger), ws.HandlerConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Client: ws.ClientOptions{
			SendBuffer:     cfg.SendBuffer,
			MaxMessageSize: cfg.MaxMessageSize,
			PingInterval:   cfg.PingInterval,
		},
	}, logger)
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)
	}

	s.handler = s.routes(version)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return s
}

// OpenStorage opens the store selected by cfg.StorageDriver
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.DocumentStorage, error) {
	var (
		store storage.DocumentStorage
		err   error
	)

	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err = openStore(sqlite.New(ctx, cfg.DatabaseDSN))
	case config.DriverPostgres:
		store, err = openStore(postgres.New(ctx, cfg.DatabaseDSN))
	case config.DriverBolt:
		store, err = openStore(boltdb.New(ctx, cfg.DatabaseDSN))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageDriver, err)
	}
	return store, nil
}

// openStore не дает nil указателю из упавшего конструктора попасть в интерфейс
func openStore[T storage.DocumentStorage](store T, err error) (storage.DocumentStorage, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Server) routes(version string) http.Handler {
	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(s.cfg.JWTSecret),
		AccessTokenTTL: s.cfg.JWTTTL,
	}
	auth := middleware.AuthMiddleware(s.logger, jwtConfig)

	r := mux.NewRouter()

	health := handlers.NewHealthHandler(s.logger, version)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	docs := r.PathPrefix("/api/documents").Subrouter()
	if s.limiter != nil {
		docs.Use(middleware.RateLimitMiddleware(s.limiter))
	}
	docs.Use(auth)
	handlers.NewDocumentHandler(s.logger, s.store).Register(docs)

	r.Handle("/ws", auth(s.ws)).Methods(http.MethodGet)

	// снаружи роутера, чтобы покрыть preflight и ответы 404/405
	var h http.Handler = r
	h = middleware.CORSMiddleware(s.cfg.AllowedOrigins)(h)
	h = middleware.LoggingWithSkip(s.logger, []string{"/health"})(h)
	h = middleware.RecoveryMiddleware(s.logger)(h)
	return h
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the live session registry
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Run listens on the configured address until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully and releases every resource the server owns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening",
			slog.String("addr", ln.Addr().String()),
			slog.String("storage", s.cfg.StorageDriver))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.shutdown(shutdownCtx)
	})

	return g.Wait()
}

// shutdown stops accepting requests, disconnects editors, drains pending
// writes and closes the store
func (s *Server) shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.ws.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket shutdown: %w", err))
	}

	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Close releases resources without waiting for connections.
// Pending writes are drained before the store is closed.
func (s *Server) Close() error {
	var errs []error

	s.persister.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	return errors.Join(errs...)
}
