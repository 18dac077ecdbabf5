package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freshershub/internal/api"
	"freshershub/internal/config"
	"freshershub/internal/database"
	"freshershub/internal/hub"
	"freshershub/internal/router"
	"freshershub/internal/session"
	"freshershub/internal/websocket"
	"freshershub/pkg/interfaces"
	"freshershub/pkg/logger"
)

// Application coordinates all server components
// Component initialization follows strict dependency order:
// Database -> Session -> Registry -> Router -> Hub -> API -> HTTP
type Application struct {
	config     *config.Config
	log        logger.Logger
	db         *database.Manager
	sessions   *session.Manager
	registry   *websocket.Registry
	router     *router.Router
	hub        *hub.Hub
	api        *api.Server
	handler    http.Handler
	httpServer *http.Server
}

func NewApplication(cfg *config.Config, log logger.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	// STEP 1: database (chat history)
	if dir := filepath.Dir(cfg.Database.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dbCfg := cfg.Database
	db, err := database.NewManager(&dbCfg, log.With(zap.String("component", "database")))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 2: token verification and session tracking
	sessions := session.NewManager(newVerifier(cfg.Auth), log.With(zap.String("component", "session")))

	// STEP 3-5: registry, router, hub
	registry := websocket.NewRegistry()
	limiter := router.NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Window)
	r := router.NewRouter(db, limiter, log.With(zap.String("component", "router")))
	h := hub.NewHub(registry, r, log.With(zap.String("component", "hub")))

	// STEP 6-7: HTTP API and websocket endpoint
	apiServer := api.NewServer(h, r, db, sessions, cfg.Auth.AdminToken, log.With(zap.String("component", "api")))
	wsHandler := websocket.NewHandler(registry, sessions, h, cfg.WebSocket, log.With(zap.String("component", "websocket")))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.Handle("/ws", wsHandler)

	return &Application{
		config:   cfg,
		log:      log,
		db:       db,
		sessions: sessions,
		registry: registry,
		router:   r,
		hub:      h,
		api:      apiServer,
		handler:  mux,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr(),
			Handler:      mux,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}, nil
}

// newVerifier picks the external auth service when configured, else the static table
func newVerifier(cfg config.AuthConfig) interfaces.Verifier {
	if cfg.VerifyURL != "" {
		return session.NewHTTPVerifier(cfg.VerifyURL, cfg.VerifyTimeout)
	}
	return session.NewStaticVerifier(cfg.Tokens)
}

// Handler exposes the routes for tests that serve through httptest
func (app *Application) Handler() http.Handler { return app.handler }

// Hub exposes the hub for tests and embedding
func (app *Application) Hub() *hub.Hub { return app.hub }

// Run starts the hub and serves HTTP until ctx is cancelled, then shuts down
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := app.hub.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start hub: %w", err)
	}
	app.log.Info("serving", zap.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Stop(shutdownCtx)
	})
	return g.Wait()
}

// Stop shuts down in reverse dependency order: HTTP -> Hub -> Database
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down")

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	for _, c := range app.registry.All() {
		_ = c.Close()
	}
	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub stop: %w", err))
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}

// Addr returns the configured listen address
func (app *Application) Addr() string { return app.httpServer.Addr }
