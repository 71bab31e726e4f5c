// Package gateway exposes the admin HTTP surface: health and status
// endpoints, the tool inventory, recorded sessions, Prometheus metrics,
// and a WebSocket event stream.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/clewhq/clew/internal/cron"
	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/telemetry"
	"github.com/clewhq/clew/internal/tool"
	"github.com/clewhq/clew/internal/transcript"
)

// Timeouts for the HTTP server. The write timeout is generous because
// /ws/events holds its connection open.
const (
	readTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Config configures the gateway listener.
type Config struct {
	Listen string

	// AuthToken, when set, protects everything except /health with bearer
	// auth. When empty only /health is served.
	AuthToken string
}

// Deps are the gateway's collaborators. Store, Metrics, Audit, and Jobs
// may be nil; the corresponding endpoints degrade gracefully.
type Deps struct {
	Registry *tool.Registry
	Store    transcript.Store
	Metrics  *telemetry.Metrics
	Audit    *security.AuditLogger
	Logger   *slog.Logger

	// Jobs reports scheduled background jobs for the status endpoint.
	Jobs func() []cron.JobStatus
}

// Gateway is the admin HTTP server.
type Gateway struct {
	cfg       Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	hub       *EventHub
	startedAt time.Time
}

// New creates a gateway. Call Start to begin serving.
func New(cfg Config, deps Deps) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		hub:    NewEventHub(),
	}
}

// Hub returns the event hub; the application publishes agent events into
// it and /ws/events streams them out.
func (g *Gateway) Hub() *EventHub { return g.hub }

// Start binds the listener and serves in a background goroutine.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:        g.cfg.Listen,
		Handler:     g.buildRouter(),
		ReadTimeout: readTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.cfg.Listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.cfg.Listen)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	g.hub.close()
	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
