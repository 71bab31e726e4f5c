package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/clewhq/clew/internal/agent"
	"github.com/clewhq/clew/internal/config"
	"github.com/clewhq/clew/internal/cron"
	"github.com/clewhq/clew/internal/discovery"
	"github.com/clewhq/clew/internal/gateway"
	"github.com/clewhq/clew/internal/mcp"
	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/telemetry"
	"github.com/clewhq/clew/internal/tool"
	"github.com/clewhq/clew/internal/tool/builtin"
	"github.com/clewhq/clew/internal/transcript"
	"github.com/clewhq/clew/internal/transcript/sqlite"
)

// Runtime holds every started component of a clew process. Close releases
// them in reverse construction order.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Audit     *security.AuditLogger
	Metrics   *telemetry.Metrics
	Registry  *tool.Registry
	Scheduler *agent.Scheduler
	Store     transcript.Store
	Gateway   *gateway.Gateway
	Cron      *cron.Scheduler

	mcpManager *mcp.Manager
	closers    []func(context.Context) error
}

// buildRuntime wires all components from the loaded configuration.
// Tool discovery runs synchronously during construction; per-server and
// subprocess failures are logged, not fatal.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, redactor *security.Redactor, version string) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}

	// Audit trail.
	var auditWriter io.Writer
	if cfg.Audit.Path != "" {
		f, err := os.OpenFile(cfg.Audit.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("app: open audit log: %w", err)
		}
		auditWriter = f
		rt.closers = append(rt.closers, func(context.Context) error { return f.Close() })
	}
	rt.Audit = security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditWriter,
		Redactor: redactor,
	})

	// Telemetry.
	rt.Metrics = telemetry.NewMetrics()
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing, version)
		if err != nil {
			return nil, fmt.Errorf("app: setup tracing: %w", err)
		}
		rt.closers = append(rt.closers, shutdown)
	}

	// Tool registry and builtins.
	rt.Registry = tool.NewRegistry(logger)
	if err := builtin.RegisterAll(rt.Registry, builtin.Config{
		Root:        cfg.Tools.Root,
		ShellFilter: security.NewShellFilter(cfg.Tools.Shell),
		URLFilter:   security.NewURLFilter(cfg.Tools.URL),
		Logger:      logger,
	}); err != nil {
		return nil, fmt.Errorf("app: register builtins: %w", err)
	}

	// Subprocess discovery, if configured.
	var discoverer *discovery.Discoverer
	if cfg.Tools.Discovery.DiscoveryCommand != "" {
		discoverer = discovery.NewDiscoverer(cfg.Tools.Discovery, rt.Registry, logger, rt.Audit)
		if _, err := discoverer.Refresh(ctx); err != nil {
			logger.Warn("subprocess tool discovery failed", "error", err)
		}
	}

	// Remote tool servers.
	if len(cfg.Servers) > 0 {
		rt.mcpManager = mcp.NewManager(cfg.Servers, rt.Registry, logger, rt.Audit)
		if _, err := rt.mcpManager.DiscoverAll(ctx); err != nil {
			logger.Warn("tool server discovery failed", "error", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return rt.mcpManager.Close() })
	}

	rt.Scheduler = agent.NewScheduler(agent.SchedulerConfig{
		Registry: rt.Registry,
		Logger:   logger,
		Audit:    rt.Audit,
		Metrics:  rt.Metrics,
	})

	// Transcript store.
	if cfg.Transcript.Path != "" {
		store, err := sqlite.Open(cfg.Transcript.Path)
		if err != nil {
			return nil, fmt.Errorf("app: open transcript store: %w", err)
		}
		rt.Store = store
		rt.closers = append(rt.closers, func(context.Context) error { return store.Close() })
	}

	// Periodic tool re-discovery.
	if cfg.Tools.RefreshSchedule != "" {
		var refreshers []cron.Refresher
		if discoverer != nil {
			refreshers = append(refreshers, discoverer)
		}
		if rt.mcpManager != nil {
			mgr := rt.mcpManager
			refreshers = append(refreshers, cron.RefresherFunc(mgr.DiscoverAll))
		}
		if len(refreshers) > 0 {
			rt.Cron = cron.NewScheduler(logger)
			if err := rt.Cron.RegisterJob(&cron.ToolRefreshJob{
				Refreshers:   refreshers,
				Logger:       logger,
				ScheduleExpr: cfg.Tools.RefreshSchedule,
			}); err != nil {
				return nil, err
			}
			if err := rt.Cron.Start(); err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, rt.Cron.Stop)
		}
	}

	// Admin gateway.
	if cfg.Gateway.Enabled {
		deps := gateway.Deps{
			Registry: rt.Registry,
			Store:    rt.Store,
			Metrics:  rt.Metrics,
			Audit:    rt.Audit,
			Logger:   logger,
		}
		if rt.Cron != nil {
			deps.Jobs = rt.Cron.Jobs
		}
		rt.Gateway = gateway.New(gateway.Config{
			Listen:    cfg.Gateway.Listen,
			AuthToken: cfg.Gateway.AuthToken,
		}, deps)
		if err := rt.Gateway.Start(); err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rt.Gateway.Stop)
	}

	return rt, nil
}

// Close shuts every component down in reverse construction order.
func (rt *Runtime) Close(ctx context.Context) error {
	var lastErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.Logger.Warn("shutdown step failed", "error", err)
			lastErr = err
		}
	}
	return lastErr
}
