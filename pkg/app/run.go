// Package app provides the shared entry point for the clew binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/clewhq/clew/internal/agent"
	"github.com/clewhq/clew/internal/config"
	"github.com/clewhq/clew/internal/console"
	"github.com/clewhq/clew/internal/provider"
	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/transcript"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// Prompt, when non-empty, runs a single agent session for the prompt
	// and exits. When empty the process serves until a shutdown signal.
	Prompt string

	// SessionID names the transcript session for prompt mode. A fresh
	// UUID is generated when empty.
	SessionID string

	// Accessible enables screen-reader friendly confirmation prompts.
	Accessible bool

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// Stdout receives agent output in prompt mode. Defaults to os.Stdout.
	Stdout io.Writer
}

// Run loads configuration, wires all components, and either executes a
// single prompt or serves until a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.LoadAndValidate(cfgPath)
	if err != nil {
		return err
	}

	// Redactor first so no handler ever sees a raw secret.
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Model.APIKey)
	redactor.AddLiteral(cfg.Gateway.AuthToken)
	logger := newLogger(cfg.Logging, params.LogLevel, redactor)

	rt, err := buildRuntime(ctx, cfg, logger, redactor, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}()

	logger.Info("clew started",
		"version", params.Version,
		"tools", len(rt.Registry.Names()),
		"gateway", cfg.Gateway.Enabled,
	)

	if params.Prompt != "" {
		return runPrompt(ctx, rt, params)
	}
	return serve(ctx, rt, logger)
}

// runPrompt executes one agent session for the given prompt, printing
// content events to stdout and recording the transcript.
func runPrompt(ctx context.Context, rt *Runtime, params RunParams) error {
	cfg := rt.Config

	client, err := provider.New(cfg.Model.Provider, provider.Settings{
		Model:   cfg.Model.Name,
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
	})
	if err != nil {
		return err
	}

	loop := agent.NewLoop(agent.LoopDeps{
		Client:    client,
		Scheduler: rt.Scheduler,
		Approver:  console.NewApprover(params.Accessible),
		Logger:    rt.Logger,
		Metrics:   rt.Metrics,
	}, cfg.Loop)

	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	recorder := transcript.NewRecorder(rt.Store, sessionID, rt.Logger)
	recorder.RecordPrompt(ctx, params.Prompt)

	stdout := params.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var runErr error
	for ev := range loop.Run(ctx, params.Prompt) {
		recorder.RecordEvent(ctx, ev)
		if rt.Gateway != nil {
			rt.Gateway.Hub().Publish(ev)
		}
		switch ev.Type {
		case agent.EventContent:
			fmt.Fprint(stdout, ev.Text)
		case agent.EventToolCall:
			if tc := ev.ToolCall; tc != nil {
				rt.Logger.Info("tool call", "tool", tc.Call.Name, "status", tc.Status)
			}
		case agent.EventError:
			runErr = ev.Err
		}
	}
	fmt.Fprintln(stdout)
	return runErr
}

// serve blocks until SIGINT or SIGTERM. The gateway, cron jobs, and any
// configured tool servers keep running in the background.
func serve(ctx context.Context, rt *Runtime, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	return nil
}

// newLogger builds the process logger per the logging config, wrapped in
// a redacting handler to prevent secret leakage.
func newLogger(cfg config.LoggingConfig, level slog.Level, redactor *security.Redactor) *slog.Logger {
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = slog.LevelInfo
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.Format == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/clew/clew.yaml → ~/.config/clew/clew.yaml → ./clew.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "clew", "clew.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "clew", "clew.yaml"))
	}

	candidates = append(candidates, "clew.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
