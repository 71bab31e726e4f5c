// Package discovery registers tools exposed by project-local subprocesses.
// A configured discovery command prints function declarations as JSON; each
// declaration becomes a registry entry whose execution shells out to the
// configured call command.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/tool"
)

// Sentinel errors for subprocess discovery.
var (
	ErrNoDiscoveryCommand = errors.New("discovery: no discovery command configured")
	ErrNoCallCommand      = errors.New("discovery: no call command configured")
)

// DefaultTimeout bounds both the discovery run and each tool call.
const DefaultTimeout = 30 * time.Second

// Config configures subprocess tool discovery.
type Config struct {
	// DiscoveryCommand is run once per refresh; its stdout must be a JSON
	// array of function-declaration groups.
	DiscoveryCommand string `yaml:"discovery_command"`

	// CallCommand is run per tool call with the tool name appended as the
	// final argument and the call arguments written to stdin as JSON.
	CallCommand string `yaml:"call_command"`

	// Timeout bounds each subprocess run. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`
}

// declarationGroup is one element of the discovery command's output.
type declarationGroup struct {
	FunctionDeclarations []declaration `json:"function_declarations"`
}

type declaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Discoverer runs the discovery command and registers the tools it reports.
type Discoverer struct {
	cfg      Config
	registry *tool.Registry
	logger   *slog.Logger
	audit    *security.AuditLogger
}

// NewDiscoverer creates a discoverer over the given registry. The audit
// logger may be nil.
func NewDiscoverer(cfg Config, registry *tool.Registry, logger *slog.Logger, audit *security.AuditLogger) *Discoverer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Discoverer{cfg: cfg, registry: registry, logger: logger, audit: audit}
}

// Refresh drops every previously discovered subprocess tool and runs the
// discovery command again. It returns the number of tools registered.
func (d *Discoverer) Refresh(ctx context.Context) (int, error) {
	if strings.TrimSpace(d.cfg.DiscoveryCommand) == "" {
		return 0, ErrNoDiscoveryCommand
	}
	if strings.TrimSpace(d.cfg.CallCommand) == "" {
		return 0, ErrNoCallCommand
	}

	removed := d.registry.RemoveSource(tool.SourceSubprocess)
	if removed > 0 {
		d.logger.Debug("dropped previously discovered tools", "count", removed)
	}

	out, err := d.runDiscovery(ctx)
	if err != nil {
		return 0, err
	}

	var groups []declarationGroup
	if err := json.Unmarshal(out, &groups); err != nil {
		return 0, fmt.Errorf("discovery: parse output: %w", err)
	}

	registered := 0
	for _, g := range groups {
		for _, decl := range g.FunctionDeclarations {
			if strings.TrimSpace(decl.Name) == "" {
				d.logger.Warn("skipping declaration with empty name")
				continue
			}
			st := &subprocessTool{
				decl:        decl,
				callCommand: d.cfg.CallCommand,
				timeout:     d.cfg.Timeout,
			}
			if err := d.registry.Register(st, tool.SourceSubprocess); err != nil {
				d.logger.Warn("failed to register discovered tool", "tool", decl.Name, "error", err)
				continue
			}
			registered++
		}
	}

	d.logger.Info("subprocess discovery complete", "registered", registered)
	d.audit.Log(security.AuditEvent{
		Type:   security.EventDiscovery,
		Detail: fmt.Sprintf("subprocess discovery registered %d tools", registered),
	})
	return registered, nil
}

func (d *Discoverer) runDiscovery(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	argv := strings.Fields(d.cfg.DiscoveryCommand)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("discovery: command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// subprocessTool is a registry entry backed by the project's call command.
type subprocessTool struct {
	decl        declaration
	callCommand string
	timeout     time.Duration
}

func (s *subprocessTool) Name() string        { return s.decl.Name }
func (s *subprocessTool) DisplayName() string { return s.decl.Name }
func (s *subprocessTool) Description() string { return s.decl.Description }

func (s *subprocessTool) Schema() json.RawMessage {
	if len(s.decl.Parameters) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return s.decl.Parameters
}

// ShouldConfirmExecute always pre-approves: discovered tools belong to the
// project that configured the discovery command.
func (s *subprocessTool) ShouldConfirmExecute(context.Context, json.RawMessage) (*tool.Confirmation, error) {
	return nil, nil
}

// Execute runs the call command with the tool name appended and the
// arguments on stdin. A non-zero exit or any stderr output is a domain
// failure carried in the result, never an invocation error: the model gets
// to see the exit code and both output streams.
func (s *subprocessTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	argv := strings.Fields(s.callCommand)
	argv = append(argv, s.decl.Name)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	cmd.Stdin = bytes.NewReader(args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil || stderr.Len() > 0 {
		exitCode := 0
		if err != nil {
			exitCode = -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
		}
		detail := fmt.Sprintf("tool %q failed (exit %d)\nstdout: %s\nstderr: %s",
			s.decl.Name, exitCode, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
		return tool.Result{
			LLMContent:    detail,
			ReturnDisplay: detail,
			Err:           detail,
		}, nil
	}

	content := stdout.String()
	return tool.Result{LLMContent: content, ReturnDisplay: content}, nil
}

var _ tool.Tool = (*subprocessTool)(nil)
