package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/tool"
)

// DefaultCommandTimeout bounds one shell invocation.
const DefaultCommandTimeout = 2 * time.Minute

// RunCommandTool executes a shell command line, gated by the configured
// shell filter and by user confirmation.
type RunCommandTool struct {
	filter  *security.ShellFilter
	logger  *slog.Logger
	timeout time.Duration

	// approvedRoots holds command roots the user approved with an always
	// decision; commands whose every root is approved skip confirmation
	// for the rest of the session.
	mu            sync.Mutex
	approvedRoots map[string]struct{}
}

// NewRunCommandTool creates the run_command builtin. A nil filter means no
// policy restriction; every command still requires confirmation.
func NewRunCommandTool(filter *security.ShellFilter, logger *slog.Logger) *RunCommandTool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RunCommandTool{
		filter:        filter,
		logger:        logger,
		timeout:       DefaultCommandTimeout,
		approvedRoots: make(map[string]struct{}),
	}
}

func (t *RunCommandTool) Name() string        { return "run_command" }
func (t *RunCommandTool) DisplayName() string { return "RunCommand" }
func (t *RunCommandTool) Description() string {
	return "Executes a shell command line and returns its output."
}

func (t *RunCommandTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command line to execute"}
		},
		"required": ["command"]
	}`)
}

// ShouldConfirmExecute applies the shell policy first: a command the
// filter rejects never executes and never reaches the user. Policy-clean
// commands need confirmation unless every command root was previously
// approved with an always decision.
func (t *RunCommandTool) ShouldConfirmExecute(_ context.Context, args json.RawMessage) (*tool.Confirmation, error) {
	command, err := decodeCommand(args)
	if err != nil {
		return nil, err
	}

	if t.filter != nil {
		if decision := t.filter.Check(command); !decision.Allowed {
			t.logger.Warn("shell command rejected by policy", "command", command, "reason", decision.Reason)
			return nil, errors.New(decision.Reason)
		}
	}

	roots := security.CommandRoots(command)
	if t.rootsApproved(roots) {
		return nil, nil
	}

	return &tool.Confirmation{
		Kind:     tool.ConfirmExec,
		Title:    fmt.Sprintf("Run shell command: %s", command),
		ToolName: t.Name(),
		Command:  command,
		OnConfirm: func(outcome tool.Outcome) {
			if outcome == tool.OutcomeProceedAlwaysTool {
				t.approveRoots(roots)
			}
		},
	}, nil
}

func (t *RunCommandTool) rootsApproved(roots []string) bool {
	if len(roots) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range roots {
		if _, ok := t.approvedRoots[r]; !ok {
			return false
		}
	}
	return true
}

func (t *RunCommandTool) approveRoots(roots []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range roots {
		t.approvedRoots[r] = struct{}{}
	}
}

// Execute runs the command through the system shell. A non-zero exit is a
// domain failure carried in the result.
func (t *RunCommandTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	command, err := decodeCommand(args)
	if err != nil {
		return tool.Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := truncate(stdout.String())

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		detail := fmt.Sprintf("command failed (exit %d)\nstdout: %s\nstderr: %s",
			exitCode, strings.TrimSpace(output), strings.TrimSpace(truncate(stderr.String())))
		return tool.Result{LLMContent: detail, ReturnDisplay: detail, Err: detail}, nil
	}

	return tool.Result{
		LLMContent:    output,
		ReturnDisplay: fmt.Sprintf("$ %s\n%s", command, output),
	}, nil
}

func decodeCommand(args json.RawMessage) (string, error) {
	var params struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("run_command: decode arguments: %w", err)
	}
	if strings.TrimSpace(params.Command) == "" {
		return "", errors.New("run_command: command is required")
	}
	return params.Command, nil
}

var _ tool.Tool = (*RunCommandTool)(nil)
