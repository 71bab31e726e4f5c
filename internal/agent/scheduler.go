package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/telemetry"
	"github.com/clewhq/clew/internal/tool"
)

// Scheduler resolves batches of pending tool calls into outcomes. It never
// executes a side-effecting call before its confirmation check passes, and
// it never prompts: a call needing approval is returned with its
// confirmation attached for the surrounding application to drive.
type Scheduler struct {
	registry *tool.Registry
	logger   *slog.Logger
	audit    *security.AuditLogger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// SchedulerConfig holds the scheduler's dependencies. Logger, Audit, and
// Metrics are optional.
type SchedulerConfig struct {
	Registry *tool.Registry
	Logger   *slog.Logger
	Audit    *security.AuditLogger
	Metrics  *telemetry.Metrics
}

// NewScheduler creates a scheduler over the given registry.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		registry: cfg.Registry,
		logger:   logger,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("clew/agent"),
	}
}

// Schedule resolves every call in the batch concurrently and returns the
// outcomes in input order regardless of completion order.
func (s *Scheduler) Schedule(ctx context.Context, calls []tool.Call) []Outcome {
	outcomes := make([]Outcome, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c tool.Call) {
			defer wg.Done()
			outcomes[idx] = s.resolve(ctx, c)
		}(i, call)
	}

	wg.Wait()
	return outcomes
}

// resolve handles one call: lookup, confirmation check, then execution.
func (s *Scheduler) resolve(ctx context.Context, call tool.Call) (out Outcome) {
	out.Call = call

	ctx, span := s.tracer.Start(ctx, "tool.resolve",
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		),
	)
	defer span.End()

	start := time.Now()

	// Panics inside a tool are folded into the outcome so one broken tool
	// cannot take down the turn.
	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Confirmation = nil
			out.Err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
			s.record(call, "panic", start)
		}
	}()

	s.audit.Log(security.AuditEvent{
		Type:     security.EventToolCall,
		CallID:   call.ID,
		ToolName: call.Name,
		Detail:   string(call.Args),
	})

	t, err := s.registry.Get(call.Name)
	if err != nil {
		out.Err = fmt.Errorf("Tool %q %w.", call.Name, tool.ErrNotFound)
		s.record(call, "not_found", start)
		return out
	}

	confirmation, err := t.ShouldConfirmExecute(ctx, call.Args)
	if err != nil {
		out.Err = fmt.Errorf("confirmation check for %q: %w", call.Name, err)
		s.record(call, "error", start)
		return out
	}
	if confirmation != nil {
		out.Confirmation = confirmation
		s.record(call, "confirming", start)
		return out
	}

	return s.execute(ctx, t, call, start, &out)
}

// ExecuteApproved runs a call whose confirmation has already been granted,
// bypassing the confirmation check. Used by the application to re-drive a
// call after the human decides.
func (s *Scheduler) ExecuteApproved(ctx context.Context, call tool.Call) Outcome {
	out := Outcome{Call: call}

	t, err := s.registry.Get(call.Name)
	if err != nil {
		out.Err = fmt.Errorf("Tool %q %w.", call.Name, tool.ErrNotFound)
		return out
	}

	s.execute(ctx, t, call, time.Now(), &out)
	return out
}

func (s *Scheduler) execute(ctx context.Context, t tool.Tool, call tool.Call, start time.Time, out *Outcome) Outcome {
	result, err := t.Execute(ctx, call.Args)
	if err != nil {
		out.Err = err
		s.audit.Log(security.AuditEvent{
			Type:     security.EventToolResult,
			CallID:   call.ID,
			ToolName: call.Name,
			Detail:   "error: " + err.Error(),
		})
		s.record(call, "error", start)
		return *out
	}

	out.Result = &result
	status := "ok"
	detail := result.LLMContent
	if result.Err != "" {
		// Domain failure: the tool completed but the operation failed.
		status = "failed"
		detail = result.Err
		s.logger.Warn("tool reported a failure",
			"tool", call.Name,
			"call_id", call.ID,
			"error", result.Err,
		)
	}
	s.audit.Log(security.AuditEvent{
		Type:     security.EventToolResult,
		CallID:   call.ID,
		ToolName: call.Name,
		Detail:   detail,
		Metadata: map[string]string{"status": status},
	})
	s.record(call, status, start)
	return *out
}

func (s *Scheduler) record(call tool.Call, status string, start time.Time) {
	s.metrics.RecordToolCall(call.Name, status, time.Since(start))
}
