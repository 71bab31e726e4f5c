package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/clewhq/clew/internal/provider"
	"github.com/clewhq/clew/internal/telemetry"
	"github.com/clewhq/clew/internal/tool"
)

// ErrCancelled terminates a turn when its context is cancelled. It is
// named distinctly so callers can tell deliberate cancellation apart from
// other turn failures.
var ErrCancelled = errors.New("turn cancelled")

// Turn drives one request/response exchange with the model. It owns one
// conversation-stream handle, accumulates pending tool calls while the
// stream is open, and collects the function responses that form the next
// model input. A Turn lives exactly as long as one exchange and is not
// restartable.
type Turn struct {
	client    provider.Client
	scheduler *Scheduler
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	// Written only by the processing goroutine; readable after the event
	// channel closes.
	pending   []tool.Call
	outcomes  []Outcome
	responses []provider.FunctionResponse
}

// NewTurn creates a turn over the given client and scheduler.
func NewTurn(client provider.Client, scheduler *Scheduler, logger *slog.Logger, metrics *telemetry.Metrics) *Turn {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Turn{
		client:    client,
		scheduler: scheduler,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("clew/agent"),
	}
}

// Run sends the input to the model and returns a lazy, finite event
// sequence consumed as chunks arrive. An initial connection error is
// returned directly; cancellation and mid-stream errors terminate the
// sequence with an error event. Per-call failures never abort the turn.
func (t *Turn) Run(ctx context.Context, parts []provider.Part) (<-chan Event, error) {
	stream, err := t.client.SendMessageStream(ctx, parts)
	if err != nil {
		return nil, err
	}

	t.metrics.RecordTurn()

	events := make(chan Event, 16)
	go func() {
		defer close(events)

		ctx, span := t.tracer.Start(ctx, "agent.turn")
		defer span.End()

		t.process(ctx, stream, events)
	}()
	return events, nil
}

// Responses returns the model-bound function responses accumulated during
// the turn: one entry per scheduled call, in batch order. Valid once the
// event channel has closed.
func (t *Turn) Responses() []provider.FunctionResponse {
	return t.responses
}

// Outcomes returns every outcome resolved during the turn, in batch
// order. Valid once the event channel has closed.
func (t *Turn) Outcomes() []Outcome {
	return t.outcomes
}

func (t *Turn) process(ctx context.Context, stream <-chan provider.Chunk, events chan<- Event) {
	for chunk := range stream {
		// Cancellation is observed once per chunk boundary; an execution
		// already in flight is never forcibly interrupted here.
		if err := ctx.Err(); err != nil {
			drain(stream)
			events <- Event{Type: EventError, Err: fmt.Errorf("%w: %w", ErrCancelled, err)}
			return
		}

		if chunk.Err != nil {
			events <- Event{Type: EventError, Err: chunk.Err}
			return
		}

		// Text and tool-call chunks are mutually exclusive per chunk.
		if chunk.Text != "" {
			events <- Event{Type: EventContent, Text: chunk.Text}
			continue
		}

		if len(chunk.FunctionCalls) > 0 {
			t.handleCalls(ctx, chunk.FunctionCalls, events)
		}
	}
}

// handleCalls registers the chunk's calls as pending, resolves the whole
// pending batch, emits per-outcome events, and builds the function
// responses for the next model input.
func (t *Turn) handleCalls(ctx context.Context, calls []provider.FunctionCall, events chan<- Event) {
	for _, fc := range calls {
		call := tool.Call{ID: fc.ID, Name: fc.Name, Args: fc.Args}
		if call.ID == "" {
			call.ID = tool.NewCallID(fc.Name)
		}
		t.pending = append(t.pending, call)
		events <- Event{Type: EventToolCall, ToolCall: &ToolCallInfo{Status: StatusPending, Call: call}}
	}

	outcomes := t.scheduler.Schedule(ctx, t.pending)
	t.outcomes = append(t.outcomes, outcomes...)

	// Surface outcomes in batch order. A failed outcome produces one
	// explanatory content line and stops emission for the batch; the
	// remaining outcomes still reach the function responses below.
	for _, out := range outcomes {
		if out.Failed() {
			events <- Event{Type: EventContent, IsError: true, Text: out.FailureMessage()}
			break
		}
		info := &ToolCallInfo{Call: out.Call}
		if out.Confirmation != nil {
			info.Status = StatusConfirming
			info.Confirmation = out.Confirmation
		} else {
			info.Status = StatusInvoked
			if out.Result != nil {
				info.ResultDisplay = out.Result.ReturnDisplay
			}
		}
		events <- Event{Type: EventToolCall, ToolCall: info}
	}

	// Every outcome in the batch becomes a function response, emitted or
	// not. A domain failure is logged by the scheduler but still surfaces
	// as output content, not as a response-level error.
	for _, out := range outcomes {
		t.responses = append(t.responses, buildResponse(out))
	}

	t.pending = t.pending[:0]
}

// buildResponse converts one outcome into its model-bound entry.
func buildResponse(out Outcome) provider.FunctionResponse {
	resp := make(map[string]any, 1)
	switch {
	case out.Err != nil:
		resp["error"] = "Invocation failed: " + out.Err.Error()
	case out.Confirmation != nil:
		resp["output"] = "Tool call is pending user confirmation."
	case out.Result != nil:
		resp["output"] = out.Result.LLMContent
	}
	return provider.FunctionResponse{ID: out.Call.ID, Name: out.Call.Name, Response: resp}
}

// drain consumes the remainder of an abandoned stream so the producing
// goroutine can exit.
func drain(stream <-chan provider.Chunk) {
	for range stream {
	}
}
