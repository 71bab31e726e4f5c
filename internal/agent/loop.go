package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clewhq/clew/internal/provider"
	"github.com/clewhq/clew/internal/telemetry"
	"github.com/clewhq/clew/internal/tool"
)

// ErrMaxTurns terminates the loop when the model keeps requesting tools
// past the configured bound.
var ErrMaxTurns = errors.New("agent: max turns reached")

// Loop drives successive turns for one prompt: each turn's function
// responses become the next turn's input until the model stops requesting
// tool calls. When an Approver is configured, calls held for confirmation
// are decided and re-driven between turns; without one they stay pending
// and the model is told so.
type Loop struct {
	client    provider.Client
	scheduler *Scheduler
	approver  tool.Approver
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	config    LoopConfig
}

// LoopDeps holds the loop's dependencies. Approver, Logger, and Metrics
// are optional.
type LoopDeps struct {
	Client    provider.Client
	Scheduler *Scheduler
	Approver  tool.Approver
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

// NewLoop creates a loop with the given dependencies and config.
func NewLoop(deps LoopDeps, cfg LoopConfig) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		client:    deps.Client,
		scheduler: deps.Scheduler,
		approver:  deps.Approver,
		logger:    logger,
		metrics:   deps.Metrics,
		config:    cfg.withDefaults(),
	}
}

// Run starts the loop for one prompt and streams every turn's events over
// a single channel. The channel closes after a done or error event.
func (l *Loop) Run(ctx context.Context, prompt string) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()

		parts := []provider.Part{provider.TextPart(prompt)}

		for i := 0; i < l.config.MaxTurns; i++ {
			turn := NewTurn(l.client, l.scheduler, l.logger, l.metrics)

			events, err := turn.Run(ctx, parts)
			if err != nil {
				out <- Event{Type: EventError, Err: fmt.Errorf("agent: send message: %w", err)}
				return
			}

			failed := false
			for ev := range events {
				out <- ev
				if ev.Type == EventError {
					failed = true
				}
			}
			if failed {
				return
			}

			responses := turn.Responses()
			if len(responses) == 0 {
				out <- Event{Type: EventDone}
				return
			}

			l.driveConfirmations(ctx, turn.Outcomes(), responses, out)

			parts = parts[:0]
			for _, r := range responses {
				parts = append(parts, provider.ResponsePart(r))
			}
		}

		out <- Event{Type: EventError, Err: ErrMaxTurns}
	}()

	return out
}

// driveConfirmations resolves the turn's held calls: it asks the approver
// for a decision, records it through the confirmation's continuation, and
// on approval executes the call and replaces its function response in
// place. Outcomes and responses are index-aligned by construction.
func (l *Loop) driveConfirmations(ctx context.Context, outcomes []Outcome, responses []provider.FunctionResponse, out chan<- Event) {
	if l.approver == nil {
		return
	}

	for i, oc := range outcomes {
		if oc.Confirmation == nil {
			continue
		}

		decision, err := l.approver.Decide(ctx, oc.Confirmation)
		if err != nil {
			l.logger.Warn("approver failed, treating as cancel",
				"tool", oc.Call.Name,
				"error", err,
			)
			decision = tool.OutcomeCancel
		}
		oc.Confirmation.OnConfirm(decision)
		l.metrics.RecordConfirmation(string(decision))

		if decision == tool.OutcomeCancel {
			responses[i].Response = map[string]any{"error": "User declined tool execution."}
			out <- Event{Type: EventToolCall, ToolCall: &ToolCallInfo{
				Status:        StatusInvoked,
				Call:          oc.Call,
				ResultDisplay: "declined",
			}}
			continue
		}

		redone := l.scheduler.ExecuteApproved(ctx, oc.Call)
		responses[i] = buildResponse(redone)

		if redone.Failed() {
			out <- Event{Type: EventContent, IsError: true, Text: redone.FailureMessage()}
			continue
		}
		info := &ToolCallInfo{Status: StatusInvoked, Call: redone.Call}
		if redone.Result != nil {
			info.ResultDisplay = redone.Result.ReturnDisplay
		}
		out <- Event{Type: EventToolCall, ToolCall: info}
	}
}
