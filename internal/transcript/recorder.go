package transcript

import (
	"context"
	"log/slog"

	"github.com/clewhq/clew/internal/agent"
)

// Recorder converts agent events into transcript entries. A nil store
// makes every method a no-op, so callers never need to branch on whether
// persistence is configured.
type Recorder struct {
	store     Store
	sessionID string
	logger    *slog.Logger
}

// NewRecorder creates a recorder for one session.
func NewRecorder(store Store, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: store, sessionID: sessionID, logger: logger}
}

// RecordPrompt records the user input that started a loop run.
func (r *Recorder) RecordPrompt(ctx context.Context, prompt string) {
	r.append(ctx, Entry{Kind: KindPrompt, Text: prompt})
}

// RecordEvent records one agent event. Done events carry no payload and
// are skipped.
func (r *Recorder) RecordEvent(ctx context.Context, ev agent.Event) {
	switch ev.Type {
	case agent.EventContent:
		r.append(ctx, Entry{Kind: KindContent, Text: ev.Text, IsError: ev.IsError})
	case agent.EventToolCall:
		if ev.ToolCall == nil {
			return
		}
		r.append(ctx, Entry{
			Kind:     KindToolCall,
			ToolName: ev.ToolCall.Call.Name,
			CallID:   ev.ToolCall.Call.ID,
			Status:   string(ev.ToolCall.Status),
			Text:     ev.ToolCall.ResultDisplay,
		})
	case agent.EventError:
		if ev.Err != nil {
			r.append(ctx, Entry{Kind: KindError, Text: ev.Err.Error(), IsError: true})
		}
	}
}

func (r *Recorder) append(ctx context.Context, e Entry) {
	if r == nil || r.store == nil {
		return
	}
	e.SessionID = r.sessionID
	if err := r.store.Append(ctx, e); err != nil {
		// A transcript write failure never interrupts the session.
		r.logger.Warn("transcript append failed", "session", r.sessionID, "error", err)
	}
}
