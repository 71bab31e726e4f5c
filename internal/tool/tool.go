// Package tool defines the capability model for clew: the Tool interface,
// call and result types, the confirmation flow, and the registry that maps
// tool names to implementations. Tools are the primary security boundary:
// every action the model takes goes through a registered tool, and every
// side-effecting tool passes a confirmation check before it runs.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Call is a single tool invocation requested by the model.
// It is immutable once created.
type Call struct {
	// ID uniquely identifies the call within a turn. Either supplied by
	// the model or synthesized via NewCallID.
	ID string

	// Name is the registry key of the requested tool.
	Name string

	// Args are the raw JSON arguments for the tool.
	Args json.RawMessage
}

// NewCallID synthesizes a call ID for models that do not supply one.
// The timestamp plus a random suffix guarantees uniqueness within a turn.
func NewCallID(name string) string {
	return fmt.Sprintf("%s-%d-%s", name, time.Now().UnixNano(), uuid.NewString()[:8])
}

// Result is the outcome of a completed tool execution.
type Result struct {
	// LLMContent is the content fed back to the model.
	LLMContent string

	// ReturnDisplay is a human-oriented rendering of the result.
	ReturnDisplay string

	// Err, when non-empty, reports a domain failure: the tool ran to
	// completion but the operation itself failed. Distinct from an error
	// returned by Execute, which means the invocation itself broke.
	Err string
}

// Tool is the interface all clew capabilities implement, whether built in,
// discovered from a subprocess, or discovered from a remote server.
type Tool interface {
	// Name returns the unique registry key for this tool.
	Name() string

	// DisplayName returns a human-readable name for UI surfaces.
	DisplayName() string

	// Description returns what the tool does, for the model and for humans.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// ShouldConfirmExecute decides whether the call needs human approval.
	// A nil Confirmation means the tool is pre-approved and may execute
	// immediately.
	ShouldConfirmExecute(ctx context.Context, args json.RawMessage) (*Confirmation, error)

	// Execute runs the tool. Implementations observe ctx for cooperative
	// cancellation during their own I/O; callers do not forcibly interrupt
	// an execution already in flight.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}
