// Package agent implements the tool-call orchestration engine: the turn
// processor that consumes a streamed model response, the scheduler that
// resolves pending tool calls, and the loop that drives turns until the
// model stops requesting actions.
package agent

import (
	"github.com/clewhq/clew/internal/tool"
)

// Status is the observable state of a tool call at the event boundary.
// It is not stored on the call itself.
type Status string

// Status values for tool-call-info events.
const (
	StatusPending    Status = "pending"    // registered, not yet evaluated
	StatusConfirming Status = "confirming" // a confirmation was produced
	StatusInvoked    Status = "invoked"    // executed; success or failure is in the result
)

// EventType identifies the kind of turn event.
type EventType string

// EventType constants for turn events.
const (
	EventContent  EventType = "content"
	EventToolCall EventType = "tool_call"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// ToolCallInfo describes one tool call for UI surfaces.
type ToolCallInfo struct {
	Status        Status
	Call          tool.Call
	ResultDisplay string
	Confirmation  *tool.Confirmation
}

// Event is a single element of a turn's lazy event sequence.
type Event struct {
	Type EventType

	// Text carries content events, including the single explanatory line
	// emitted when a batch outcome fails.
	Text string

	// IsError marks a content event that reports a tool failure.
	IsError bool

	// ToolCall carries tool-call-info events.
	ToolCall *ToolCallInfo

	// Err terminates the sequence: cancellation or a broken model stream.
	Err error
}

// Outcome is the scheduler's resolution of one tool call. Exactly one of
// Result, Err, or Confirmation is meaningfully populated.
type Outcome struct {
	Call tool.Call

	// Result is set when the tool executed. A domain failure travels in
	// Result.Err, not here.
	Result *tool.Result

	// Err is set when the call could not execute: unknown tool, a broken
	// confirmation check, or a thrown execution error.
	Err error

	// Confirmation is set when the call needs human approval; the tool
	// was not executed.
	Confirmation *tool.Confirmation
}

// Failed reports whether the outcome should surface as the batch's error
// line: an invocation error or a domain failure inside the result.
func (o Outcome) Failed() bool {
	if o.Err != nil {
		return true
	}
	return o.Result != nil && o.Result.Err != ""
}

// FailureMessage renders the single explanatory line for a failed outcome.
func (o Outcome) FailureMessage() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.Result != nil {
		return o.Result.Err
	}
	return ""
}
