package tool

import "context"

// ConfirmKind categorizes what a confirmation is asking about.
type ConfirmKind string

// ConfirmKind values for the actions that can require approval.
const (
	ConfirmExec   ConfirmKind = "exec"   // shell command execution
	ConfirmEdit   ConfirmKind = "edit"   // file modification
	ConfirmFetch  ConfirmKind = "fetch"  // network fetch
	ConfirmRemote ConfirmKind = "remote" // remote tool-server call
)

// Outcome is a human decision on a pending confirmation.
type Outcome string

// Outcome values. The "always" variants extend the process-wide trust
// list via the confirmation's OnConfirm continuation.
const (
	OutcomeProceedOnce         Outcome = "proceed_once"
	OutcomeProceedAlwaysTool   Outcome = "proceed_always_tool"
	OutcomeProceedAlwaysServer Outcome = "proceed_always_server"
	OutcomeCancel              Outcome = "cancel"
)

// Confirmation describes an action awaiting human approval before a tool
// may execute. The scheduler attaches it to the call's outcome instead of
// executing; the surrounding application presents it and invokes OnConfirm
// with the decision.
type Confirmation struct {
	// Kind is the action category.
	Kind ConfirmKind

	// Title is a human-readable summary of the pending action.
	Title string

	// ToolName is the registry key of the tool awaiting approval.
	ToolName string

	// ServerName is set for remote tools: the tool server the call targets.
	ServerName string

	// Command is set for exec confirmations: the command line to run.
	Command string

	// OnConfirm records the decision. For the "always" outcomes the
	// continuation mutates the registry trust list so subsequent calls
	// skip confirmation. Never nil.
	OnConfirm func(Outcome)
}

// Approver presents a Confirmation to a human and returns the decision.
// Implementations range from a terminal prompt to a websocket bridge; they
// block until a decision arrives or ctx is done.
type Approver interface {
	Decide(ctx context.Context, c *Confirmation) (Outcome, error)
}
