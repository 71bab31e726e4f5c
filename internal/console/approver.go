// Package console provides the interactive terminal surfaces: the
// confirmation prompt shown when a tool call needs human approval.
package console

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/clewhq/clew/internal/tool"
)

// Approver prompts the user on the terminal for each confirmation.
type Approver struct {
	// accessible enables screen-reader friendly prompts.
	accessible bool
}

// NewApprover creates a terminal approver.
func NewApprover(accessible bool) *Approver {
	return &Approver{accessible: accessible}
}

// Decide renders a select prompt for the confirmation and returns the
// chosen outcome. A cancelled or failed prompt maps to OutcomeCancel.
func (a *Approver) Decide(ctx context.Context, c *tool.Confirmation) (tool.Outcome, error) {
	choice := tool.OutcomeCancel

	options := []huh.Option[tool.Outcome]{
		huh.NewOption("Allow once", tool.OutcomeProceedOnce),
	}
	switch c.Kind {
	case tool.ConfirmRemote:
		options = append(options,
			huh.NewOption(fmt.Sprintf("Always allow tool %q", c.ToolName), tool.OutcomeProceedAlwaysTool),
			huh.NewOption(fmt.Sprintf("Always allow server %q", c.ServerName), tool.OutcomeProceedAlwaysServer),
		)
	case tool.ConfirmExec:
		options = append(options,
			huh.NewOption("Always allow this command", tool.OutcomeProceedAlwaysTool),
		)
	}
	options = append(options, huh.NewOption("Cancel", tool.OutcomeCancel))

	title := c.Title
	if title == "" {
		title = fmt.Sprintf("Allow tool %q to run?", c.ToolName)
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[tool.Outcome]().
			Title(title).
			Description(c.Command).
			Options(options...).
			Value(&choice),
	)).WithAccessible(a.accessible)

	if err := form.RunWithContext(ctx); err != nil {
		return tool.OutcomeCancel, fmt.Errorf("console: prompt failed: %w", err)
	}
	return choice, nil
}

var _ tool.Approver = (*Approver)(nil)
