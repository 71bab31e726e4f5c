package tool

import "errors"

var (
	// ErrNotFound is returned when a name resolves to no registered tool.
	ErrNotFound = errors.New("not found or is not registered")

	// ErrEmptyName is returned when a tool registers with an empty name.
	ErrEmptyName = errors.New("tool name must not be empty")

	// ErrCancelled is returned when a confirmation is declined or a turn
	// observes its cancellation token.
	ErrCancelled = errors.New("cancelled")
)
