// Package transcript records what happened during agent sessions: content
// the model produced, tool calls with their outcomes, and errors. Stores
// are append-only; entries are never rewritten.
package transcript

import (
	"context"
	"time"
)

// EntryKind classifies one transcript entry.
type EntryKind string

// Entry kinds.
const (
	KindPrompt   EntryKind = "prompt"
	KindContent  EntryKind = "content"
	KindToolCall EntryKind = "tool_call"
	KindError    EntryKind = "error"
)

// Entry is one recorded event within a session. Seq is assigned by the
// store on append and is strictly increasing per session.
type Entry struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	IsError   bool      `json:"is_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo summarizes one recorded session.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Entries   int       `json:"entries"`
	LastAt    time.Time `json:"last_at"`
}

// Store persists session transcripts.
type Store interface {
	// Append records one entry; the store assigns Seq and CreatedAt.
	Append(ctx context.Context, e Entry) error

	// Entries returns a session's entries in chronological order.
	Entries(ctx context.Context, sessionID string) ([]Entry, error)

	// Recent returns the n most recent entries, chronological.
	Recent(ctx context.Context, sessionID string, n int) ([]Entry, error)

	// Sessions lists every recorded session, most recent first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	Close() error
}
