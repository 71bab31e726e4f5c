package security

import (
	"encoding/json"
	"io"
	"sync"
	"time"
	"unicode/utf8"
)

// EventType categorizes audit events.
type EventType string

// Audit event types covering the security-relevant interactions of the runtime.
const (
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventApproval   EventType = "approval"
	EventPolicy     EventType = "policy"
	EventDiscovery  EventType = "discovery"
	EventTurn       EventType = "turn"
	EventAuthOK     EventType = "auth_success"
	EventAuthFailed EventType = "auth_failure"
)

// AuditEvent is a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	CallID    string            `json:"call_id,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	Server    string            `json:"server,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures the audit logger.
type AuditLoggerConfig struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent (useful for testing).
	Writer io.Writer

	// Redactor, if non-nil, is applied to Detail and Metadata values.
	Redactor *Redactor

	// OnEvent, if non-nil, is called for every event.
	OnEvent func(AuditEvent)

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// AuditLogger writes structured audit events as JSONL with optional redaction.
type AuditLogger struct {
	writer   io.Writer
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
	mu       sync.Mutex
}

// NewAuditLogger creates an audit logger with the given configuration.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      now,
	}
}

// Log writes an audit event. The timestamp is set automatically and the
// caller's metadata map is never mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	event.Detail = TruncateForAudit(event.Detail)

	if len(event.Metadata) > 0 {
		cp := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			cp[k] = v
		}
		event.Metadata = cp
	}

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	// Dispatch and write under one lock so ordering stays consistent.
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}

// maxAuditDetailLen bounds audit detail strings so large tool payloads do
// not bloat the log.
const maxAuditDetailLen = 4096

// TruncateForAudit shortens s to maxAuditDetailLen, walking back to a rune
// boundary so multi-byte characters are never split.
func TruncateForAudit(s string) string {
	if len(s) <= maxAuditDetailLen {
		return s
	}
	i := maxAuditDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
