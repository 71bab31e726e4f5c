// Package builtin provides the tools compiled into the binary: file
// access, directory listing, shell execution, and web fetch. Each tool
// carries its own JSON schema and confirmation policy.
package builtin

import (
	"log/slog"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/tool"
)

// MaxOutputBytes caps the content a builtin tool hands back to the model.
// Longer output is truncated with a marker.
const MaxOutputBytes = 64 * 1024

// Config wires the builtins' policies.
type Config struct {
	// Root restricts file tools to paths under this directory. Empty
	// means the process working directory.
	Root string

	// ShellFilter gates run_command. Nil disables filtering (every
	// command still requires confirmation).
	ShellFilter *security.ShellFilter

	// URLFilter gates web_fetch. Nil allows every URL.
	URLFilter *security.URLFilter

	Logger *slog.Logger
}

// RegisterAll registers every builtin tool into the registry.
func RegisterAll(reg *tool.Registry, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	tools := []tool.Tool{
		NewReadFileTool(cfg.Root),
		NewWriteFileTool(cfg.Root),
		NewListDirectoryTool(cfg.Root),
		NewRunCommandTool(cfg.ShellFilter, cfg.Logger),
		NewWebFetchTool(cfg.URLFilter),
	}
	for _, t := range tools {
		if err := reg.Register(t, tool.SourceBuiltin); err != nil {
			return err
		}
	}
	return nil
}

// truncate caps s at MaxOutputBytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= MaxOutputBytes {
		return s
	}
	cut := MaxOutputBytes
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut] + "\n... [output truncated]"
}
