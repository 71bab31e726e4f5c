// Package security provides the narrow, security-critical pieces of clew:
// the shell command admission filter, URL filtering for web fetches, secret
// redaction, and the audit trail. Everything here is fail-closed.
package security

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ShellFilterConfig is the allow/block configuration for the shell tool.
// Entries take two shapes: a bare tool identifier ("run_command"), which
// matches any command, or "run_command(prefix)", which matches commands
// whose text starts with prefix.
type ShellFilterConfig struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`

	// ToolNames are the identifiers accepted in entries. Defaults to
	// run_command and ShellTool.
	ToolNames []string `yaml:"tool_names,omitempty"`
}

// defaultShellToolNames are the entry identifiers recognized out of the box.
var defaultShellToolNames = []string{"run_command", "ShellTool"}

// Decision is the filter's verdict on one command line.
type Decision struct {
	Allowed bool
	Reason  string
}

// shellEntry is one parsed allow or block entry.
type shellEntry struct {
	prefix string // empty means the entry matches any command
	bare   bool
}

// ShellFilter decides whether a raw command line may be handed to a shell.
// It is a narrow parser, not a shell grammar: it understands quoting,
// escapes, chaining operators, and command substitution, and nothing else.
type ShellFilter struct {
	allow          []shellEntry
	allowedAtAll   bool // an allow list was configured, even if empty
	block          []shellEntry
	globalDisabled bool // a bare block entry with no command disables the tool
}

// NewShellFilter parses the configuration into a filter. Entries naming an
// unknown tool identifier are ignored.
func NewShellFilter(cfg ShellFilterConfig) *ShellFilter {
	names := cfg.ToolNames
	if len(names) == 0 {
		names = defaultShellToolNames
	}

	f := &ShellFilter{allowedAtAll: cfg.Allow != nil}
	for _, raw := range cfg.Allow {
		if e, ok := parseShellEntry(raw, names); ok {
			f.allow = append(f.allow, e)
		}
	}
	for _, raw := range cfg.Block {
		e, ok := parseShellEntry(raw, names)
		if !ok {
			continue
		}
		if e.bare {
			f.globalDisabled = true
			continue
		}
		f.block = append(f.block, e)
	}
	return f
}

// parseShellEntry parses "tool" or "tool(prefix)" forms.
func parseShellEntry(raw string, names []string) (shellEntry, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return shellEntry{}, false
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if slices.Contains(names, s) {
			return shellEntry{bare: true}, true
		}
		return shellEntry{}, false
	}

	name := strings.TrimSpace(s[:open])
	if !slices.Contains(names, name) || !strings.HasSuffix(s, ")") {
		return shellEntry{}, false
	}
	prefix := strings.TrimSpace(s[open+1 : len(s)-1])
	if prefix == "" {
		return shellEntry{bare: true}, true
	}
	return shellEntry{prefix: prefix}, true
}

// Check decides admissibility for one raw command line. The whole command
// is admitted only if every chained segment passes; the substitution check
// runs first and cannot be bypassed by either list.
func (f *ShellFilter) Check(command string) Decision {
	if f.globalDisabled {
		return Decision{Allowed: false, Reason: "Shell tool is globally disabled in configuration"}
	}

	cmd := stripShellWrapper(command)

	if hasUnquotedSubstitution(cmd) {
		return Decision{
			Allowed: false,
			Reason:  "Command substitution using $(), <(), >() or backticks is not allowed for security reasons",
		}
	}

	for _, segment := range splitChainedCommands(cmd) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		// Block always wins, even over a more specific allow match.
		for _, e := range f.block {
			if matchesPrefix(segment, e.prefix) {
				return Decision{
					Allowed: false,
					Reason:  fmt.Sprintf("Command %q is blocked by configuration", segment),
				}
			}
		}

		if !f.allowedAtAll {
			continue
		}

		ok := false
		for _, e := range f.allow {
			if e.bare || matchesPrefix(segment, e.prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("Command %q is not in the allowed commands list", segment),
			}
		}
	}

	return Decision{Allowed: true}
}

// matchesPrefix reports whether a segment matches an entry prefix. The
// match is on the segment's full text, not word boundaries: a block entry
// for "rm -rf /" must also catch "rm -rf /home" and "rm -rf /*".
func matchesPrefix(segment, prefix string) bool {
	return strings.HasPrefix(segment, prefix)
}

// shellWrappers are leading invocations stripped before evaluation so a
// wrapped command is judged on its real content.
var shellWrappers = [][2]string{
	{"sh", "-c"},
	{"bash", "-c"},
	{"zsh", "-c"},
	{"ksh", "-c"},
	{"cmd.exe", "/c"},
	{"cmd", "/c"},
}

// stripShellWrapper removes one leading "sh -c", "bash -c", "cmd.exe /c"
// style wrapper, unwrapping a fully quoted payload.
func stripShellWrapper(command string) string {
	s := strings.TrimSpace(command)
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return s
	}

	head := strings.ToLower(filepath.Base(fields[0]))
	for _, w := range shellWrappers {
		if head != w[0] || !strings.EqualFold(fields[1], w[1]) {
			continue
		}
		// Walk past the wrapper fields positionally; searching for the
		// flag would mismatch on a wrapper path that contains it.
		rest := strings.TrimLeft(s[len(fields[0]):], " \t\r\n")
		rest = strings.TrimSpace(rest[len(fields[1]):])
		return unwrapQuotes(rest)
	}
	return s
}

// unwrapQuotes removes one matching pair of surrounding quotes when the
// opening quote closes at the final character.
func unwrapQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if q != '\'' && q != '"' {
		return s
	}
	if s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	// Reject unwrap if the quote closes before the end.
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && q == '"' {
			i++
			continue
		}
		if inner[i] == q {
			return s
		}
	}
	return inner
}

// hasUnquotedSubstitution reports whether the command contains a command
// substitution construct outside single quotes. Inside double quotes the
// constructs still expand, so only single quotes neutralize them; an
// escaped \$( or \` is literal.
func hasUnquotedSubstitution(command string) bool {
	inSingle := false
	inDouble := false
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case c == '\\' && !inSingle:
			i++ // escaped character is literal
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle:
			// literal span
		case c == '`':
			return true
		case (c == '$' || c == '<' || c == '>') && i+1 < len(command) && command[i+1] == '(':
			return true
		}
	}
	return false
}

// splitChainedCommands splits a command line on the chaining operators
// && || ; | & while respecting quoted spans and backslash escapes.
func splitChainedCommands(command string) []string {
	var segments []string
	var current strings.Builder
	inSingle := false
	inDouble := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, s)
		}
		current.Reset()
	}

	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case c == '\\' && !inSingle:
			current.WriteByte(c)
			if i+1 < len(command) {
				i++
				current.WriteByte(command[i])
			}
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			current.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			current.WriteByte(c)
		case inSingle || inDouble:
			current.WriteByte(c)
		case c == '&' || c == '|':
			flush()
			if i+1 < len(command) && command[i+1] == c {
				i++ // && or ||
			}
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return segments
}

// CommandRoots returns the base executable name of each chained segment:
// the first whitespace-delimited token with any leading path stripped.
func CommandRoots(command string) []string {
	var roots []string
	for _, segment := range splitChainedCommands(stripShellWrapper(command)) {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		root := strings.Trim(fields[0], `"'`)
		root = filepath.Base(root)
		if root != "" && root != "." {
			roots = append(roots, root)
		}
	}
	return roots
}
