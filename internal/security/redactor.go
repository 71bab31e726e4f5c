package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces secret values in logs and audit entries.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a placeholder. It holds
// regex patterns for well-known API key formats plus literal values (auth
// tokens loaded from configuration). Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with patterns for common API
// key formats.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
			regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
			regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.~+/]{16,}`),
		},
	}
}

// AddLiteral registers a literal secret to redact on sight. Empty strings
// are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secrets in s with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}
