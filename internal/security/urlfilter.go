package security

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrURLBlocked is returned when a URL is denied by the filter.
var ErrURLBlocked = errors.New("URL blocked by filter")

// URLFilterConfig restricts which hosts the web_fetch tool may reach.
type URLFilterConfig struct {
	// AllowDomains, when non-empty, switches the filter to default-deny:
	// only the listed domains (and their subdomains) are reachable.
	AllowDomains []string `yaml:"allow_domains"`

	// DenyDomains are always blocked, even under an allow match.
	DenyDomains []string `yaml:"deny_domains"`
}

// URLFilter applies allow/deny domain lists to fetch targets. With no
// allow list it admits everything except denied domains; with one it is
// default-deny.
type URLFilter struct {
	allow []string
	deny  []string
}

// NewURLFilter creates a URL filter from the given config.
func NewURLFilter(cfg URLFilterConfig) *URLFilter {
	normalize := func(in []string) []string {
		out := make([]string, len(in))
		for i, d := range in {
			out[i] = strings.ToLower(strings.TrimSpace(d))
		}
		return out
	}
	return &URLFilter{allow: normalize(cfg.AllowDomains), deny: normalize(cfg.DenyDomains)}
}

// Check returns nil if the URL is admissible, ErrURLBlocked otherwise.
func (f *URLFilter) Check(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %w", ErrURLBlocked, err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrURLBlocked)
	}

	for _, d := range f.deny {
		if matchDomain(host, d) {
			return fmt.Errorf("%w: %s (denied)", ErrURLBlocked, host)
		}
	}

	if len(f.allow) == 0 {
		return nil
	}
	for _, a := range f.allow {
		if matchDomain(host, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (not in allow list)", ErrURLBlocked, host)
}

// matchDomain reports whether host equals domain or is a subdomain of it.
func matchDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
