package mcp

import (
	"errors"
	"fmt"
	"time"
)

// Transport identifies how to reach a tool server.
type Transport string

// Supported transports.
const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
	TransportSocket         Transport = "socket"
)

// DefaultTimeout bounds connection setup and each remote tool call.
const DefaultTimeout = 30 * time.Second

var errNoServerName = errors.New("mcp: server config requires a name")

// ServerConfig describes one remote tool server.
type ServerConfig struct {
	// Name is the server's key in trust entries and namespaced tool names.
	Name string `yaml:"name"`

	// Transport selects the connection mechanism. Empty defaults to stdio
	// when Command is set, streamable-http when URL is set.
	Transport Transport `yaml:"transport"`

	// Command and Args launch a stdio server. Cwd, when set, is the
	// server process working directory.
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`

	// URL reaches an sse or streamable-http server.
	URL string `yaml:"url"`

	// Headers are sent with every HTTP request, typically for auth.
	Headers map[string]string `yaml:"headers"`

	// Address is the host:port of a socket server.
	Address string `yaml:"address"`

	// Timeout bounds connection setup and each call. Zero means
	// DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`

	// Trust pre-approves every tool on this server; no confirmation is
	// ever raised for it.
	Trust bool `yaml:"trust"`

	// IncludeTools, when non-empty, registers only the named tools.
	// ExcludeTools always wins over IncludeTools.
	IncludeTools []string `yaml:"include_tools"`
	ExcludeTools []string `yaml:"exclude_tools"`
}

// withDefaults fills in the transport and timeout.
func (c ServerConfig) withDefaults() ServerConfig {
	if c.Transport == "" {
		switch {
		case c.Command != "":
			c.Transport = TransportStdio
		case c.URL != "":
			c.Transport = TransportStreamableHTTP
		case c.Address != "":
			c.Transport = TransportSocket
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate checks that the config names a server and a way to reach it.
// It accepts a raw config: transport defaulting is applied first.
func (c ServerConfig) Validate() error {
	c = c.withDefaults()
	if c.Name == "" {
		return errNoServerName
	}
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp: server %q: stdio transport requires a command", c.Name)
		}
	case TransportSSE, TransportStreamableHTTP:
		if c.URL == "" {
			return fmt.Errorf("mcp: server %q: %s transport requires a url", c.Name, c.Transport)
		}
	case TransportSocket:
		if c.Address == "" {
			return fmt.Errorf("mcp: server %q: socket transport requires an address", c.Name)
		}
	default:
		return fmt.Errorf("mcp: server %q: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

// allows reports whether the server's include/exclude filters admit the
// named tool. Exclusion wins.
func (c ServerConfig) allows(name string) bool {
	for _, ex := range c.ExcludeTools {
		if ex == name {
			return false
		}
	}
	if len(c.IncludeTools) == 0 {
		return true
	}
	for _, in := range c.IncludeTools {
		if in == name {
			return true
		}
	}
	return false
}
