// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for clew.
package config

import (
	"github.com/clewhq/clew/internal/agent"
	"github.com/clewhq/clew/internal/discovery"
	"github.com/clewhq/clew/internal/mcp"
	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Model selects and authenticates the model provider.
	Model ModelConfig `yaml:"model"`

	// Loop bounds the multi-turn agent loop.
	Loop agent.LoopConfig `yaml:"loop"`

	// Tools configures the builtin tool policies and subprocess discovery.
	Tools ToolsConfig `yaml:"tools"`

	// Servers lists the remote tool servers to discover at startup.
	Servers []mcp.ServerConfig `yaml:"mcp_servers"`

	// Gateway configures the admin HTTP surface.
	Gateway GatewayConfig `yaml:"gateway"`

	// Transcript configures session persistence.
	Transcript TranscriptConfig `yaml:"transcript"`

	// Telemetry configures tracing export. Metrics are always collected;
	// they are only reachable when the gateway is enabled.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Audit configures the append-only audit trail.
	Audit AuditConfig `yaml:"audit"`
}

// ModelConfig selects the model provider.
type ModelConfig struct {
	// Provider is a provider identifier, e.g. "openai" or "anthropic".
	Provider string `yaml:"provider"`

	// Name is the model name passed to the provider.
	Name string `yaml:"name"`

	// APIKey authenticates with the provider. Usually set via ${VAR}.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
}

// ToolsConfig configures the builtin tools and subprocess discovery.
type ToolsConfig struct {
	// Root confines the file tools. Empty means the working directory.
	Root string `yaml:"root"`

	// Shell is the allow/block policy for run_command.
	Shell security.ShellFilterConfig `yaml:"shell"`

	// URL restricts web_fetch targets.
	URL security.URLFilterConfig `yaml:"url"`

	// Discovery configures project-local subprocess tool discovery.
	Discovery discovery.Config `yaml:"discovery"`

	// RefreshSchedule is a cron expression for periodic re-discovery of
	// subprocess and remote tools. Empty disables the schedule.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// GatewayConfig configures the admin HTTP listener.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`

	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string `yaml:"auth_token,omitempty"`
}

// TranscriptConfig configures session persistence.
type TranscriptConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Defaults to text.
	Format string `yaml:"format"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Path is the JSONL audit file. Empty disables auditing.
	Path string `yaml:"path"`
}
