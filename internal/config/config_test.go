package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clewhq/clew/internal/mcp"
)

func serverNamed(name string) mcp.ServerConfig {
	return mcp.ServerConfig{Name: name, Command: "srv"}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clew.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const fullConfig = `
version: "1"
model:
  provider: openai
  name: gpt-4o
  api_key: ${CLEW_TEST_KEY:-fallback-key}
loop:
  max_turns: 8
  timeout: 5m
tools:
  root: /workspace
  shell:
    allow:
      - "run_command(git)"
    block:
      - "run_command(rm -rf)"
  url:
    deny_domains:
      - internal.example.com
  discovery:
    discovery_command: ./tools/discover
    call_command: ./tools/call
  refresh_schedule: "*/5 * * * *"
mcp_servers:
  - name: files
    command: files-server
  - name: web
    url: http://localhost:9000/mcp
    trust: true
gateway:
  enabled: true
  listen: 127.0.0.1:8420
  auth_token: secret
transcript:
  path: /var/lib/clew/transcript.db
logging:
  level: debug
  format: json
audit:
  path: /var/log/clew/audit.jsonl
`

func TestLoadAndValidate_FullConfig(t *testing.T) {
	path := writeConfig(t, fullConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}

	if cfg.Model.Name != "gpt-4o" {
		t.Errorf("model.name = %q", cfg.Model.Name)
	}
	if cfg.Model.APIKey != "fallback-key" {
		t.Errorf("api_key = %q, want the ${VAR:-default} fallback", cfg.Model.APIKey)
	}
	if cfg.Loop.MaxTurns != 8 || cfg.Loop.Timeout != 5*time.Minute {
		t.Errorf("loop = %+v", cfg.Loop)
	}
	if len(cfg.Servers) != 2 || cfg.Servers[1].Trust != true {
		t.Errorf("servers = %+v", cfg.Servers)
	}
	if len(cfg.Tools.Shell.Allow) != 1 || len(cfg.Tools.Shell.Block) != 1 {
		t.Errorf("shell = %+v", cfg.Tools.Shell)
	}
	if cfg.Gateway.AuthToken != "secret" {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CLEW_TEST_KEY", "from-env")
	path := writeConfig(t, fullConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "from-env" {
		t.Errorf("api_key = %q, want env value to win over the default", cfg.Model.APIKey)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "version: \"1\"\nmodel:\n  api_key: ${CLEW_DEFINITELY_UNSET_VAR}\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "CLEW_DEFINITELY_UNSET_VAR") {
		t.Errorf("err = %v, want unresolved variable named", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Version: "1",
			Model:   ModelConfig{Provider: "openai", Name: "gpt-4o"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing version", func(c *Config) { c.Version = "" }, "version field is required"},
		{"bad version", func(c *Config) { c.Version = "2" }, "unsupported version"},
		{"missing provider", func(c *Config) { c.Model.Provider = "" }, "model.provider is required"},
		{"missing model name", func(c *Config) { c.Model.Name = "" }, "model.name is required"},
		{"gateway without listen", func(c *Config) { c.Gateway.Enabled = true }, "gateway.listen is required"},
		{"tracing without endpoint", func(c *Config) { c.Telemetry.Tracing.Enabled = true }, "tracing.endpoint is required"},
		{"bad cron", func(c *Config) { c.Tools.RefreshSchedule = "not a schedule" }, "refresh_schedule"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "unknown level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown format"},
		{"bad server", func(c *Config) {
			c.Servers = append(c.Servers, serverNamed(""))
		}, "requires a name"},
		{"duplicate server", func(c *Config) {
			c.Servers = append(c.Servers, serverNamed("a"), serverNamed("a"))
		}, "duplicate server name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{})
	if err == nil {
		t.Fatal("empty config validated")
	}
	for _, want := range []string{"version field", "model.provider", "model.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
