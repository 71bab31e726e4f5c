package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/robfig/cron/v3"
)

var validLogLevels = []string{"", "debug", "info", "warn", "error"}
var validLogFormats = []string{"", "text", "json"}

// Validate checks the structural validity of a Config. It verifies the
// version field, the model selection, every tool server entry, and the
// gateway and logging settings. All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Model.Provider == "" {
		errs = append(errs, errors.New("config: model.provider is required"))
	}
	if cfg.Model.Name == "" {
		errs = append(errs, errors.New("config: model.name is required"))
	}

	seen := make(map[string]struct{}, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		if err := srv.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: mcp_servers[%d]: %w", i, err))
		}
		if _, dup := seen[srv.Name]; dup && srv.Name != "" {
			errs = append(errs, fmt.Errorf("config: mcp_servers[%d]: duplicate server name %q", i, srv.Name))
		}
		seen[srv.Name] = struct{}{}
	}

	if cfg.Gateway.Enabled && cfg.Gateway.Listen == "" {
		errs = append(errs, errors.New("config: gateway.listen is required when the gateway is enabled"))
	}

	if cfg.Telemetry.Tracing.Enabled && cfg.Telemetry.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.tracing.endpoint is required when tracing is enabled"))
	}

	if cfg.Tools.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Tools.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: tools.refresh_schedule: %w", err))
		}
	}

	if !slices.Contains(validLogLevels, cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("config: logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !slices.Contains(validLogFormats, cfg.Logging.Format) {
		errs = append(errs, fmt.Errorf("config: logging.format: unknown format %q", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
