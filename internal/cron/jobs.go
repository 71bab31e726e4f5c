package cron

import (
	"context"
	"log/slog"
)

// Refresher re-runs one tool discovery mechanism and reports how many
// tools it registered. Both the subprocess discoverer and the remote
// server manager satisfy it through small adapters in the app wiring.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) (int, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context) (int, error) { return f(ctx) }

// DefaultRefreshSchedule is the tool refresh cadence used when the
// configuration does not set one.
const DefaultRefreshSchedule = "*/15 * * * *"

// ToolRefreshJob periodically re-discovers subprocess and remote tools so
// the registry tracks what the project and its servers currently expose.
type ToolRefreshJob struct {
	Refreshers   []Refresher
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultRefreshSchedule
}

// Compile-time interface check.
var _ Job = (*ToolRefreshJob)(nil)

// Name implements Job.
func (j *ToolRefreshJob) Name() string { return "tool_refresh" }

// Schedule implements Job.
func (j *ToolRefreshJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultRefreshSchedule
}

// Run refreshes every discovery mechanism. A failing refresher is logged
// and the rest still run; the last error is returned so the scheduler
// records the failure.
func (j *ToolRefreshJob) Run(ctx context.Context) error {
	var lastErr error
	total := 0
	for _, r := range j.Refreshers {
		n, err := r.Refresh(ctx)
		if err != nil {
			j.Logger.Warn("cron: tool refresh failed", "error", err)
			lastErr = err
			continue
		}
		total += n
	}
	j.Logger.Info("cron: tool refresh complete", "tools", total)
	return lastErr
}
