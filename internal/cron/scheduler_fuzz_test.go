package cron

import (
	"testing"
	"time"
)

func FuzzParseSchedule(f *testing.F) {
	// Seeds drawn from the schedules clew jobs actually use, plus the
	// malformed shapes operators typo into configuration.
	f.Add(DefaultRefreshSchedule)
	f.Add("*/5 * * * *")
	f.Add("0 3 * * 1-5")
	f.Add("@hourly")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 25 * * *")
	f.Add("* * * * * *")

	base := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

	f.Fuzz(func(t *testing.T, expr string) {
		sched, err := parseSchedule(expr)
		if err != nil {
			return
		}
		// An accepted schedule must produce a usable next activation:
		// strictly in the future, or the zero time when none exists.
		next := sched.Next(base)
		if !next.IsZero() && !next.After(base) {
			t.Errorf("parseSchedule(%q): Next(%v) = %v, not after base", expr, base, next)
		}
	})
}
