package agent

import "time"

// Default values for LoopConfig.
const (
	DefaultMaxTurns = 16
	DefaultTimeout  = 10 * time.Minute
)

// LoopConfig controls the multi-turn loop.
type LoopConfig struct {
	// MaxTurns bounds how many model exchanges one prompt may trigger.
	MaxTurns int `yaml:"max_turns"`

	// Timeout is the maximum wall-clock duration for the whole loop.
	Timeout time.Duration `yaml:"timeout"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
