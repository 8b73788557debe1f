package preflight

import (
	"qrassure/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every check applicable to cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckSerialDevice("Scanner port", cfg.Serial.Port),
		CheckGPIOChip("Indicator GPIO", cfg.Indicator.Chip, cfg.Indicator.Driver),
		CheckWritableDir("Journal directory", cfg.Journal.Dir),
		CheckWritableDir("State directory", cfg.Paths.StateDir),
		CheckWritableDir("Log directory", cfg.Paths.LogDir),
	}
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
