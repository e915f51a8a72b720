package orchestrator

import "time"

// Config holds the orchestrator loop's tunables (spec section 4.5
// "Owns: ... max_parallel: int, poll_interval: Duration, ... auto_merge:
// bool, base_branch: Option<String>, watch_mode: bool").
type Config struct {
	RepoRoot string

	MaxParallel  int
	PollInterval time.Duration

	AutoMerge  bool
	BaseBranch string
	WatchMode  bool
}

// DefaultConfig returns conservative defaults matching the teacher's
// own style of small, explicit zero-value-safe defaults.
func DefaultConfig(repoRoot string) Config {
	return Config{
		RepoRoot:     repoRoot,
		MaxParallel:  3,
		PollInterval: 2 * time.Second,
		AutoMerge:    true,
	}
}
