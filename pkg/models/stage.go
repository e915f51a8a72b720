// Package models defines the shared data types for the stage execution
// engine: stages, sessions, worktrees, plans, and merge outcomes.
package models

import "time"

// StageStatus represents a stage's position in the finite state machine
// described in spec section 4.2.
type StageStatus string

const (
	StageWaitingForDeps      StageStatus = "waiting_for_deps"
	StageQueued              StageStatus = "queued"
	StageExecuting           StageStatus = "executing"
	StageBlocked             StageStatus = "blocked"
	StageNeedsHandoff        StageStatus = "needs_handoff"
	StageNeedsHumanReview    StageStatus = "needs_human_review"
	StageWaitingForInput     StageStatus = "waiting_for_input"
	StageCompleted           StageStatus = "completed"
	StageCompletedWithFails  StageStatus = "completed_with_failures"
	StageSkipped             StageStatus = "skipped"
)

// Valid reports whether s is one of the known stage statuses.
func (s StageStatus) Valid() bool {
	switch s {
	case StageWaitingForDeps, StageQueued, StageExecuting, StageBlocked,
		StageNeedsHandoff, StageNeedsHumanReview, StageWaitingForInput,
		StageCompleted, StageCompletedWithFails, StageSkipped:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a state from which no session may be
// attached (the stage has either finished or been set aside).
func (s StageStatus) Terminal() bool {
	switch s {
	case StageCompleted, StageCompletedWithFails, StageSkipped, StageBlocked:
		return true
	default:
		return false
	}
}

// StageType distinguishes ordinary worktree-backed stages from
// knowledge stages, which never need a worktree or merge (spec 3.1, 9).
type StageType string

const (
	StageTypeStandard  StageType = "standard"
	StageTypeKnowledge StageType = "knowledge"
)

// StageOutput is a single key/value produced by a completed stage for
// its dependents to consume (spec 3.1, 3.6, 4.7).
type StageOutput struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
	// Kind records how Value should be rendered when embedded in a
	// signal: "string", "number", "bool", "null", or "json".
	Kind string `yaml:"kind" json:"kind"`
}

// SuccessCriteria is the validation a WiringTest's command output must
// satisfy (spec section 2 "goal-backward verification").
type SuccessCriteria struct {
	ExitCode          *int     `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
	StdoutContains    []string `yaml:"stdout_contains,omitempty" json:"stdout_contains,omitempty"`
	StdoutNotContains []string `yaml:"stdout_not_contains,omitempty" json:"stdout_not_contains,omitempty"`
	StderrContains    []string `yaml:"stderr_contains,omitempty" json:"stderr_contains,omitempty"`
	StderrEmpty       *bool    `yaml:"stderr_empty,omitempty" json:"stderr_empty,omitempty"`
}

// WiringTest is a named integration check run against a stage's
// worktree and validated against SuccessCriteria, distinct from plain
// acceptance commands in that it asserts the feature is actually wired
// into the system rather than just exiting zero (spec section 2
// "goal-backward verification").
type WiringTest struct {
	Name            string          `yaml:"name" json:"name"`
	Command         string          `yaml:"command" json:"command"`
	Description     string          `yaml:"description,omitempty" json:"description,omitempty"`
	SuccessCriteria SuccessCriteria `yaml:"success_criteria" json:"success_criteria"`
}

// Stage is the authoritative, persisted record for one unit of work
// (spec section 3.1). Field tags control YAML round-trip into the
// frontmatter of .work/stages/<id>.md.
type Stage struct {
	ID             string      `yaml:"id" json:"id"`
	Name           string      `yaml:"name" json:"name"`
	Description    string      `yaml:"description,omitempty" json:"description,omitempty"`
	Dependencies   []string    `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	ParallelGroup  string      `yaml:"parallel_group,omitempty" json:"parallel_group,omitempty"`
	Acceptance     []string    `yaml:"acceptance,omitempty" json:"acceptance,omitempty"`
	Setup          []string    `yaml:"setup,omitempty" json:"setup,omitempty"`
	Files          []string    `yaml:"files,omitempty" json:"files,omitempty"`
	// Artifacts are glob patterns resolved against the worktree; each
	// must match at least one non-empty, non-stub file (spec section 2
	// "goal-backward verification").
	Artifacts   []string     `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	WiringTests []WiringTest `yaml:"wiring_tests,omitempty" json:"wiring_tests,omitempty"`
	StageType      StageType   `yaml:"stage_type" json:"stage_type"`
	PlanID         string      `yaml:"plan_id,omitempty" json:"plan_id,omitempty"`

	Status        StageStatus `yaml:"status" json:"status"`
	Session       string      `yaml:"session,omitempty" json:"session,omitempty"`
	Worktree      string      `yaml:"worktree,omitempty" json:"worktree,omitempty"`
	Held          bool        `yaml:"held,omitempty" json:"held,omitempty"`

	Merged           bool   `yaml:"merged" json:"merged"`
	MergeConflict    bool   `yaml:"merge_conflict,omitempty" json:"merge_conflict,omitempty"`
	CompletedCommit  string `yaml:"completed_commit,omitempty" json:"completed_commit,omitempty"`
	BaseBranch       string `yaml:"base_branch,omitempty" json:"base_branch,omitempty"`
	ResolvedBase     string `yaml:"resolved_base,omitempty" json:"resolved_base,omitempty"`
	BaseMergedFrom   string `yaml:"base_merged_from,omitempty" json:"base_merged_from,omitempty"`

	RetryCount     int `yaml:"retry_count" json:"retry_count"`
	MaxRetries     int `yaml:"max_retries" json:"max_retries"`
	FixAttempts    int `yaml:"fix_attempts" json:"fix_attempts"`
	MaxFixAttempts int `yaml:"max_fix_attempts" json:"max_fix_attempts"`

	Outputs      []StageOutput `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	ReviewReason string        `yaml:"review_reason,omitempty" json:"review_reason,omitempty"`
	BlockedReason string       `yaml:"blocked_reason,omitempty" json:"blocked_reason,omitempty"`

	CreatedAt     time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `yaml:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	LastFailureAt *time.Time `yaml:"last_failure_at,omitempty" json:"last_failure_at,omitempty"`

	// Extra holds unknown frontmatter fields encountered on parse, so
	// round-tripping a stage file never drops data it didn't understand.
	Extra map[string]any `yaml:",inline" json:"-"`

	// Body is the human-narration markdown body below the frontmatter.
	Body string `yaml:"-" json:"-"`
}

// DefaultMaxRetries and DefaultMaxFixAttempts mirror spec 9's "defaults
// to 3" observation for fix attempts, and a conservative retry budget.
const (
	DefaultMaxRetries     = 3
	DefaultMaxFixAttempts = 3
)

// IsKnowledge reports whether the stage skips the worktree/merge path.
func (s *Stage) IsKnowledge() bool {
	return s.StageType == StageTypeKnowledge
}
