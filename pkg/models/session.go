package models

import "time"

// SessionStatus is the lifecycle state of a live worker attachment
// (spec section 3.2).
type SessionStatus string

const (
	SessionSpawning         SessionStatus = "spawning"
	SessionRunning          SessionStatus = "running"
	SessionPaused           SessionStatus = "paused"
	SessionCompleted        SessionStatus = "completed"
	SessionCrashed          SessionStatus = "crashed"
	SessionContextExhausted SessionStatus = "context_exhausted"
)

// Terminal reports whether the session has reached a state from which
// it will never be revived; a new session must be spawned instead.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionCrashed, SessionContextExhausted:
		return true
	default:
		return false
	}
}

// SessionType distinguishes a session working a stage from one
// dedicated to resolving a merge or base conflict (spec section 3.2,
// 4.8).
type SessionType string

const (
	SessionTypeStage         SessionType = "stage"
	SessionTypeMerge         SessionType = "merge"
	SessionTypeBaseConflict  SessionType = "base_conflict"
)

// Session is the live attachment of a worker process to a stage (spec
// section 3.2). Persisted at .work/sessions/<id>.md.
type Session struct {
	ID            string        `yaml:"id" json:"id"`
	StageID       string        `yaml:"stage_id,omitempty" json:"stage_id,omitempty"`
	Status        SessionStatus `yaml:"status" json:"status"`
	PID           int           `yaml:"pid,omitempty" json:"pid,omitempty"`
	WorktreePath  string        `yaml:"worktree_path,omitempty" json:"worktree_path,omitempty"`
	SessionType   SessionType   `yaml:"session_type" json:"session_type"`
	ContextTokens int64         `yaml:"context_tokens" json:"context_tokens"`
	ContextLimit  int64         `yaml:"context_limit" json:"context_limit"`
	CreatedAt     time.Time     `yaml:"created_at" json:"created_at"`
	LastActive    time.Time     `yaml:"last_active" json:"last_active"`
}

// ContextRatio returns the fraction of the context window consumed, or
// 0 if no limit is configured.
func (s *Session) ContextRatio() float64 {
	if s.ContextLimit <= 0 {
		return 0
	}
	return float64(s.ContextTokens) / float64(s.ContextLimit)
}

// ContextCriticalThreshold is the ratio at which a running session is
// transitioned to NeedsHandoff (spec 8 scenario 5: "crosses 65%").
const ContextCriticalThreshold = 0.65
