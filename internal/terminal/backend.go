// Package terminal implements the pluggable worker-spawn capability
// (spec section 2 "Terminal backend", section 4.8 "Terminal backend
// contract"). The orchestrator is agnostic to which Backend is
// configured; both implementations here satisfy the same contract.
package terminal

import "github.com/cosmix/skein/pkg/models"

// SpawnRequest carries everything a backend needs to launch a worker
// for a stage session.
type SpawnRequest struct {
	StageID      string
	SessionID    string
	WorktreePath string
	SignalPath   string
	LogPath      string
}

// Backend is the single polymorphic boundary in the engine (spec
// section 9 "Dynamic dispatch"). Spawn is best-effort: if it returns
// without error, the worker has been launched, but the authoritative
// liveness source is the subsequent poll (spec 4.8), never the
// return of Spawn itself.
type Backend interface {
	// SpawnSession launches a worker attached to a stage. Returns the
	// PID the orchestrator should track for liveness/kill purposes.
	SpawnSession(req SpawnRequest) (pid int, err error)
	// SpawnMergeSession launches a worker dedicated to resolving a
	// merge conflict (spec 4.4).
	SpawnMergeSession(req SpawnRequest) (pid int, err error)
	// SpawnBaseConflictSession launches a worker dedicated to
	// resolving a base-conflict session (spec 3.2 session_type).
	SpawnBaseConflictSession(req SpawnRequest) (pid int, err error)
	// KillSession terminates a running session's worker process.
	KillSession(sess *models.Session) error
	// IsSessionAlive reports whether sess's recorded PID still exists
	// in the process table.
	IsSessionAlive(sess *models.Session) bool
	// BackendType names the backend, used in status snapshots and logs.
	BackendType() string
}
