package models

import "time"

// WorktreeStatus tracks the lifecycle of an on-disk git worktree (spec
// section 3.3).
type WorktreeStatus string

const (
	WorktreeCreating WorktreeStatus = "creating"
	WorktreeActive   WorktreeStatus = "active"
	WorktreeMerging  WorktreeStatus = "merging"
	WorktreeMerged   WorktreeStatus = "merged"
	WorktreeConflict WorktreeStatus = "conflict"
	WorktreeRemoved  WorktreeStatus = "removed"
)

// Worktree describes a single `.worktrees/<id>/` checkout.
type Worktree struct {
	StageID    string
	Path       string
	Branch     string
	Status     WorktreeStatus
	CreatedAt  time.Time
}

// BranchForStage returns the fixed branch name a stage's worktree is
// created on: `loom/<id>` (spec section 3.3, 6 — a literal on-disk
// contract checked by acceptance scenarios, not a project name).
func BranchForStage(stageID string) string {
	return "loom/" + stageID
}
