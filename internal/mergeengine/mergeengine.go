// Package mergeengine implements progressive merge (spec section 4.4):
// merging a completed stage's branch into the merge point, classifying
// the outcome, and cleaning up the worktree/branch on success. Conflict
// escalation (spawning a dedicated worker) is the orchestrator's job —
// this package only does the git mechanics and classification.
package mergeengine

import (
	"fmt"

	"github.com/cosmix/skein/internal/git"
	"github.com/cosmix/skein/pkg/models"
)

// Engine merges stage branches into a fixed merge point branch.
type Engine struct {
	Git        git.Runner
	MergePoint string
}

// New returns an Engine that merges into mergePoint (the repository's
// default branch unless overridden, spec 4.4).
func New(g git.Runner, mergePoint string) *Engine {
	return &Engine{Git: g, MergePoint: mergePoint}
}

// Attempt merges branch into the merge point and classifies the
// result (spec 4.4: Success, FastForward, AlreadyUpToDate, NoBranch,
// or Conflict). On any non-conflict failure the merge point is left
// checked out and clean; on Conflict, any in-progress merge is
// aborted so the worktree can be handed to a resolver without extra
// state to clean up there.
func (e *Engine) Attempt(branch string) (models.MergeOutcome, error) {
	exists, err := e.Git.BranchExists(branch)
	if err != nil {
		return models.MergeOutcome{}, fmt.Errorf("check branch exists: %w", err)
	}
	if !exists {
		return models.MergeOutcome{Kind: models.MergeNoBranch}, nil
	}

	if err := e.Git.CheckoutBranch(e.MergePoint); err != nil {
		return models.MergeOutcome{}, fmt.Errorf("checkout merge point %s: %w", e.MergePoint, err)
	}

	before, err := e.Git.RevParse(e.MergePoint)
	if err != nil {
		return models.MergeOutcome{}, fmt.Errorf("resolve merge point sha: %w", err)
	}

	if mergeErr := e.Git.Merge(branch); mergeErr != nil {
		conflicts, cfErr := e.Git.ConflictedFiles()
		if cfErr == nil && len(conflicts) > 0 {
			_ = e.Git.MergeAbort()
			return models.MergeOutcome{Kind: models.MergeConflictKind, ConflictFiles: conflicts}, nil
		}
		_ = e.Git.MergeAbort()
		return models.MergeOutcome{}, fmt.Errorf("merge %s into %s: %w", branch, e.MergePoint, mergeErr)
	}

	after, err := e.Git.RevParse(e.MergePoint)
	if err != nil {
		return models.MergeOutcome{}, fmt.Errorf("resolve merge point sha after merge: %w", err)
	}
	if after == before {
		return models.MergeOutcome{Kind: models.MergeAlreadyUpToDate}, nil
	}

	stageTip, err := e.Git.RevParse(branch)
	if err == nil && after == stageTip {
		return models.MergeOutcome{Kind: models.MergeFastForward}, nil
	}

	files, ins, del, err := e.Git.DiffStat(before, after)
	if err != nil {
		return models.MergeOutcome{Kind: models.MergeSuccess}, nil
	}
	return models.MergeOutcome{Kind: models.MergeSuccess, FilesChanged: files, Insertions: ins, Deletions: del}, nil
}

// Finalize removes the worktree and deletes the stage's branch after
// any successful merge outcome, then prunes stale worktree metadata
// (spec 4.4: "On any success variant: ... remove the worktree, delete
// the branch, prune stale worktree metadata").
func (e *Engine) Finalize(worktreePath, branch string) error {
	if err := e.Git.WorktreeRemoveOptionalForce(worktreePath, true); err != nil {
		return fmt.Errorf("remove worktree: %w", err)
	}
	if err := e.Git.DeleteBranch(branch); err != nil {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	if err := e.Git.WorktreePrune(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}
