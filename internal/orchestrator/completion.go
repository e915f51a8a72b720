package orchestrator

import (
	"fmt"

	"github.com/cosmix/skein/internal/acceptance"
	"github.com/cosmix/skein/internal/signal"
	"github.com/cosmix/skein/internal/terminal"
	"github.com/cosmix/skein/pkg/models"
)

// CompleteStage is the entry point the daemon's `stage complete` RPC
// calls when a worker reports it finished its assignment (spec section
// 6 "Request::CompleteStage"). It runs acceptance, then — if
// auto_merge is enabled — attempts the progressive merge immediately,
// escalating to a conflict session on failure (spec 4.4, 4.5 step 5).
func (o *Orchestrator) CompleteStage(stageID, commit string) error {
	return o.submit(func() error { return o.completeStage(stageID, commit) })
}

func (o *Orchestrator) completeStage(stageID, commit string) error {
	st := o.graph.Get(stageID)
	if st == nil {
		return fmt.Errorf("unknown stage: %s", stageID)
	}
	if st.Status != models.StageExecuting {
		return fmt.Errorf("stage %s not executing (status=%s)", stageID, st.Status)
	}

	worktreePath := o.ws.WorktreePath(stageID)
	if st.IsKnowledge() {
		worktreePath = o.cfg.RepoRoot
	}

	if err := o.runAcceptance(st, worktreePath); err != nil {
		return o.handleAcceptanceFailure(st, err)
	}

	if err := st.TryComplete(commit); err != nil {
		return err
	}
	delete(o.running, st.ID)
	if err := o.persistStage(st); err != nil {
		return err
	}
	o.logEvent(st.ID, "acceptance passed, stage completed")

	if st.IsKnowledge() {
		st.Merged = true
		if err := o.persistStage(st); err != nil {
			return err
		}
		return o.triggerDependents(st.ID)
	}

	if !o.cfg.AutoMerge {
		return nil
	}
	return o.mergeStage(st, worktreePath)
}

// runAcceptance executes a stage's declared criteria, if any, and is a
// no-op when none are configured (spec 3.1: acceptance is optional).
// Plain acceptance runs first; a stage that declares artifacts or
// wiring tests also undergoes goal-backward verification, which feeds
// the same fix-attempt budget as a failed criterion (spec section 2).
func (o *Orchestrator) runAcceptance(st *models.Stage, worktreePath string) error {
	if o.accept == nil {
		return nil
	}
	if len(st.Acceptance) > 0 {
		if err := o.accept.RunAll(st.ID, worktreePath, st.Acceptance); err != nil {
			return err
		}
	}

	var gaps []acceptance.VerificationGap
	if len(st.Artifacts) > 0 {
		artifactGaps, err := acceptance.VerifyArtifacts(st.Artifacts, worktreePath)
		if err != nil {
			return fmt.Errorf("verify artifacts for %s: %w", st.ID, err)
		}
		gaps = append(gaps, artifactGaps...)
	}
	if len(st.WiringTests) > 0 {
		wiringGaps, err := o.accept.VerifyWiringTests(st.WiringTests, worktreePath)
		if err != nil {
			return fmt.Errorf("verify wiring tests for %s: %w", st.ID, err)
		}
		gaps = append(gaps, wiringGaps...)
	}
	return acceptance.GapsFailure(st.ID, gaps)
}

// handleAcceptanceFailure implements spec 4.2/8's fix-attempt budget:
// under budget, the stage stays Executing so the same worker can keep
// fixing (the failure is only logged); at budget, it requests human
// review (spec 8 boundary: "the 4th acceptance failure requests human
// review instead of retrying").
func (o *Orchestrator) handleAcceptanceFailure(st *models.Stage, failure error) error {
	o.logEvent(st.ID, fmt.Sprintf("acceptance failed: %v", failure))
	if underBudget := st.RecordFixAttempt(); underBudget {
		return o.persistStage(st)
	}
	if err := st.TryRequestHumanReview(failure.Error()); err != nil {
		return err
	}
	delete(o.running, st.ID)
	return o.persistStage(st)
}

// mergeStage attempts the progressive merge for a completed stage's
// branch, finalizing the worktree on any success variant and
// escalating to a dedicated conflict-resolution session otherwise
// (spec 4.4).
func (o *Orchestrator) mergeStage(st *models.Stage, worktreePath string) error {
	if wt := o.worktrees[st.ID]; wt != nil {
		wt.Status = models.WorktreeMerging
	}

	branch := models.BranchForStage(st.ID)
	outcome, err := o.merger.Attempt(branch)
	if err != nil {
		return fmt.Errorf("merge attempt for %s: %w", st.ID, err)
	}

	if outcome.Kind == models.MergeConflictKind {
		o.logEvent(st.ID, fmt.Sprintf("merge conflict in %d files, spawning resolver", len(outcome.ConflictFiles)))
		return o.spawnConflictSession(st, worktreePath, branch, outcome.ConflictFiles)
	}

	if err := o.merger.Finalize(worktreePath, branch); err != nil {
		return fmt.Errorf("finalize merge for %s: %w", st.ID, err)
	}
	st.Merged = true
	st.MergeConflict = false
	if err := o.persistStage(st); err != nil {
		return err
	}
	if wt := o.worktrees[st.ID]; wt != nil {
		wt.Status = models.WorktreeMerged
	}
	o.logEvent(st.ID, fmt.Sprintf("merged (%s)", outcome.Kind))
	return o.triggerDependents(st.ID)
}

// spawnConflictSession hands the unmerged branch to a dedicated
// worker, leaving the stage Completed-but-unmerged until the resolver
// finishes (spec 4.4 "Conflict: spawn a merge-conflict session in the
// stage's existing worktree").
func (o *Orchestrator) spawnConflictSession(st *models.Stage, worktreePath, branch string, files []string) error {
	st.MergeConflict = true
	if err := o.persistStage(st); err != nil {
		return err
	}
	if wt := o.worktrees[st.ID]; wt != nil {
		wt.Status = models.WorktreeConflict
	}

	sess, err := o.newSession(st.ID, worktreePath, models.SessionTypeMerge)
	if err != nil {
		return err
	}
	signalPath := o.ws.SignalPath(sess.ID)
	in := signal.Input{
		SessionID:     sess.ID,
		StageID:       st.ID,
		PlanID:        st.PlanID,
		WorktreePath:  worktreePath,
		Branch:        branch,
		Stage:         st,
		ConflictFiles: files,
	}
	if err := signal.WriteAtomic(signalPath, in); err != nil {
		return fmt.Errorf("write conflict signal for %s: %w", st.ID, err)
	}
	pid, err := o.backend.SpawnMergeSession(terminal.SpawnRequest{
		StageID:      st.ID,
		SessionID:    sess.ID,
		WorktreePath: worktreePath,
		SignalPath:   signalPath,
		LogPath:      o.ws.LogPath(st.ID),
	})
	if err != nil {
		return fmt.Errorf("spawn conflict session for %s: %w", st.ID, err)
	}
	sess.PID = pid
	sess.Status = models.SessionRunning
	return o.persistSession(sess)
}

// ResolveMerge is the daemon's `stage merge-complete` RPC handler:
// called once a conflict-resolution session reports the branch is
// clean, it retries the merge and finalizes.
func (o *Orchestrator) ResolveMerge(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		worktreePath := o.ws.WorktreePath(stageID)
		return o.mergeStage(st, worktreePath)
	})
}

// triggerDependents promotes every WaitingForDeps stage whose
// dependencies are now all satisfied to Queued (spec 4.5 step 5
// "trigger_dependents").
func (o *Orchestrator) triggerDependents(stageID string) error {
	for _, id := range o.graph.RefreshReady() {
		st := o.graph.Get(id)
		if st == nil {
			continue
		}
		if err := st.TryQueue(); err != nil {
			return err
		}
		if err := o.persistStage(st); err != nil {
			return err
		}
	}
	return nil
}
