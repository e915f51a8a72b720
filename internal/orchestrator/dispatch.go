package orchestrator

import (
	"fmt"
	"os"
	"time"

	"github.com/cosmix/skein/internal/baseresolver"
	"github.com/cosmix/skein/internal/signal"
	"github.com/cosmix/skein/internal/terminal"
	"github.com/cosmix/skein/pkg/models"
)

// dependencyStatuses collects the status and outputs of every stage in deps,
// used to populate a signal's dependency table (spec 4.7).
func (o *Orchestrator) dependencyStatuses(deps []string) []models.DependencyStatus {
	out := make([]models.DependencyStatus, 0, len(deps))
	for _, dep := range deps {
		st := o.graph.Get(dep)
		if st == nil {
			continue
		}
		out = append(out, models.DependencyStatus{
			StageID: st.ID,
			Name:    st.Name,
			Status:  st.Status,
			Outputs: st.Outputs,
		})
	}
	return out
}

// loadHandoff returns the most recent handoff for a stage awaiting
// redispatch, if any (spec 4.7 bullet 7).
func (o *Orchestrator) loadHandoff(stageID string) *models.Handoff {
	return o.pendingHandoffs[stageID]
}

// dispatch implements spec 4.5 step 4 for a single ready stage:
// validate the FSM, resolve the base, create/adopt the worktree,
// build the signal, spawn the worker, and record the session.
func (o *Orchestrator) dispatch(st *models.Stage) error {
	if st.IsKnowledge() {
		return o.dispatchKnowledge(st)
	}

	base, err := baseresolver.Resolve(st.ID, st.Dependencies, o.graph, o.resolvedBaseBranch())
	if err != nil {
		if derr, ok := err.(*baseresolver.DependencyNotReady); ok {
			if berr := st.TryBlockFromQueue(derr.Error()); berr != nil {
				return berr
			}
			return o.persistStage(st)
		}
		return fmt.Errorf("resolve base for %s: %w", st.ID, err)
	}

	branch := models.BranchForStage(st.ID)
	worktreePath := o.ws.WorktreePath(st.ID)

	wt := &models.Worktree{
		StageID:   st.ID,
		Path:      worktreePath,
		Branch:    branch,
		Status:    models.WorktreeCreating,
		CreatedAt: time.Now().UTC(),
	}
	o.worktrees[st.ID] = wt

	// An existing worktree (e.g. left by a crashed session) is adopted
	// as is; otherwise a new one is cut from the resolved base.
	if _, statErr := os.Stat(worktreePath); statErr != nil {
		_ = o.gitRun.CheckoutBranch(base.Branch)
		if err := o.gitRun.WorktreeAddNewBranch(worktreePath, branch); err != nil {
			if berr := st.TryBlockFromQueue(fmt.Sprintf("worktree creation failed: %v", err)); berr != nil {
				return berr
			}
			return o.persistStage(st)
		}
	}
	if err := o.ws.LinkIntoWorktree(worktreePath); err != nil {
		return fmt.Errorf("link workspace into worktree for %s: %w", st.ID, err)
	}

	sess, err := o.newSession(st.ID, worktreePath, models.SessionTypeStage)
	if err != nil {
		return err
	}

	signalPath := o.ws.SignalPath(sess.ID)
	in := signal.Input{
		SessionID:    sess.ID,
		StageID:      st.ID,
		PlanID:       st.PlanID,
		WorktreePath: worktreePath,
		Branch:       branch,
		Stage:        st,
		Dependencies: o.dependencyStatuses(st.Dependencies),
		Handoff:      o.loadHandoff(st.ID),
	}
	if err := signal.WriteAtomic(signalPath, in); err != nil {
		return fmt.Errorf("write signal for %s: %w", st.ID, err)
	}

	pid, err := o.backend.SpawnSession(terminal.SpawnRequest{
		StageID:      st.ID,
		SessionID:    sess.ID,
		WorktreePath: worktreePath,
		SignalPath:   signalPath,
		LogPath:      o.ws.LogPath(st.ID),
	})
	if err != nil {
		return fmt.Errorf("spawn session for %s: %w", st.ID, err)
	}
	sess.PID = pid
	sess.Status = models.SessionRunning
	if err := o.persistSession(sess); err != nil {
		return err
	}

	st.BaseBranch = base.Branch
	st.ResolvedBase = base.Branch
	if err := st.TryExecute(sess.ID); err != nil {
		return err
	}
	if err := o.persistStage(st); err != nil {
		return err
	}
	o.running[st.ID] = sess
	wt.Status = models.WorktreeActive
	return nil
}

// dispatchKnowledge handles a Knowledge stage: it needs no worktree or
// merge (spec 3.1, section 9 open question). It still spawns a worker
// (knowledge work is still performed by an agent), but against the
// main repository checkout directly, and marks merged=true the moment
// it completes rather than going through mergeengine.
func (o *Orchestrator) dispatchKnowledge(st *models.Stage) error {
	sess, err := o.newSession(st.ID, o.cfg.RepoRoot, models.SessionTypeStage)
	if err != nil {
		return err
	}
	signalPath := o.ws.SignalPath(sess.ID)
	in := signal.Input{
		SessionID:    sess.ID,
		StageID:      st.ID,
		PlanID:       st.PlanID,
		WorktreePath: o.cfg.RepoRoot,
		Branch:       o.resolvedBaseBranch(),
		Stage:        st,
		Dependencies: o.dependencyStatuses(st.Dependencies),
		Handoff:      o.loadHandoff(st.ID),
	}
	if err := signal.WriteAtomic(signalPath, in); err != nil {
		return fmt.Errorf("write signal for %s: %w", st.ID, err)
	}
	pid, err := o.backend.SpawnSession(terminal.SpawnRequest{
		StageID:      st.ID,
		SessionID:    sess.ID,
		WorktreePath: o.cfg.RepoRoot,
		SignalPath:   signalPath,
		LogPath:      o.ws.LogPath(st.ID),
	})
	if err != nil {
		return fmt.Errorf("spawn knowledge session for %s: %w", st.ID, err)
	}
	sess.PID = pid
	sess.Status = models.SessionRunning
	if err := o.persistSession(sess); err != nil {
		return err
	}
	if err := st.TryExecute(sess.ID); err != nil {
		return err
	}
	if err := o.persistStage(st); err != nil {
		return err
	}
	o.running[st.ID] = sess
	return nil
}

// resolvedBaseBranch returns the configured base branch, falling back
// to the repository's detected default branch (spec 6 "Git contract").
func (o *Orchestrator) resolvedBaseBranch() string {
	if o.cfg.BaseBranch != "" {
		return o.cfg.BaseBranch
	}
	branch, err := o.gitRun.DefaultBranch()
	if err != nil {
		return "main"
	}
	return branch
}
