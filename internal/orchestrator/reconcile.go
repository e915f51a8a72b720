package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cosmix/skein/pkg/models"
)

// Reconcile runs once before the daemon enters its accept loop
// (SPEC_FULL section 12 "Orphan/stale worktree recovery at startup"):
// it cross-references every worktree git still tracks against stages
// that are actually non-terminal, and removes the ones left behind by
// a daemon that was killed mid-session. Session files are not touched;
// stage files are written only by the final step, resumeInterrupted,
// which requeues stages left Executing.
func (o *Orchestrator) Reconcile() error {
	trees, err := o.gitRun.WorktreeList()
	if err != nil {
		return fmt.Errorf("list worktrees: %w", err)
	}

	active := make(map[string]bool)
	for _, st := range o.graph.All() {
		if !st.Status.Terminal() {
			active[o.ws.WorktreePath(st.ID)] = true
		}
	}

	worktreesDir := o.ws.WorktreesDir()
	var orphaned []string
	for _, path := range trees {
		if !strings.HasPrefix(path, worktreesDir+string(filepath.Separator)) {
			continue
		}
		if !active[path] {
			orphaned = append(orphaned, path)
		}
	}

	for _, path := range orphaned {
		o.Logger.Warnf("reconcile: removing orphaned worktree %s", path)
		if err := o.gitRun.WorktreeRemoveOptionalForce(path, true); err != nil {
			o.Logger.Warnf("reconcile: failed to remove %s: %v", path, err)
			continue
		}
		for id, wt := range o.worktrees {
			if wt.Path == path {
				wt.Status = models.WorktreeRemoved
				delete(o.worktrees, id)
			}
		}
	}
	if len(orphaned) > 0 {
		if err := o.gitRun.WorktreePrune(); err != nil {
			o.Logger.Warnf("reconcile: prune failed: %v", err)
		}
	}

	return o.resumeInterrupted()
}

// resumeInterrupted requeues any stage the previous daemon left
// Executing: its session died with the process, so the work must be
// redone by a freshly spawned one (spec 4.2: Executing has no
// transition back to itself other than through Blocked, matching the
// crash path liveness polling already uses).
func (o *Orchestrator) resumeInterrupted() error {
	for _, st := range o.graph.All() {
		if st.Status != models.StageExecuting {
			continue
		}
		o.Logger.Warnf("reconcile: stage %s was executing at last shutdown, requeuing", st.ID)
		if err := st.TryBlock("daemon restarted while stage was executing"); err != nil {
			return err
		}
		if err := st.TryUnblock(); err != nil {
			return err
		}
		if err := o.persistStage(st); err != nil {
			return err
		}
	}
	return nil
}
