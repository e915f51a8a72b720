package orchestrator

import (
	"fmt"

	"github.com/cosmix/skein/pkg/models"
)

// BlockStage is the `stage block` RPC handler: forces a running or
// queued stage to Blocked with an operator-supplied reason.
func (o *Orchestrator) BlockStage(stageID, reason string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		delete(o.running, stageID)
		if err := st.TryBlock(reason); err != nil {
			return err
		}
		return o.persistStage(st)
	})
}

// ResetStage is the `stage reset` RPC handler: clears a Blocked
// stage's reason and returns it to Queued so the next tick redispatches it.
func (o *Orchestrator) ResetStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		if err := st.TryUnblock(); err != nil {
			return err
		}
		st.RetryCount = 0
		return o.persistStage(st)
	})
}

// RetryStage is the `stage retry` RPC handler: same as reset, but
// preserves the retry counter so repeated manual retries still count
// against max_retries.
func (o *Orchestrator) RetryStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		if err := st.TryUnblock(); err != nil {
			return err
		}
		return o.persistStage(st)
	})
}

// HoldStage is the `stage hold` RPC handler (SPEC_FULL section 12):
// prevents a stage from being scheduled even once ready, without
// changing its FSM status.
func (o *Orchestrator) HoldStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		st.SetHeld(true)
		return o.persistStage(st)
	})
}

// ReleaseStage is the `stage release` RPC handler: clears a hold.
func (o *Orchestrator) ReleaseStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		st.SetHeld(false)
		return o.persistStage(st)
	})
}

// DisputeCriteria is the `dispute-criteria` RPC handler (SPEC_FULL
// section 12): a human requests review directly, freezing further
// automatic acceptance attempts regardless of fix_attempts budget.
func (o *Orchestrator) DisputeCriteria(stageID, reason string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		delete(o.running, stageID)
		if err := st.TryRequestHumanReview(reason); err != nil {
			return err
		}
		return o.persistStage(st)
	})
}

// ApproveReview is the resolution of a NeedsHumanReview stage back
// into Executing with a fresh fix-attempt budget.
func (o *Orchestrator) ApproveReview(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		sess, err := o.newSession(stageID, o.ws.WorktreePath(stageID), models.SessionTypeStage)
		if err != nil {
			return err
		}
		if err := st.TryApproveReview(sess.ID); err != nil {
			return err
		}
		if err := o.persistStage(st); err != nil {
			return err
		}
		o.running[stageID] = sess
		return nil
	})
}

// RejectReview moves a NeedsHumanReview stage to Blocked (spec 4.2
// "rejected"): the reviewer decided the work is wrong, not just
// waiting on a fix.
func (o *Orchestrator) RejectReview(stageID, reason string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		if err := st.TryRejectReview(reason); err != nil {
			return err
		}
		return o.persistStage(st)
	})
}

// ForceCompleteReview moves a NeedsHumanReview stage straight to
// Completed (spec 4.2 "force-completed"): the reviewer accepts the
// work as-is despite the failing acceptance criteria.
func (o *Orchestrator) ForceCompleteReview(stageID, commit string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		if err := st.TryForceCompleteReview(commit); err != nil {
			return err
		}
		if err := o.persistStage(st); err != nil {
			return err
		}
		return o.triggerDependents(st.ID)
	})
}

// ForceCompleteStage is the `--force-unsafe` recovery escape hatch
// (SPEC_FULL section 12): bypasses the FSM entirely rather than
// requiring a legal transition, for a stage wedged somewhere Try*
// guards cannot move it from. assumeMerged must be supplied explicitly
// by the operator; it is never inferred.
func (o *Orchestrator) ForceCompleteStage(stageID, commit string, assumeMerged bool) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		delete(o.running, stageID)
		st.ForceComplete(assumeMerged, commit)
		if err := o.persistStage(st); err != nil {
			return err
		}
		if assumeMerged {
			return o.triggerDependents(st.ID)
		}
		return nil
	})
}

// ResumeStage is the `resume` RPC handler (spec 4.2 table:
// NeedsHandoff -> Queued, trigger "new session picks it up"; spec 8
// scenario 5): moves a context-exhausted stage back to Queued so the
// next tick dispatches a fresh session whose signal embeds the
// previous handoff verbatim via loadHandoff.
func (o *Orchestrator) ResumeStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		if err := st.TryResumeFromHandoff(); err != nil {
			return err
		}
		return o.persistStage(st)
	})
}

// VerifyStage is the `stage verify` RPC handler (SPEC_FULL section
// 12): re-runs acceptance only, without redispatching a worker. Used
// to confirm a human's manual fix before resuming normal scheduling.
func (o *Orchestrator) VerifyStage(stageID string) error {
	return o.submit(func() error {
		st := o.graph.Get(stageID)
		if st == nil {
			return fmt.Errorf("unknown stage: %s", stageID)
		}
		worktreePath := o.ws.WorktreePath(stageID)
		if st.IsKnowledge() {
			worktreePath = o.cfg.RepoRoot
		}
		if err := o.runAcceptance(st, worktreePath); err != nil {
			return err
		}
		return nil
	})
}
