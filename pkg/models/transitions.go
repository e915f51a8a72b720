package models

import (
	"fmt"
	"time"
)

// FsmIllegal is returned when a caller requests a transition that the
// table in spec section 4.2 does not permit.
type FsmIllegal struct {
	StageID string
	From    StageStatus
	To      StageStatus
}

func (e *FsmIllegal) Error() string {
	return fmt.Sprintf("stage %s: illegal transition %s -> %s", e.StageID, e.From, e.To)
}

// legalTransitions is the exact transition table from spec section
// 4.2. Every Try* guard below consults it; the only other path that
// mutates Stage.Status is ForceComplete's explicit bypass. "any ->
// Skipped" is represented by checking the wildcard key separately.
var legalTransitions = map[StageStatus]map[StageStatus]bool{
	StageWaitingForDeps: {StageQueued: true},
	StageQueued: {
		StageExecuting: true,
		StageBlocked:   true,
	},
	StageExecuting: {
		StageCompleted:          true,
		StageCompletedWithFails: true,
		StageNeedsHandoff:       true,
		StageBlocked:            true,
		StageWaitingForInput:    true,
		StageNeedsHumanReview:   true,
	},
	StageNeedsHandoff:     {StageQueued: true},
	StageBlocked:          {StageQueued: true},
	StageWaitingForInput:  {StageExecuting: true},
	StageNeedsHumanReview: {StageExecuting: true, StageCompleted: true, StageBlocked: true},
	StageCompleted:        {StageCompleted: true}, // idempotent no-op
}

// CanTransition reports whether from -> to is a legal move under the
// table above, also allowing self-to-self as a no-op and any -> Skipped.
func CanTransition(from, to StageStatus) bool {
	if from == to {
		return true
	}
	if to == StageSkipped {
		return true
	}
	return legalTransitions[from][to]
}

// transition mutates s.Status if the move is legal, stamping UpdatedAt.
// Outside of construction, Status is assigned only here and in
// ForceComplete.
func (s *Stage) transition(to StageStatus) error {
	if !CanTransition(s.Status, to) {
		return &FsmIllegal{StageID: s.ID, From: s.Status, To: to}
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// TryQueue moves WaitingForDeps -> Queued. Callers must have already
// verified every dependency is Completed and merged (spec 3.1
// invariant); this guard only enforces the FSM shape, not the
// dependency predicate, which lives in the base resolver / graph.
func (s *Stage) TryQueue() error {
	return s.transition(StageQueued)
}

// TryExecute moves Queued -> Executing and records the session
// attached to it.
func (s *Stage) TryExecute(sessionID string) error {
	if err := s.transition(StageExecuting); err != nil {
		return err
	}
	s.Session = sessionID
	return nil
}

// TryBlockFromQueue moves Queued -> Blocked, e.g. when base
// resolution fails (spec 4.2).
func (s *Stage) TryBlockFromQueue(reason string) error {
	if err := s.transition(StageBlocked); err != nil {
		return err
	}
	s.BlockedReason = reason
	s.Session = ""
	return nil
}

// TryComplete moves Executing -> Completed. Idempotent: calling it
// again on an already-Completed stage is a documented no-op (spec
// section 8 "Laws: Idempotence") and must not bump counters, attempt
// another merge, or re-trigger dependents; callers are responsible
// for checking s.Status == StageCompleted before re-running
// side-effecting work.
func (s *Stage) TryComplete(commit string) error {
	if s.Status == StageCompleted {
		return nil
	}
	if err := s.transition(StageCompleted); err != nil {
		return err
	}
	s.Session = ""
	s.CompletedCommit = commit
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// TryCompleteWithFailures moves Executing -> CompletedWithFailures
// when acceptance failed but the operator forced completion anyway.
func (s *Stage) TryCompleteWithFailures(commit string) error {
	if err := s.transition(StageCompletedWithFails); err != nil {
		return err
	}
	s.Session = ""
	s.CompletedCommit = commit
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// TryNeedsHandoff moves Executing -> NeedsHandoff when context usage
// crosses the critical threshold (spec 8 scenario 5).
func (s *Stage) TryNeedsHandoff() error {
	if err := s.transition(StageNeedsHandoff); err != nil {
		return err
	}
	s.Session = ""
	return nil
}

// TryBlock moves Executing -> Blocked (operator block or fatal error).
func (s *Stage) TryBlock(reason string) error {
	if err := s.transition(StageBlocked); err != nil {
		return err
	}
	s.BlockedReason = reason
	s.Session = ""
	return nil
}

// TryWaitingForInput moves Executing -> WaitingForInput when the
// worker asked a question it cannot proceed without an answer to.
func (s *Stage) TryWaitingForInput() error {
	return s.transition(StageWaitingForInput)
}

// TryResumeFromInput moves WaitingForInput -> Executing once an
// answer has been delivered.
func (s *Stage) TryResumeFromInput() error {
	return s.transition(StageExecuting)
}

// TryRequestHumanReview moves Executing -> NeedsHumanReview once
// fix_attempts has reached max_fix_attempts (spec 4.2, 8 boundary
// behaviour). Also usable as the `dispute-criteria` verb (SPEC_FULL
// section 12): a human or operator can request review directly,
// freezing further automatic acceptance attempts. Idempotent if
// already in NeedsHumanReview.
func (s *Stage) TryRequestHumanReview(reason string) error {
	if s.Status == StageNeedsHumanReview {
		s.ReviewReason = reason
		return nil
	}
	if err := s.transition(StageNeedsHumanReview); err != nil {
		return err
	}
	s.ReviewReason = reason
	s.Session = ""
	return nil
}

// TryApproveReview moves NeedsHumanReview -> Executing, resetting the
// fix-attempt counter to zero (spec 4.2: "approved (fix_attempts := 0)").
func (s *Stage) TryApproveReview(sessionID string) error {
	if err := s.transition(StageExecuting); err != nil {
		return err
	}
	s.FixAttempts = 0
	s.ReviewReason = ""
	s.Session = sessionID
	return nil
}

// TryForceCompleteReview moves NeedsHumanReview -> Completed (spec
// 4.2 "force-completed").
func (s *Stage) TryForceCompleteReview(commit string) error {
	if err := s.transition(StageCompleted); err != nil {
		return err
	}
	s.Session = ""
	s.ReviewReason = ""
	s.CompletedCommit = commit
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// TryRejectReview moves NeedsHumanReview -> Blocked (spec 4.2
// "rejected").
func (s *Stage) TryRejectReview(reason string) error {
	if err := s.transition(StageBlocked); err != nil {
		return err
	}
	s.BlockedReason = reason
	s.ReviewReason = ""
	s.Session = ""
	return nil
}

// TryUnblock moves Blocked -> Queued ("unblocked" in spec 4.2's
// table), used by the `reset` verb.
func (s *Stage) TryUnblock() error {
	if err := s.transition(StageQueued); err != nil {
		return err
	}
	s.BlockedReason = ""
	return nil
}

// TryResumeFromHandoff moves NeedsHandoff -> Queued: a new session is
// about to pick the stage back up.
func (s *Stage) TryResumeFromHandoff() error {
	return s.transition(StageQueued)
}

// TrySkip moves any status -> Skipped with a reason. Skipped stages
// are treated as satisfied dependencies by the graph (spec 4.2 "any ->
// Skipped").
func (s *Stage) TrySkip(reason string) error {
	if err := s.transition(StageSkipped); err != nil {
		return err
	}
	s.Session = ""
	s.BlockedReason = reason
	return nil
}

// ForceComplete is the `--force-unsafe` / `--assume-merged` recovery
// escape hatch (SPEC_FULL section 12, grounded on loom's
// `types_stage.rs` Complete command): a single explicit bypass of the
// FSM for manual recovery. assumeMerged is never inferred — the
// caller must say whether the work actually landed at the merge
// point, and the bypass is recorded in the stage body so an operator
// inspecting the file sees it was not a normal transition.
func (s *Stage) ForceComplete(assumeMerged bool, commit string) {
	s.Status = StageCompleted
	s.Session = ""
	s.Merged = assumeMerged
	s.CompletedCommit = commit
	now := time.Now().UTC()
	s.CompletedAt = &now
	s.UpdatedAt = now
	s.Body += fmt.Sprintf("\n\n---\n_forced complete at %s (assume_merged=%t), bypassing normal acceptance/merge_\n", now.Format(time.RFC3339), assumeMerged)
}

// RecordRetry increments the retry counter on a crash or acceptance
// timeout and reports whether the stage is still under budget (spec
// 8 boundary: "max_retries = 0 that fails once transitions to
// Blocked, not Queued").
func (s *Stage) RecordRetry() (underBudget bool) {
	s.RetryCount++
	now := time.Now().UTC()
	s.LastFailureAt = &now
	return s.RetryCount <= s.MaxRetries
}

// RecordFixAttempt increments fix_attempts and reports whether the
// stage is still under its acceptance-fix budget (spec 8 boundary:
// "fix_attempts clamps at max_fix_attempts; the 4th acceptance
// failure requests human review instead of retrying"). A
// max_fix_attempts of 0 means skip retries entirely.
func (s *Stage) RecordFixAttempt() (underBudget bool) {
	s.FixAttempts++
	now := time.Now().UTC()
	s.LastFailureAt = &now
	return s.FixAttempts <= s.MaxFixAttempts
}

// SetHeld sets or clears the Held flag (SPEC_FULL section 12 `stage
// hold` / `stage release`): a stage can be held without changing its
// FSM status, so the ready-frontier computation must check it
// separately from Status.
func (s *Stage) SetHeld(held bool) {
	s.Held = held
	s.UpdatedAt = time.Now().UTC()
}
