package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cosmix/skein/pkg/models"
)

// livenessResult is what each per-session liveness check reports back
// to the single-threaded scheduler, which then applies every
// transition serially (spec section 5: the scheduler never waits
// synchronously on a worker, but fan-out of the liveness probes
// themselves is bounded and concurrent).
type livenessResult struct {
	stageID string
	alive   bool
	ctxHigh bool
}

// pollLiveness implements spec 4.5 step 2: for each running session,
// check liveness and context level; a dead session whose stage is
// still Executing is recorded as a crash (requeued while under
// max_retries, else Blocked; see recordCrash), and
// a session at or above the critical context threshold is moved to
// NeedsHandoff. golang.org/x/sync/errgroup bounds the fan-out across
// sessions so one slow liveness probe cannot stall the others
// (SPEC_FULL section 11).
func (o *Orchestrator) pollLiveness(ctx context.Context) error {
	if len(o.running) == 0 {
		return nil
	}

	results := make(chan livenessResult, len(o.running))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for stageID, sess := range o.running {
		stageID, sess := stageID, sess
		g.Go(func() error {
			alive := o.backend.IsSessionAlive(sess)
			ctxHigh := sess.ContextRatio() >= models.ContextCriticalThreshold
			results <- livenessResult{stageID: stageID, alive: alive, ctxHigh: ctxHigh}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("poll liveness: %w", err)
	}
	close(results)

	for r := range results {
		if err := o.applyLiveness(r); err != nil {
			o.Logger.Warnf("apply liveness for %s: %v", r.stageID, err)
		}
	}
	return nil
}

func (o *Orchestrator) applyLiveness(r livenessResult) error {
	st := o.graph.Get(r.stageID)
	if st == nil || st.Status != models.StageExecuting {
		return nil
	}
	sess := o.running[r.stageID]

	if r.ctxHigh {
		return o.handoffStage(st, sess)
	}
	if !r.alive {
		return o.recordCrash(st, sess)
	}
	sess.LastActive = time.Now().UTC()
	return o.persistSession(sess)
}

// recordCrash handles a dead session whose stage was still Executing:
// counts toward retry_count; re-queues under budget, else Blocks
// (spec 7 "SessionCrashed", spec 8 boundary "max_retries = 0 ... ->
// Blocked, not Queued").
func (o *Orchestrator) recordCrash(st *models.Stage, sess *models.Session) error {
	delete(o.running, st.ID)
	if sess != nil {
		sess.Status = models.SessionCrashed
		_ = o.persistSession(sess)
	}
	o.Logger.Warnf("stage %s: session crashed (pid retry %d/%d)", st.ID, st.RetryCount+1, st.MaxRetries)

	if underBudget := st.RecordRetry(); underBudget {
		if err := st.TryBlock("session crashed, retrying"); err != nil {
			return err
		}
		if err := st.TryUnblock(); err != nil {
			return err
		}
		return o.persistStage(st)
	}
	if err := st.TryBlock(fmt.Sprintf("session crashed %d times, exceeded max_retries=%d", st.RetryCount, st.MaxRetries)); err != nil {
		return err
	}
	return o.persistStage(st)
}

// handoffStage moves a stage whose context usage crossed the critical
// threshold to NeedsHandoff and records a structured handoff that the
// next session's signal embeds (spec 8 scenario 5). The handoff is
// kept in memory only (pendingHandoffs): no file is written under
// .work/handoffs, so a daemon restart loses it.
func (o *Orchestrator) handoffStage(st *models.Stage, sess *models.Session) error {
	delete(o.running, st.ID)
	if sess != nil {
		sess.Status = models.SessionContextExhausted
		_ = o.persistSession(sess)
	}

	o.handoffSeq[st.ID]++
	seq := o.handoffSeq[st.ID]
	h := &models.Handoff{
		StageID:   st.ID,
		SessionID: st.Session,
		Sequence:  seq,
		CreatedAt: time.Now().UTC(),
		NextActions: []string{
			"resume from the last recorded git state and continue the assignment",
		},
	}
	o.pendingHandoffs[st.ID] = h

	if err := st.TryNeedsHandoff(); err != nil {
		return err
	}
	// Stage rests in NeedsHandoff until an operator (or an external
	// watcher) calls resume; a new session only picks it up once
	// ResumeStage explicitly requests it (spec 4.2 table: trigger is
	// "new session picks it up", not automatic).
	return o.persistStage(st)
}
