package orchestrator

import (
	"context"
	"time"

	"github.com/cosmix/skein/pkg/models"
)

// Tick runs one pass of the scheduler loop (spec section 4.5):
//  1. drain queued RPC commands so their effects are visible this tick
//  2. poll liveness/context of every running session
//  3. compute the ready frontier and fill the session pool up to
//     max_parallel, in topological-then-lexical order
//  4. emit a status snapshot for subscribers
func (o *Orchestrator) Tick(ctx context.Context) error {
	o.drainCommands()

	if err := o.pollLiveness(ctx); err != nil {
		o.Logger.Warnf("poll liveness: %v", err)
	}

	for _, id := range o.graph.RefreshReady() {
		st := o.graph.Get(id)
		if st == nil {
			continue
		}
		if err := st.TryQueue(); err != nil {
			o.Logger.Warnf("queue %s: %v", id, err)
			continue
		}
		if err := o.persistStage(st); err != nil {
			o.Logger.Warnf("persist %s: %v", id, err)
		}
	}

	slots := o.cfg.MaxParallel - len(o.running)
	if slots > 0 {
		for _, id := range o.sortedIDs(o.graph.Ready()) {
			if slots <= 0 {
				break
			}
			st := o.graph.Get(id)
			if st == nil || st.Status != models.StageQueued {
				continue
			}
			if err := o.dispatch(st); err != nil {
				o.Logger.Warnf("dispatch %s: %v", id, err)
				continue
			}
			slots--
		}
	}

	o.emit()
	return nil
}

// Run drives Tick on cfg.PollInterval until the graph is complete (spec
// 4.5 "Exit condition: graph.is_complete(), unless watch_mode"), ctx is
// canceled, or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if o.cfg.WatchMode {
		go o.watchStages()
	}

	for {
		if err := o.Tick(ctx); err != nil {
			return err
		}
		if !o.cfg.WatchMode && o.graph.IsComplete() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		case <-ticker.C:
		}
	}
}
