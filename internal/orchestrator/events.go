package orchestrator

import "github.com/cosmix/skein/pkg/models"

// StageSummary is the per-stage projection sent in a StatusUpdate
// (spec section 6 "Response::StatusUpdate").
type StageSummary struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Status  models.StageStatus `json:"status"`
	Session string             `json:"session,omitempty"`
	Merged  bool               `json:"merged"`
}

// StatusUpdate is a consistent snapshot of the graph taken at a tick
// boundary (spec section 5 "status snapshots emitted to subscribers
// reflect a consistent graph snapshot taken at the tick boundary").
type StatusUpdate struct {
	Executing []StageSummary `json:"executing"`
	Pending   []StageSummary `json:"pending"`
	Completed []StageSummary `json:"completed"`
	Blocked   []StageSummary `json:"blocked"`
}

// LogLine is a single tailed line from a stage's worker log (spec
// section 6 "Request::SubscribeLog").
type LogLine struct {
	Stage string `json:"stage"`
	Text  string `json:"text"`
}

// snapshot builds a StatusUpdate from the current graph state. Caller
// must already hold whatever lock protects the graph for the duration
// of the read (the scheduler goroutine calls this between ticks, so
// in practice there is no concurrent writer).
func (o *Orchestrator) snapshot() StatusUpdate {
	var up StatusUpdate
	for _, st := range o.graph.All() {
		s := StageSummary{ID: st.ID, Name: st.Name, Status: st.Status, Session: st.Session, Merged: st.Merged}
		switch st.Status {
		case models.StageExecuting:
			up.Executing = append(up.Executing, s)
		case models.StageCompleted, models.StageCompletedWithFails, models.StageSkipped:
			up.Completed = append(up.Completed, s)
		case models.StageBlocked:
			up.Blocked = append(up.Blocked, s)
		default:
			up.Pending = append(up.Pending, s)
		}
	}
	return up
}

// emit pushes a status snapshot to subscribers, dropping it if the
// broadcast channel is full rather than blocking the scheduler tick
// (spec section 5 "Connection limits": "subscribers that fall behind
// the broadcast rate are dropped rather than buffered indefinitely").
func (o *Orchestrator) emit() {
	up := o.snapshot()
	select {
	case o.StatusCh <- up:
	default:
	}
}

// logEvent pushes a log line to subscribers, same drop-on-overflow
// policy as emit.
func (o *Orchestrator) logEvent(stage, text string) {
	select {
	case o.LogCh <- LogLine{Stage: stage, Text: text}:
	default:
	}
}
