package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"github.com/cosmix/skein/internal/acceptance"
	"github.com/cosmix/skein/internal/git"
	"github.com/cosmix/skein/internal/graph"
	"github.com/cosmix/skein/internal/idgen"
	"github.com/cosmix/skein/internal/journal"
	"github.com/cosmix/skein/internal/mergeengine"
	"github.com/cosmix/skein/internal/obslog"
	"github.com/cosmix/skein/internal/stageio"
	"github.com/cosmix/skein/internal/terminal"
	"github.com/cosmix/skein/internal/workspace"
	"github.com/cosmix/skein/pkg/models"
)

// Orchestrator is the scheduler described in spec section 4.5. A
// single goroutine (Run) owns graph, running, and the decision to
// spawn or kill; everything else communicates with it by calling its
// exported methods or reading StatusCh/LogCh.
type Orchestrator struct {
	cfg Config

	ws      *workspace.Workspace
	gitRun  git.Runner
	graph   *graph.Graph
	backend terminal.Backend
	merger  *mergeengine.Engine
	accept  *acceptance.Runner
	journal *journal.Journal

	// running maps stage id to its live session.
	running map[string]*models.Session

	// worktrees tracks the lifecycle (spec 3.3) of every stage's
	// on-disk checkout this process has created, from creation through
	// merge or removal.
	worktrees map[string]*models.Worktree

	// lastStatus tracks each stage's status as of its last persist, so
	// persistStage can append a forensic journal entry only when it
	// actually changed (spec section 11 journal wiring).
	lastStatus map[string]models.StageStatus

	// handoffSeq tracks the next handoff sequence number per stage.
	handoffSeq map[string]int
	// pendingHandoffs holds the most recent handoff content for a
	// stage awaiting redispatch, embedded verbatim into its next
	// signal (spec 4.7 bullet 7).
	pendingHandoffs map[string]*models.Handoff

	StatusCh chan StatusUpdate
	LogCh    chan LogLine

	// cmdCh carries mutation requests submitted by other goroutines
	// (daemon RPC handlers) into the single Run loop.
	cmdCh chan command

	stop chan struct{}

	Logger *obslog.Logger
}

// Deps bundles the collaborators Orchestrator needs, so wiring them
// up happens in one place (cmd/skein's buildOrchestrator builds it).
type Deps struct {
	Workspace *workspace.Workspace
	Git       git.Runner
	Graph     *graph.Graph
	Backend   terminal.Backend
	Merger    *mergeengine.Engine
	Accept    *acceptance.Runner
	Journal   *journal.Journal
	Logger    *obslog.Logger
}

// New constructs an Orchestrator ready to Run.
func New(cfg Config, d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = obslog.NewStderr()
	}
	return &Orchestrator{
		cfg:             cfg,
		ws:              d.Workspace,
		gitRun:          d.Git,
		graph:           d.Graph,
		backend:         d.Backend,
		merger:          d.Merger,
		accept:          d.Accept,
		journal:         d.Journal,
		running:         make(map[string]*models.Session),
		worktrees:       make(map[string]*models.Worktree),
		lastStatus:      make(map[string]models.StageStatus),
		handoffSeq:      make(map[string]int),
		pendingHandoffs: make(map[string]*models.Handoff),
		StatusCh:        make(chan StatusUpdate, 8),
		LogCh:           make(chan LogLine, 64),
		cmdCh:           make(chan command, 32),
		stop:            make(chan struct{}),
		Logger:          d.Logger,
	}
}

// Graph exposes the underlying execution graph for read-only queries.
func (o *Orchestrator) Graph() *graph.Graph { return o.graph }

// Worktree returns the tracked lifecycle record for a stage's on-disk
// checkout, or nil if this process never created one (e.g. a
// knowledge stage, or before the daemon restarted).
func (o *Orchestrator) Worktree(stageID string) *models.Worktree { return o.worktrees[stageID] }

// Stop signals Run's loop to exit after the current tick (spec 4.6
// "Stop sets the shutdown flag").
func (o *Orchestrator) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// persistStage writes a stage record back to disk. Every mutation to
// a Stage must be followed by this before the graph is considered to
// have observed it (spec section 5 ordering guarantee 1).
func (o *Orchestrator) persistStage(st *models.Stage) error {
	if err := stageio.WriteStage(o.ws.StagePath(st.ID), st); err != nil {
		return fmt.Errorf("persist stage %s: %w", st.ID, err)
	}
	o.recordTransition(st)
	return nil
}

// recordTransition appends a forensic journal entry whenever a
// persisted stage's status differs from what was last observed. The
// journal is best-effort: a write failure is logged, never returned,
// since it must never be able to stall or crash a scheduler tick.
func (o *Orchestrator) recordTransition(st *models.Stage) {
	if o.journal == nil {
		return
	}
	prev, known := o.lastStatus[st.ID]
	o.lastStatus[st.ID] = st.Status
	if known && prev == st.Status {
		return
	}
	detail := st.BlockedReason
	if detail == "" {
		detail = st.ReviewReason
	}
	if err := o.journal.Record(journal.Event{
		StageID:    st.ID,
		SessionID:  st.Session,
		FromStatus: string(prev),
		ToStatus:   string(st.Status),
		Detail:     detail,
	}); err != nil {
		o.Logger.Warnf("journal: %v", err)
	}
}

func (o *Orchestrator) persistSession(sess *models.Session) error {
	if err := stageio.WriteSession(o.ws.SessionPath(sess.ID), sess); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

// newSession records and persists a fresh session attached to a
// stage.
func (o *Orchestrator) newSession(stageID, worktreePath string, sessionType models.SessionType) (*models.Session, error) {
	now := time.Now().UTC()
	sess := &models.Session{
		ID:           idgen.NewSessionID(),
		StageID:      stageID,
		Status:       models.SessionSpawning,
		WorktreePath: worktreePath,
		SessionType:  sessionType,
		CreatedAt:    now,
		LastActive:   now,
	}
	if err := o.persistSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// sortedIDs returns ids in topological-then-lexical order, matching
// spec 4.5 step 3's tie-break rule.
func (o *Orchestrator) sortedIDs(ids []string) []string {
	topo, err := o.graph.TopologicalSort()
	if err != nil {
		sort.Strings(ids)
		return ids
	}
	rank := make(map[string]int, len(topo))
	for i, id := range topo {
		rank[id] = i
	}
	out := append([]string(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i]] != rank[out[j]] {
			return rank[out[i]] < rank[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
