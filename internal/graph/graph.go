// Package graph builds and maintains the execution graph of stages: a
// DAG over dependency edges plus parallel-group membership, used by
// the orchestrator to decide what is ready to run next (spec section
// 4.1 "Execution graph").
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cosmix/skein/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among stages.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph is a directed graph of stages. Edges point from a dependency
// to the stages that depend on it, so completing a stage can walk
// straight to its dependents without a full scan.
type Graph struct {
	mu sync.RWMutex
	// nodes maps stage ID to the stage itself.
	nodes map[string]*models.Stage
	// dependents maps stage ID to IDs of stages that depend on it.
	dependents map[string][]string
	// parallelGroups maps group name to the stage IDs sharing it.
	parallelGroups map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:          make(map[string]*models.Stage),
		dependents:     make(map[string][]string),
		parallelGroups: make(map[string][]string),
		debugLog:       func(format string, args ...interface{}) {},
	}
}

// SetDebugLog installs a logging function used for verbose tracing.
func (g *Graph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from a set of stages. Returns an error if
// a stage depends on an unknown stage ID or a cycle is detected.
func (g *Graph) Build(stages []*models.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d stages", len(stages))

	for _, st := range stages {
		g.nodes[st.ID] = st
		if _, ok := g.dependents[st.ID]; !ok {
			g.dependents[st.ID] = nil
		}
		if st.ParallelGroup != "" {
			g.parallelGroups[st.ParallelGroup] = append(g.parallelGroups[st.ParallelGroup], st.ID)
		}
	}

	for _, st := range stages {
		for _, dep := range st.Dependencies {
			if _, exists := g.nodes[dep]; !exists {
				return fmt.Errorf("stage %s depends on unknown stage %s", st.ID, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], st.ID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle reports whether the graph contains a circular dependency.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *Graph) hasCycleLocked() bool {
	colors := make(map[string]int, len(g.nodes))

	var hasCycle bool
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range g.nodes[id].Dependencies {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 {
			if visit(id) {
				hasCycle = true
				break
			}
		}
	}
	return hasCycle
}

// TopologicalSort returns stage IDs ordered so every dependency
// precedes the stages that depend on it.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.nodes[id].Dependencies {
			visit(dep)
		}
		result = append(result, id)
	}

	for id := range g.nodes {
		visit(id)
	}
	return result, nil
}

// depsSatisfied reports whether every dependency of id has landed:
// Skipped unconditionally, or Completed/CompletedWithFailures and
// merged (spec 4.3 step 2 — a dependency sitting Completed but still
// stuck in the conflict path must not unblock its dependents; matches
// baseresolver.Resolve's ready check). Caller must hold g.mu.
func (g *Graph) depsSatisfied(id string) bool {
	for _, dep := range g.nodes[id].Dependencies {
		depNode, ok := g.nodes[dep]
		if !ok {
			return false
		}
		switch depNode.Status {
		case models.StageSkipped:
			continue
		case models.StageCompleted, models.StageCompletedWithFails:
			if !depNode.Merged {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Ready returns the IDs of stages in StageQueued that are not held
// (the ready frontier). Stages still in StageWaitingForDeps are not
// included; RefreshReady reports which of those can be promoted.
func (g *Graph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, st := range g.nodes {
		if st.Status != models.StageQueued || st.Held {
			continue
		}
		ready = append(ready, id)
	}
	g.debugLog("[graph.Ready] %d of %d stages ready", len(ready), len(g.nodes))
	return ready
}

// RefreshReady promotes every StageWaitingForDeps stage whose
// dependencies are now satisfied to StageQueued, returning the IDs
// that can change. It does not change any status: callers make and
// persist the change themselves. The graph holds the same stage
// records the caller passed to Build, so a status set on them is
// visible to the graph at once.
func (g *Graph) RefreshReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var promoted []string
	for id, st := range g.nodes {
		if st.Status == models.StageWaitingForDeps && g.depsSatisfied(id) {
			promoted = append(promoted, id)
		}
	}
	return promoted
}

// ParallelGroup returns the stage IDs sharing the given group name.
func (g *Graph) ParallelGroup(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.parallelGroups[name]...)
}

// ParallelGroupNames returns every distinct parallel group name.
func (g *Graph) ParallelGroupNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.parallelGroups))
	for name := range g.parallelGroups {
		names = append(names, name)
	}
	return names
}

// MarkStatus records a stage's new status in the graph's view. The
// stage record itself remains the caller's to persist; this only
// keeps dependency evaluation in sync within the process.
func (g *Graph) MarkStatus(stageID string, status models.StageStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.nodes[stageID]
	if !ok {
		return fmt.Errorf("stage not found: %s", stageID)
	}
	st.Status = status
	return nil
}

// Dependents returns the IDs of stages that depend on stageID.
func (g *Graph) Dependents(stageID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[stageID]...)
}

// Get returns the stage for the given ID, or nil if absent.
func (g *Graph) Get(stageID string) *models.Stage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[stageID]
}

// Size returns the number of stages in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// All returns every stage currently tracked by the graph.
func (g *Graph) All() []*models.Stage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.Stage, 0, len(g.nodes))
	for _, st := range g.nodes {
		out = append(out, st)
	}
	return out
}

// IsComplete reports whether every stage has reached a terminal
// status (spec 4.5 "Exit condition: graph.is_complete()").
func (g *Graph) IsComplete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, st := range g.nodes {
		if !st.Status.Terminal() {
			return false
		}
	}
	return true
}

// Add inserts a newly-discovered stage into the graph (spec 4.5 exit
// condition bullet: watch mode "will pick up externally-added
// stages"). It re-wires dependency edges the same way Build does for
// a single node.
func (g *Graph) Add(st *models.Stage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[st.ID]; exists {
		return fmt.Errorf("stage %s already present in graph", st.ID)
	}
	g.nodes[st.ID] = st
	if _, ok := g.dependents[st.ID]; !ok {
		g.dependents[st.ID] = nil
	}
	if st.ParallelGroup != "" {
		g.parallelGroups[st.ParallelGroup] = append(g.parallelGroups[st.ParallelGroup], st.ID)
	}
	for _, dep := range st.Dependencies {
		if _, exists := g.nodes[dep]; !exists {
			delete(g.nodes, st.ID)
			return fmt.Errorf("stage %s depends on unknown stage %s", st.ID, dep)
		}
		g.dependents[dep] = append(g.dependents[dep], st.ID)
	}
	if g.hasCycleLocked() {
		delete(g.nodes, st.ID)
		return ErrCycleDetected
	}
	return nil
}
