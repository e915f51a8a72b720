package graph

import (
	"sort"
	"testing"

	"github.com/cosmix/skein/pkg/models"
)

func stage(id string, deps ...string) *models.Stage {
	return &models.Stage{
		ID:           id,
		Name:         id,
		Dependencies: deps,
		Status:       models.StageWaitingForDeps,
	}
}

func TestNewGraphEmpty(t *testing.T) {
	g := New()
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestBuildSimple(t *testing.T) {
	g := New()
	err := g.Build([]*models.Stage{stage("a"), stage("b"), stage("c")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.Stage{stage("a", "missing")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.Stage{stage("a", "b"), stage("b", "a")})
	if err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestDependentsAndTopoOrder(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Stage{
		stage("a"),
		stage("b", "a"),
		stage("c", "a", "b"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.Dependents("a")
	sort.Strings(deps)
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Errorf("Dependents(a) = %v, want [b c]", deps)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("topological order violates dependencies: %v", order)
	}
}

func TestReadyReturnsOnlyQueuedStages(t *testing.T) {
	g := New()
	a := stage("a")
	b := stage("b", "a")
	if err := g.Build([]*models.Stage{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.Status = models.StageQueued
	ready := g.Ready()
	if len(ready) != 1 || ready[0] != "a" {
		t.Fatalf("Ready() = %v, want [a]", ready)
	}

	a.Status = models.StageCompleted
	a.Merged = true
	promoted := g.RefreshReady()
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("RefreshReady() = %v, want [b]", promoted)
	}
}

func TestRefreshReadyWithholdsUnmergedCompletedDependency(t *testing.T) {
	g := New()
	a := stage("a")
	b := stage("b", "a")
	if err := g.Build([]*models.Stage{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "a" reached Completed but is still stuck on the conflict path
	// (spec 4.3: Completed without merged must not unblock dependents).
	a.Status = models.StageCompleted
	promoted := g.RefreshReady()
	if len(promoted) != 0 {
		t.Fatalf("RefreshReady() = %v, want none while the dependency is unmerged", promoted)
	}

	a.Merged = true
	promoted = g.RefreshReady()
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("RefreshReady() = %v, want [b] once the dependency is merged", promoted)
	}
}

func TestReadyTreatsSkippedDependencyAsSatisfied(t *testing.T) {
	g := New()
	a := stage("a")
	a.Status = models.StageSkipped
	b := stage("b", "a")
	if err := g.Build([]*models.Stage{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	promoted := g.RefreshReady()
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("RefreshReady() = %v, want [b]", promoted)
	}
}

func TestParallelGroup(t *testing.T) {
	g := New()
	a := stage("a")
	a.ParallelGroup = "fanout"
	b := stage("b")
	b.ParallelGroup = "fanout"
	if err := g.Build([]*models.Stage{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := g.ParallelGroup("fanout")
	sort.Strings(group)
	if len(group) != 2 || group[0] != "a" || group[1] != "b" {
		t.Errorf("ParallelGroup(fanout) = %v, want [a b]", group)
	}
}

func TestMarkStatusUnknownStage(t *testing.T) {
	g := New()
	if err := g.Build(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.MarkStatus("missing", models.StageCompleted); err == nil {
		t.Error("expected error marking unknown stage")
	}
}
