package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.MaxParallel != 3 {
		t.Errorf("expected default max_parallel 3, got %d", cfg.Scheduler.MaxParallel)
	}
	if cfg.Scheduler.PollInterval != 2*time.Second {
		t.Errorf("expected default poll_interval 2s, got %v", cfg.Scheduler.PollInterval)
	}
	if !cfg.Scheduler.AutoMerge {
		t.Error("expected auto_merge to default true")
	}
	if cfg.Backend.Kind != "native" {
		t.Errorf("expected default backend 'native', got %q", cfg.Backend.Kind)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.MaxParallel != 3 {
		t.Errorf("expected default max_parallel on missing file, got %d", cfg.Scheduler.MaxParallel)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Scheduler.MaxParallel = 5
	cfg.Scheduler.BaseBranch = "develop"
	cfg.Backend.Kind = "tmux"

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Scheduler.MaxParallel != 5 {
		t.Errorf("expected max_parallel 5 after round-trip, got %d", loaded.Scheduler.MaxParallel)
	}
	if loaded.Scheduler.BaseBranch != "develop" {
		t.Errorf("expected base_branch 'develop' after round-trip, got %q", loaded.Scheduler.BaseBranch)
	}
	if loaded.Backend.Kind != "tmux" {
		t.Errorf("expected backend 'tmux' after round-trip, got %q", loaded.Backend.Kind)
	}

	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
}

func TestToOrchestratorConfig(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxParallel = 7
	oc := cfg.ToOrchestratorConfig("/repo")

	if oc.RepoRoot != "/repo" {
		t.Errorf("expected repo root '/repo', got %q", oc.RepoRoot)
	}
	if oc.MaxParallel != 7 {
		t.Errorf("expected max parallel 7, got %d", oc.MaxParallel)
	}
	if !oc.AutoMerge {
		t.Error("expected auto_merge to carry over")
	}
}
