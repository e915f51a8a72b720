package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeCreatesSubdirs(t *testing.T) {
	repo := t.TempDir()
	ws := New(repo)
	if err := ws.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, d := range []string{"stages", "sessions", "signals", "handoffs", "pids", "wrappers", "logs"} {
		if _, err := os.Stat(filepath.Join(ws.Root(), d)); err != nil {
			t.Errorf("expected %s to exist: %v", d, err)
		}
	}
}

func TestInitializeRefusesExisting(t *testing.T) {
	repo := t.TempDir()
	ws := New(repo)
	if err := ws.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ws.Initialize(); err == nil {
		t.Error("expected second Initialize to fail")
	}
}

func TestValidateHealsMissingSubdir(t *testing.T) {
	repo := t.TempDir()
	ws := New(repo)
	if err := ws.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := os.RemoveAll(ws.StagesDir()); err != nil {
		t.Fatal(err)
	}
	if err := ws.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := os.Stat(ws.StagesDir()); err != nil {
		t.Errorf("expected stages dir healed: %v", err)
	}
}

func TestValidateMissingWorkspace(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Validate(); err == nil {
		t.Error("expected Validate to fail when .work does not exist")
	}
}

func TestMainProjectRootNonSymlink(t *testing.T) {
	repo := t.TempDir()
	ws := New(repo)
	if err := ws.Initialize(); err != nil {
		t.Fatal(err)
	}
	root, err := MainProjectRoot(ws.Root())
	if err != nil {
		t.Fatalf("MainProjectRoot: %v", err)
	}
	if root != repo {
		t.Errorf("MainProjectRoot = %q, want %q", root, repo)
	}
}

func TestMainProjectRootSymlink(t *testing.T) {
	base := t.TempDir()
	mainRepo := filepath.Join(base, "main-repo")
	mainWork := filepath.Join(mainRepo, ".work")
	if err := os.MkdirAll(mainWork, 0755); err != nil {
		t.Fatal(err)
	}
	worktree := filepath.Join(mainRepo, ".worktrees", "stage-1")
	if err := os.MkdirAll(worktree, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../../.work", filepath.Join(worktree, ".work")); err != nil {
		t.Fatal(err)
	}

	root, err := MainProjectRoot(filepath.Join(worktree, ".work"))
	if err != nil {
		t.Fatalf("MainProjectRoot: %v", err)
	}
	wantRoot, _ := filepath.EvalSymlinks(mainRepo)
	gotRoot, _ := filepath.EvalSymlinks(root)
	if gotRoot != wantRoot {
		t.Errorf("MainProjectRoot = %q, want %q", root, mainRepo)
	}
}

func TestLinkIntoWorktree(t *testing.T) {
	repo := t.TempDir()
	ws := New(repo)
	if err := ws.Initialize(); err != nil {
		t.Fatal(err)
	}
	worktree := filepath.Join(repo, ".worktrees", "stage-1")
	if err := os.MkdirAll(worktree, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ws.LinkIntoWorktree(worktree); err != nil {
		t.Fatalf("LinkIntoWorktree: %v", err)
	}
	linkPath := filepath.Join(worktree, ".work")
	info, err := os.Lstat(linkPath)
	if err != nil {
		t.Fatalf("lstat link: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("expected .work to be a symlink")
	}
}
