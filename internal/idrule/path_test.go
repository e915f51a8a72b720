package idrule

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRepoRootFromCWD(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, ok := FindRepoRootFromCWD(nested)
	if !ok || root != dir {
		t.Errorf("FindRepoRootFromCWD(%q) = (%q, %v), want (%q, true)", nested, root, ok, dir)
	}
}

func TestFindRepoRootFromCWDInsideWorktree(t *testing.T) {
	repo := "/home/user/project"
	insideWorktree := filepath.Join(repo, ".worktrees", "stage-1", "src", "pkg")

	root, ok := FindRepoRootFromCWD(insideWorktree)
	if !ok || root != repo {
		t.Errorf("FindRepoRootFromCWD(%q) = (%q, %v), want (%q, true)", insideWorktree, root, ok, repo)
	}
}

func TestFindWorktreeRootFromCWD(t *testing.T) {
	repo := "/home/user/project"
	inside := filepath.Join(repo, ".worktrees", "stage-1", "src")
	want := filepath.Join(repo, ".worktrees", "stage-1")

	root, ok := FindWorktreeRootFromCWD(inside)
	if !ok || root != want {
		t.Errorf("FindWorktreeRootFromCWD(%q) = (%q, %v), want (%q, true)", inside, root, ok, want)
	}
}

func TestFindWorktreeRootFromCWDOutsideWorktree(t *testing.T) {
	_, ok := FindWorktreeRootFromCWD("/home/user/project/src")
	if ok {
		t.Error("expected no worktree root for a path outside .worktrees")
	}
}
