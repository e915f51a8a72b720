package idrule

import (
	"os"
	"path/filepath"
	"strings"
)

// worktreesSegment is the directory name every worktree lives under:
// <repo>/.worktrees/<stage-id>/.
const worktreesSegment = ".worktrees"

// FindRepoRootFromCWD walks upward from path looking for a `.git`
// entry. If path contains a `.worktrees/` path segment, the main
// repository is the prefix before that segment — a worker running
// inside its worktree must still resolve back to the shared repo root
// (spec section 4.1).
func FindRepoRootFromCWD(path string) (string, bool) {
	path = filepath.Clean(path)

	if idx := worktreesSegmentIndex(path); idx >= 0 {
		return path[:idx], true
	}

	dir := path
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// FindWorktreeRootFromCWD returns the `.worktrees/<stage_id>` ancestor
// of path, if any.
func FindWorktreeRootFromCWD(path string) (string, bool) {
	path = filepath.Clean(path)
	idx := worktreesSegmentIndex(path)
	if idx < 0 {
		return "", false
	}
	rest := path[idx+len(worktreesSegment)+1:]
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	sep := strings.IndexRune(rest, filepath.Separator)
	stageDir := rest
	if sep >= 0 {
		stageDir = rest[:sep]
	}
	if stageDir == "" {
		return "", false
	}
	return filepath.Join(path[:idx], worktreesSegment, stageDir), true
}

// worktreesSegmentIndex returns the byte offset of the `.worktrees`
// path segment in path, or -1 if absent.
func worktreesSegmentIndex(path string) int {
	marker := string(filepath.Separator) + worktreesSegment + string(filepath.Separator)
	idx := strings.Index(path, marker)
	if idx < 0 {
		// Also match when path itself begins with the segment (rare,
		// but keeps the helper total for relative inputs).
		if strings.HasPrefix(path, worktreesSegment+string(filepath.Separator)) {
			return 0
		}
		return -1
	}
	return idx
}
