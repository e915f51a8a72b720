// Package workspace is a typed handle over the `.work/` directory: the
// single source of truth for stages, sessions, signals, handoffs,
// logs, pid files, and the daemon's own bookkeeping files (spec
// section 2 "Filesystem layout", section 6 "Workspace layout").
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// subdirs lists every directory the workspace owns. Validate and
// Heal both walk this list so a hand-edited or partially-initialized
// `.work/` self-repairs rather than hard-failing.
var subdirs = []string{
	"stages",
	"sessions",
	"signals",
	"handoffs",
	"pids",
	"wrappers",
	"logs",
	"knowledge",
	"memory",
}

// Workspace is a typed handle rooted at `<repo>/.work`.
type Workspace struct {
	root string
}

// New returns a handle for the `.work` directory under repoRoot. It
// does not touch the filesystem; call Initialize or Heal first.
func New(repoRoot string) *Workspace {
	return &Workspace{root: filepath.Join(repoRoot, ".work")}
}

// Root returns the `.work` directory path.
func (w *Workspace) Root() string { return w.root }

// ProjectRoot returns the parent of `.work` — the main repository.
func (w *Workspace) ProjectRoot() string { return filepath.Dir(w.root) }

// Initialize creates a fresh `.work` directory tree. It fails if one
// already exists, to avoid silently adopting stale state.
func (w *Workspace) Initialize() error {
	if _, err := os.Stat(w.root); err == nil {
		return fmt.Errorf("workspace already exists at %s", w.root)
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	for _, d := range subdirs {
		if err := os.MkdirAll(filepath.Join(w.root, d), 0755); err != nil {
			return fmt.Errorf("create %s directory: %w", d, err)
		}
	}
	return nil
}

// Validate checks that `.work` exists and every required
// subdirectory is present, creating whichever are missing. This is
// the auto-heal semantics spec section 2 calls for: a workspace
// partially wiped by an operator should not wedge the daemon.
func (w *Workspace) Validate() error {
	if _, err := os.Stat(w.root); err != nil {
		return fmt.Errorf("workspace does not exist at %s: run init first", w.root)
	}
	return w.Heal()
}

// Heal recreates any missing required subdirectory.
func (w *Workspace) Heal() error {
	for _, d := range subdirs {
		path := filepath.Join(w.root, d)
		if _, err := os.Stat(path); err != nil {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("heal %s directory: %w", d, err)
			}
		}
	}
	return nil
}

func (w *Workspace) StagesDir() string    { return filepath.Join(w.root, "stages") }
func (w *Workspace) SessionsDir() string  { return filepath.Join(w.root, "sessions") }
func (w *Workspace) SignalsDir() string   { return filepath.Join(w.root, "signals") }
func (w *Workspace) HandoffsDir() string  { return filepath.Join(w.root, "handoffs") }
func (w *Workspace) PidsDir() string      { return filepath.Join(w.root, "pids") }
func (w *Workspace) WrappersDir() string  { return filepath.Join(w.root, "wrappers") }
func (w *Workspace) LogsDir() string      { return filepath.Join(w.root, "logs") }
func (w *Workspace) KnowledgeDir() string { return filepath.Join(w.root, "knowledge") }
func (w *Workspace) MemoryDir() string    { return filepath.Join(w.root, "memory") }

func (w *Workspace) StagePath(stageID string) string {
	return filepath.Join(w.StagesDir(), stageID+".md")
}

func (w *Workspace) SessionPath(sessionID string) string {
	return filepath.Join(w.SessionsDir(), sessionID+".md")
}

func (w *Workspace) SignalPath(sessionID string) string {
	return filepath.Join(w.SignalsDir(), sessionID+".md")
}

func (w *Workspace) HandoffPath(stageID string, sequence int) string {
	return filepath.Join(w.HandoffsDir(), fmt.Sprintf("%s-%d.md", stageID, sequence))
}

func (w *Workspace) PidPath(stageID string) string {
	return filepath.Join(w.PidsDir(), stageID+".pid")
}

func (w *Workspace) WrapperPath(stageID string) string {
	return filepath.Join(w.WrappersDir(), stageID+"-wrapper.sh")
}

func (w *Workspace) LogPath(stageID string) string {
	return filepath.Join(w.LogsDir(), stageID+".log")
}

func (w *Workspace) SocketPath() string       { return filepath.Join(w.root, "orchestrator.sock") }
func (w *Workspace) PidFilePath() string      { return filepath.Join(w.root, "orchestrator.pid") }
func (w *Workspace) DaemonLogPath() string    { return filepath.Join(w.root, "orchestrator.log") }
func (w *Workspace) CompletionMarker() string { return filepath.Join(w.root, "orchestrator.complete") }
func (w *Workspace) ConfigPath() string       { return filepath.Join(w.root, "config.toml") }
func (w *Workspace) JournalPath() string      { return filepath.Join(w.root, "orchestrator.db") }

// WorktreesDir returns `<repo>/.worktrees`, the sibling of `.work`
// where worker checkouts live (spec section 3.3).
func (w *Workspace) WorktreesDir() string {
	return filepath.Join(w.ProjectRoot(), ".worktrees")
}

func (w *Workspace) WorktreePath(stageID string) string {
	return filepath.Join(w.WorktreesDir(), stageID)
}

// MainProjectRoot resolves the `.work` symlink a worker sees inside
// its worktree (spec section 3.3: "A symlink `.work` inside the
// worktree points at `../../.work`") back to the true main repository
// root. If root is not a symlink, it simply returns its parent.
func MainProjectRoot(workDirPath string) (string, error) {
	info, err := os.Lstat(workDirPath)
	if err != nil {
		return "", fmt.Errorf("stat workspace path: %w", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return filepath.Dir(workDirPath), nil
	}
	target, err := os.Readlink(workDirPath)
	if err != nil {
		return "", fmt.Errorf("read workspace symlink: %w", err)
	}
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(workDirPath), target)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve workspace symlink: %w", err)
	}
	return filepath.Dir(abs), nil
}

// LinkIntoWorktree creates the `.work` symlink inside a freshly
// created worktree, giving the worker read access to shared state by
// convention (spec section 3.3).
func (w *Workspace) LinkIntoWorktree(worktreePath string) error {
	rel, err := filepath.Rel(worktreePath, w.root)
	if err != nil {
		return fmt.Errorf("compute relative workspace path: %w", err)
	}
	linkPath := filepath.Join(worktreePath, ".work")
	if _, err := os.Lstat(linkPath); err == nil {
		return nil
	}
	if err := os.Symlink(rel, linkPath); err != nil {
		return fmt.Errorf("link workspace into worktree: %w", err)
	}
	return nil
}
