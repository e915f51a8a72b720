package terminal

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/creack/pty"

	"github.com/cosmix/skein/internal/workspace"
	"github.com/cosmix/skein/pkg/models"
)

// wrapperScript is the shell template written for every spawn. It
// writes its own PID to a pid file before `exec`ing the worker, so the
// PID the orchestrator records is the worker's own — not an
// intermediate shell's, and not lost if the orchestrator's in-memory
// handle to the process is discarded across a daemon restart (spec
// section 4.8, section 9 "Process supervision": "An implementer MUST
// preserve this property"). `exec` replaces this shell's process
// image without forking, so the PID written here remains valid for
// the lifetime of the worker.
const wrapperScript = `#!/bin/sh
set -e
pidfile="$1"
shift
echo $$ > "$pidfile.tmp"
mv "$pidfile.tmp" "$pidfile"
exec "$@"
`

// Native is the default terminal backend: it launches the worker
// under wrapperScript and captures its output into a pty-backed log
// file (spec section 2 "a 'native' backend that launches the worker
// under a small wrapper script").
type Native struct {
	ws *workspace.Workspace
	// WorkerCommand is the argv used to launch the worker, e.g.
	// ["claude", "-p"]. The worker process itself is an external
	// collaborator (spec section 1); this backend only knows how to
	// launch whatever is configured.
	WorkerCommand []string
}

// NewNative returns a Native backend rooted at ws.
func NewNative(ws *workspace.Workspace, workerCommand []string) *Native {
	return &Native{ws: ws, WorkerCommand: workerCommand}
}

func (n *Native) BackendType() string { return "native" }

func (n *Native) spawn(req SpawnRequest, sessionType models.SessionType) (int, error) {
	if len(n.WorkerCommand) == 0 {
		return 0, fmt.Errorf("native backend: no worker command configured")
	}

	wrapperPath := n.ws.WrapperPath(req.StageID)
	if err := os.WriteFile(wrapperPath, []byte(wrapperScript), 0755); err != nil {
		return 0, fmt.Errorf("write wrapper script: %w", err)
	}

	pidPath := n.ws.PidPath(req.StageID)
	args := append([]string{wrapperPath, pidPath}, n.WorkerCommand...)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = req.WorktreePath
	cmd.Env = append(os.Environ(),
		"SKEIN_SIGNAL_PATH="+req.SignalPath,
		"SKEIN_SESSION_ID="+req.SessionID,
		"SKEIN_STAGE_ID="+req.StageID,
		"SKEIN_SESSION_TYPE="+string(sessionType),
	)

	logFile, err := os.OpenFile(req.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}

	ptmx, pts, err := pty.Open()
	if err != nil {
		logFile.Close()
		return 0, fmt.Errorf("open pty: %w", err)
	}
	cmd.Stdout = pts
	cmd.Stderr = pts
	cmd.Stdin = pts
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		pts.Close()
		ptmx.Close()
		logFile.Close()
		return 0, fmt.Errorf("start worker: %w", err)
	}
	pts.Close()

	go func() {
		defer logFile.Close()
		defer ptmx.Close()
		_, _ = io.Copy(logFile, ptmx)
	}()
	go func() { _ = cmd.Wait() }()

	return waitForPidFile(pidPath, cmd.Process.Pid)
}

// waitForPidFile reads the wrapper's PID file once, without waiting,
// and falls back to the directly-observed process PID (the shell
// before it execs) if the file is not there yet or does not parse.
// Because the wrapper execs the worker in place, both name the same
// process. Liveness checks use the PID recorded here and do not read
// the file again.
func waitForPidFile(pidPath string, fallback int) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return fallback, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fallback, nil
	}
	return pid, nil
}

func (n *Native) SpawnSession(req SpawnRequest) (int, error) {
	return n.spawn(req, models.SessionTypeStage)
}

func (n *Native) SpawnMergeSession(req SpawnRequest) (int, error) {
	return n.spawn(req, models.SessionTypeMerge)
}

func (n *Native) SpawnBaseConflictSession(req SpawnRequest) (int, error) {
	return n.spawn(req, models.SessionTypeBaseConflict)
}

func (n *Native) KillSession(sess *models.Session) error {
	if sess.PID <= 0 {
		return nil
	}
	proc, err := os.FindProcess(sess.PID)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("signal pid %d: %w", sess.PID, err)
	}
	return nil
}

func (n *Native) IsSessionAlive(sess *models.Session) bool {
	if sess.PID <= 0 {
		return discoverByWorktree(sess.WorktreePath) > 0
	}
	proc, err := os.FindProcess(sess.PID)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes existence.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return discoverByWorktree(sess.WorktreePath) > 0
	}
	return true
}

// discoverByWorktree is the PID-based process-discovery fallback
// (SPEC_FULL section 12, grounded on loom's `discover_claude_pid`):
// used only when the recorded PID file is missing or stale, never as
// the primary liveness path. It scans /proc for a process whose cwd
// symlink resolves to the worktree.
func discoverByWorktree(worktreePath string) int {
	if worktreePath == "" {
		return 0
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0
	}
	want, err := filepath.EvalSymlinks(worktreePath)
	if err != nil {
		want = worktreePath
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		cwd, err := os.Readlink(filepath.Join("/proc", e.Name(), "cwd"))
		if err != nil {
			continue
		}
		if cwd == want {
			return pid
		}
	}
	return 0
}

var _ Backend = (*Native)(nil)
