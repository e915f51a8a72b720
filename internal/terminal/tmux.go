package terminal

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cosmix/skein/pkg/models"
)

// Tmux spawns each worker inside a named tmux session and injects its
// launch command via debounced `send-keys`, rather than execing the
// worker directly as a subprocess of the daemon (spec section 2 "a
// multiplexer backend that spawns inside a named terminal session
// with debounced keystroke injection", SPEC_FULL section 12).
type Tmux struct {
	// Prefix names the tmux session: "<prefix>-<stage_id>" (SPEC_FULL
	// section 12).
	Prefix string
	// WorkerCommand is the shell command line used to launch the
	// worker inside the tmux pane.
	WorkerCommand string
	// Debounce is the pause between creating the session and sending
	// the launch keystrokes, giving the shell time to finish its
	// startup banner/rc files before input arrives.
	Debounce time.Duration
}

// NewTmux returns a Tmux backend with the teacher's conventional
// debounce window.
func NewTmux(prefix, workerCommand string) *Tmux {
	return &Tmux{Prefix: prefix, WorkerCommand: workerCommand, Debounce: 300 * time.Millisecond}
}

func (t *Tmux) BackendType() string { return "tmux" }

func (t *Tmux) sessionName(stageID string) string {
	return fmt.Sprintf("%s-%s", t.Prefix, stageID)
}

// zombie reports whether a tmux session with this name exists but has
// no live attached pane process (SPEC_FULL section 12: "zombie-session
// detection before reuse").
func (t *Tmux) zombie(name string) bool {
	out, err := exec.Command("tmux", "list-panes", "-t", name, "-F", "#{pane_pid}").Output()
	if err != nil {
		return false
	}
	pid := strings.TrimSpace(string(out))
	if pid == "" {
		return true
	}
	if _, err := strconv.Atoi(pid); err != nil {
		return true
	}
	return false
}

func (t *Tmux) spawn(req SpawnRequest, sessionType models.SessionType) (int, error) {
	name := t.sessionName(req.StageID)

	if exists := exec.Command("tmux", "has-session", "-t", name).Run() == nil; exists {
		if !t.zombie(name) {
			return 0, fmt.Errorf("tmux session %s already exists and is live", name)
		}
		_ = exec.Command("tmux", "kill-session", "-t", name).Run()
	}

	newCmd := exec.Command("tmux", "new-session", "-d", "-s", name, "-c", req.WorktreePath,
		"-x", "220", "-y", "50")
	if err := newCmd.Run(); err != nil {
		return 0, fmt.Errorf("create tmux session: %w", err)
	}

	_ = exec.Command("tmux", "set-environment", "-t", name, "SKEIN_SIGNAL_PATH", req.SignalPath).Run()
	_ = exec.Command("tmux", "set-environment", "-t", name, "SKEIN_SESSION_ID", req.SessionID).Run()
	_ = exec.Command("tmux", "set-environment", "-t", name, "SKEIN_STAGE_ID", req.StageID).Run()
	_ = exec.Command("tmux", "set-environment", "-t", name, "SKEIN_SESSION_TYPE", string(sessionType)).Run()
	_ = exec.Command("tmux", "pipe-pane", "-t", name, "-o", "cat >> "+shellQuote(req.LogPath)).Run()

	if t.Debounce > 0 {
		time.Sleep(t.Debounce)
	}

	if err := exec.Command("tmux", "send-keys", "-t", name, t.WorkerCommand, "Enter").Run(); err != nil {
		return 0, fmt.Errorf("inject launch command: %w", err)
	}

	out, err := exec.Command("tmux", "list-panes", "-t", name, "-F", "#{pane_pid}").Output()
	if err != nil {
		return 0, fmt.Errorf("read pane pid: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse pane pid: %w", err)
	}
	return pid, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (t *Tmux) SpawnSession(req SpawnRequest) (int, error) {
	return t.spawn(req, models.SessionTypeStage)
}

func (t *Tmux) SpawnMergeSession(req SpawnRequest) (int, error) {
	return t.spawn(req, models.SessionTypeMerge)
}

func (t *Tmux) SpawnBaseConflictSession(req SpawnRequest) (int, error) {
	return t.spawn(req, models.SessionTypeBaseConflict)
}

func (t *Tmux) KillSession(sess *models.Session) error {
	name := t.sessionName(sess.StageID)
	if err := exec.Command("tmux", "kill-session", "-t", name).Run(); err != nil {
		return fmt.Errorf("kill tmux session %s: %w", name, err)
	}
	return nil
}

func (t *Tmux) IsSessionAlive(sess *models.Session) bool {
	name := t.sessionName(sess.StageID)
	if exec.Command("tmux", "has-session", "-t", name).Run() != nil {
		return false
	}
	return !t.zombie(name)
}

var _ Backend = (*Tmux)(nil)
