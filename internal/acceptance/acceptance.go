// Package acceptance runs a stage's declared acceptance commands (and
// the artifact/wiring checks a goal-backward verification pass adds)
// inside its worktree, under a deadline, and classifies the result
// (spec section 2 "Acceptance and goal-backward verification", section
// 5 "Cancellation and timeouts").
package acceptance

import (
	"context"
	"fmt"
	"time"

	skeinexec "github.com/cosmix/skein/internal/exec"
)

// Default deadlines from spec section 5.
const (
	DefaultCriterionTimeout = 30 * time.Second
	DefaultBaselineTimeout  = 5 * time.Minute
)

// Failure is spec section 7's `AcceptanceFailed { stage, criterion,
// exit_code, stderr_head }`.
type Failure struct {
	Stage      string
	Criterion  string
	ExitCode   int
	StderrHead string
	TimedOut   bool
}

func (f *Failure) Error() string {
	if f.TimedOut {
		return fmt.Sprintf("stage %s: acceptance criterion %q timed out", f.Stage, f.Criterion)
	}
	return fmt.Sprintf("stage %s: acceptance criterion %q failed (exit %d): %s", f.Stage, f.Criterion, f.ExitCode, f.StderrHead)
}

// Runner executes acceptance commands via a CommandRunner, so tests
// can substitute a fake without shelling out.
type Runner struct {
	Cmd     skeinexec.CommandRunner
	Timeout time.Duration
}

// New returns a Runner using the default per-criterion timeout.
func New(cmd skeinexec.CommandRunner) *Runner {
	return &Runner{Cmd: cmd, Timeout: DefaultCriterionTimeout}
}

// RunAll runs every criterion in order inside worktreeDir, stopping at
// the first failure (spec 3.1: "run in worktree; non-zero fails").
// Returns nil if every criterion passed.
func (r *Runner) RunAll(stageID, worktreeDir string, criteria []string) error {
	for _, c := range criteria {
		if err := r.runOne(stageID, worktreeDir, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(stageID, worktreeDir, criterion string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCriterionTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := r.Cmd.RunShell(ctx, worktreeDir, criterion)
	if ctx.Err() == context.DeadlineExceeded {
		return &Failure{Stage: stageID, Criterion: criterion, TimedOut: true}
	}
	if err != nil {
		return &Failure{
			Stage:      stageID,
			Criterion:  criterion,
			ExitCode:   exitCodeOf(err),
			StderrHead: headOf(out, 512),
		}
	}
	return nil
}

// RunSetup runs a stage's setup commands, which spec 3.1 documents as
// idempotent pre-work; failures there are not acceptance failures,
// just plain errors surfaced to the caller.
func (r *Runner) RunSetup(stageID, worktreeDir string, setup []string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCriterionTimeout
	}
	for _, s := range setup {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		out, err := r.Cmd.RunShell(ctx, worktreeDir, s)
		cancel()
		if err != nil {
			return fmt.Errorf("stage %s setup %q: %w: %s", stageID, s, err, headOf(out, 512))
		}
	}
	return nil
}

func headOf(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

func exitCodeOf(err error) int {
	type exitCoder interface{ ExitCode() int }
	var ec exitCoder
	if e, ok := err.(exitCoder); ok {
		return e.ExitCode()
	}
	_ = ec
	return -1
}
