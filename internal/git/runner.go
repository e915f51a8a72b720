// Package git adapts stage worktrees, branches-per-stage, and the
// progressive merge onto plain `git` subprocess calls (spec section 2
// "Git adapter").
package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ExecRunner implements Runner against the repository a daemon was
// started in, shelling out to the system `git` for every stage
// worktree, branch, and merge it manages.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a git runner rooted at repoPath, the repository
// whose worktrees this daemon instance will create and merge.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// run executes a git command rooted at repoPath and returns its
// trimmed output, or an error wrapping the command and its combined
// output for the caller's log line.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// runSilent executes a git command whose output the caller doesn't
// need, surfacing only a wrapped error on failure.
func (r *ExecRunner) runSilent(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return nil
}

// Run executes an arbitrary git command, for the handful of adapter
// call sites that need a subcommand this interface doesn't name
// directly.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// CurrentBranch returns the branch checked out in repoPath (the main
// checkout, not a stage worktree, which stays on its own branch for
// its whole lifetime).
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates a stage's branch without checking it out,
// ahead of `git worktree add` binding it to that stage's checkout.
func (r *ExecRunner) CreateBranch(name string) error {
	return r.runSilent("branch", name)
}

// CreateAndCheckoutBranch creates and switches to a branch in the
// current checkout (git checkout -b), used outside the worktree path
// (e.g. the conflict-resolution flow operating directly on a stage's
// existing worktree).
func (r *ExecRunner) CreateAndCheckoutBranch(name string) error {
	return r.runSilent("checkout", "-b", name)
}

// CheckoutBranch switches the runner's checkout to name. Dispatch uses
// it to put a stage's resolved base at HEAD of the main checkout before
// cutting the stage's worktree (spec 4.5 step 4), and the merge engine
// uses it to check out the merge point.
func (r *ExecRunner) CheckoutBranch(name string) error {
	return r.runSilent("checkout", name)
}

// BranchExists reports whether a stage's branch (or a default-branch
// candidate) already exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means branch doesn't exist (not an error)
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch force-deletes a stage's branch once its worktree has
// been removed and the merge (or abandonment) is final.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// Status returns git status --porcelain for the current checkout,
// the basis for HasChanges, HasTrackedChanges, and HasConflicts.
func (r *ExecRunner) Status() (string, error) {
	return r.run("status", "--porcelain")
}

// HasChanges reports whether a stage's worktree has any uncommitted
// changes, tracked or untracked.
func (r *ExecRunner) HasChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// HasTrackedChanges returns true if any status line is not an
// untracked-file marker ("??").
func (r *ExecRunner) HasTrackedChanges() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(status, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			continue
		}
		return true, nil
	}
	return false, nil
}

// Diff returns a stage worktree's uncommitted diff against its
// resolved base.
func (r *ExecRunner) Diff(base string) (string, error) {
	return r.run("diff", base)
}

// ChangedFiles lists the files a stage's branch has touched relative
// to its resolved base, used to size a merge before attempting it.
func (r *ExecRunner) ChangedFiles(base string) ([]string, error) {
	out, err := r.run("diff", "--name-only", base)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Add stages the given paths inside a stage worktree ahead of a merge
// commit (used by the conflict-resolution flow, not the normal
// auto-merge path, which commits on the agent's own branch).
func (r *ExecRunner) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	return r.runSilent(args...)
}

// Commit records a commit inside a stage worktree, e.g. to close out
// a resolved conflict.
func (r *ExecRunner) Commit(message string) error {
	return r.runSilent("commit", "-m", message)
}

// Reset resets the staging area to ref, used when a conflict
// resolution needs to start over.
func (r *ExecRunner) Reset(ref string) error {
	return r.runSilent("reset", ref)
}

// CheckoutPath discards a conflicted worktree's changes to a single
// path.
func (r *ExecRunner) CheckoutPath(path string) error {
	return r.runSilent("checkout", path)
}

// Merge runs a plain `git merge` of a stage's branch into the current
// branch, which fast-forwards when it can and otherwise creates a merge
// commit; the progressive merge uses it for every case (spec 4.4).
func (r *ExecRunner) Merge(branch string) error {
	return r.runSilent("merge", branch)
}

// MergeAbort aborts a merge attempt that mergeengine decided not to
// pursue, restoring the pre-merge state.
func (r *ExecRunner) MergeAbort() error {
	return r.runSilent("merge", "--abort")
}

// HasConflicts reports whether a merge attempt left unmerged paths
// behind, the signal mergeengine uses to escalate to a conflict
// session instead of finalizing (spec 4.4).
func (r *ExecRunner) HasConflicts() (bool, error) {
	status, err := r.Status()
	if err != nil {
		return false, err
	}
	// Check for conflict markers (UU, AA, DD, etc.)
	for _, line := range strings.Split(status, "\n") {
		if len(line) >= 2 {
			prefix := line[:2]
			if prefix == "UU" || prefix == "AA" || prefix == "DD" ||
				prefix == "AU" || prefix == "UA" || prefix == "DU" || prefix == "UD" {
				return true, nil
			}
		}
	}
	return false, nil
}

// WorktreeAdd creates a worktree at path checked out to an existing
// branch (used when adopting a stage's branch rather than cutting a
// new one, e.g. resuming after a restart).
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent("worktree", "add", path, branch)
}

// WorktreeAddNewBranch creates a stage's worktree and its branch
// together (spec 4.5 step 4: every dispatched stage gets its own
// worktree and branch in one call).
func (r *ExecRunner) WorktreeAddNewBranch(path, branch string) error {
	return r.runSilent("worktree", "add", path, "-b", branch)
}

// WorktreeRemove force-removes a stage's worktree once it has been
// merged or abandoned.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent("worktree", "remove", "--force", path)
}

// WorktreeRemoveOptionalForce removes a stage's worktree, forcing past
// uncommitted changes only when asked (both the startup orphan sweep
// in reconcile.go and mergeengine.Finalize force).
func (r *ExecRunner) WorktreeRemoveOptionalForce(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, path)
	return r.runSilent(args...)
}

// WorktreeUnlock unlocks a stage worktree git marked locked, clearing
// the way for WorktreeRemove.
func (r *ExecRunner) WorktreeUnlock(path string) error {
	return r.runSilent("worktree", "unlock", path)
}

// WorktreeList returns every worktree path git currently tracks,
// which reconcile.go cross-references against non-terminal stages at
// startup.
func (r *ExecRunner) WorktreeList() ([]string, error) {
	out, err := r.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			paths = append(paths, strings.TrimPrefix(line, "worktree "))
		}
	}
	return paths, nil
}

// WorktreeListPorcelain returns the raw `git worktree list --porcelain`
// output for callers that need more than bare paths (e.g. matching a
// worktree back to its branch).
func (r *ExecRunner) WorktreeListPorcelain() (string, error) {
	return r.run("worktree", "list", "--porcelain")
}

// WorktreePrune drops git's metadata for worktrees already removed
// from disk, run after the startup orphan sweep deletes any it finds.
func (r *ExecRunner) WorktreePrune() error {
	return r.runSilent("worktree", "prune")
}

// WorktreePruneExpireNow is WorktreePrune without git's default grace
// period, for the case where a worktree must be gone immediately.
func (r *ExecRunner) WorktreePruneExpireNow() error {
	return r.runSilent("worktree", "prune", "--expire", "now")
}

// ShowFile reads a file's contents as of a given ref, used by the
// conflict-resolution signal to show a session both sides of a
// conflicted path.
func (r *ExecRunner) ShowFile(ref, path string) (string, error) {
	return r.run("show", ref+":"+path)
}

// DiffBetween returns the diff between two refs, e.g. a stage's branch
// tip against its resolved base.
func (r *ExecRunner) DiffBetween(ref1, ref2 string) (string, error) {
	return r.run("diff", ref1, ref2)
}

// ChangedFilesBetween lists files changed between two refs.
func (r *ExecRunner) ChangedFilesBetween(ref1, ref2 string) ([]string, error) {
	out, err := r.run("diff", "--name-only", ref1, ref2)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ChangedFilesRelative lists files a stage's branch changed relative
// to another branch, using the triple-dot diff so unrelated commits
// on relativeTo don't show up as changes.
func (r *ExecRunner) ChangedFilesRelative(branch, relativeTo string) ([]string, error) {
	out, err := r.run("diff", "--name-only", relativeTo+"..."+branch)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ConflictedFiles lists paths left unmerged by a failed merge attempt,
// the detail mergeengine attaches to its conflict outcome (spec 4.4).
func (r *ExecRunner) ConflictedFiles() ([]string, error) {
	out, err := r.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		// If there are no conflicts, git may exit with code 0 but empty output
		return nil, nil
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DiffStat returns the file/insertion/deletion counts between two refs.
func (r *ExecRunner) DiffStat(ref1, ref2 string) (int, int, int, error) {
	out, err := r.run("diff", "--shortstat", ref1, ref2)
	if err != nil {
		return 0, 0, 0, err
	}
	return parseShortstat(out), parseShortstatField(out, "insertion"), parseShortstatField(out, "deletion"), nil
}

// parseShortstat extracts the "N files changed" count from a
// `git diff --shortstat` line.
func parseShortstat(line string) int {
	return parseShortstatField(line, "file")
}

// parseShortstatField extracts the integer preceding the given word
// (e.g. "file", "insertion", "deletion") from a shortstat summary
// line such as "2 files changed, 10 insertions(+), 3 deletions(-)".
func parseShortstatField(line, word string) int {
	parts := strings.Split(line, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, word) {
			fields := strings.Fields(part)
			if len(fields) > 0 {
				n, err := strconv.Atoi(fields[0])
				if err == nil {
					return n
				}
			}
		}
	}
	return 0
}

// MergeNoFF merges a stage's branch with --no-ff, leaving a merge
// commit even when a fast-forward was possible. The progressive merge
// in mergeengine does not call it; it uses Merge, which may
// fast-forward.
func (r *ExecRunner) MergeNoFF(branch string) error {
	return r.runSilent("merge", branch, "--no-ff")
}

// MergeNoFFMessage is MergeNoFF with a message naming the stage being
// merged, used when the caller wants the commit to record which stage
// it closes out.
func (r *ExecRunner) MergeNoFFMessage(branch, message string) error {
	return r.runSilent("merge", "--no-ff", "-m", message, branch)
}

// MergeBase returns the common ancestor of two branches, used to
// detect whether a stage's branch has drifted from its resolved base
// since dispatch.
func (r *ExecRunner) MergeBase(branch1, branch2 string) (string, error) {
	return r.run("merge-base", branch1, branch2)
}

// Rebase rebases the current branch onto base.
func (r *ExecRunner) Rebase(base string) error {
	return r.runSilent("rebase", base)
}

// RebaseAbort aborts an in-progress rebase.
func (r *ExecRunner) RebaseAbort() error {
	return r.runSilent("rebase", "--abort")
}

// PullFFOnly fast-forwards the main checkout from its remote before a
// run starts. A repo with no remote, or one that can't fast-forward,
// is left untouched rather than treated as an error.
func (r *ExecRunner) PullFFOnly() error {
	_ = r.runSilent("pull", "--ff-only")
	return nil
}

// CheckoutOurs resolves a conflicted path to the receiving branch's
// side, for the conflict-resolution session's manual fixups.
func (r *ExecRunner) CheckoutOurs(path string) error {
	return r.runSilent("checkout", "--ours", path)
}

// CheckoutTheirs resolves a conflicted path to the incoming stage
// branch's side.
func (r *ExecRunner) CheckoutTheirs(path string) error {
	return r.runSilent("checkout", "--theirs", path)
}

// DefaultBranch detects the repository's default branch: origin/HEAD
// first, then `main`, then `master` (spec section 6).
func (r *ExecRunner) DefaultBranch() (string, error) {
	if out, err := r.run("symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		if name := strings.TrimPrefix(out, "refs/remotes/origin/"); name != out {
			return name, nil
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if exists, _ := r.BranchExists(candidate); exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not detect default branch: no origin/HEAD, main, or master")
}

// IsAncestor reports whether ancestor is an ancestor of descendant.
func (r *ExecRunner) IsAncestor(ancestor, descendant string) (bool, error) {
	cmd := exec.Command("git", "merge-base", "--is-ancestor", ancestor, descendant)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("check ancestry: %w", err)
}

// MergedInto returns true if branch is reachable from target.
func (r *ExecRunner) MergedInto(branch, target string) (bool, error) {
	out, err := r.run("branch", "--merged", target, "--list", branch)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "*")) != "", nil
}

// RevParse resolves ref to a commit SHA.
func (r *ExecRunner) RevParse(ref string) (string, error) {
	return r.run("rev-parse", ref)
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
