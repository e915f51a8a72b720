package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// checkGitCLI verifies that git is on PATH, the one external
// prerequisite every verb below eventually shells out to.
func checkGitCLI() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH; skein drives a git worktree per stage and cannot run without it")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "skein",
	Short: "Stage dependency graph scheduler",
	Long: `skein schedules a DAG of stages across isolated git worktrees.

Core capabilities:
- Tracks a dependency graph of stages in .work/stages/
- Dispatches ready stages into per-stage git worktrees
- Runs acceptance criteria and progressively merges completed work
- Answers status and control requests over a local daemon socket

Available commands:
  init       Initialize a workspace in a project
  daemon     Start, stop, or run the scheduler daemon
  stage      Drive a stage's lifecycle (complete, block, retry, ...)
  status     Show the current graph state

Use "skein [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version()
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(statusCmd)
}
