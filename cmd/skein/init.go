package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cosmix/skein/internal/config"
	"github.com/cosmix/skein/internal/workspace"
)

var (
	initForce bool
	initNoGit bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a workspace in a project",
	Long: `Initialize a directory for use with skein.

This command sets up everything needed to run the daemon:
  - Verifies git is available
  - Initializes a git repository if one doesn't already exist
  - Creates the .work directory structure
  - Writes a default config.toml

The directory argument is optional and defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initNoGit, "no-git", false, "skip git initialization")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing skein in %s...\n\n", absPath)

	if err := checkGitCLI(); err != nil {
		printStatus("✗", "git not found", color.FgRed)
		return err
	}
	printStatus("✓", "git found", color.FgGreen)

	if !initNoGit {
		if err := initGitRepo(absPath); err != nil {
			return err
		}
	} else {
		fmt.Println("Skipping git initialization (--no-git flag)")
	}

	ws := workspace.New(absPath)
	if _, err := os.Stat(ws.Root()); err == nil && !initForce {
		printStatus("⚠", ".work already exists, leaving it untouched (use --force to reinitialize)", color.FgYellow)
	} else {
		if err == nil {
			if err := os.RemoveAll(ws.Root()); err != nil {
				return fmt.Errorf("removing existing workspace: %w", err)
			}
		}
		if err := ws.Initialize(); err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}
		printStatus("✓", "Created .work directory structure", color.FgGreen)

		if err := config.Save(ws.Root(), config.Default()); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		printStatus("✓", "Wrote .work/config.toml", color.FgGreen)
	}

	fmt.Printf("\n%s skein initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Drop stage files into .work/stages/")
	fmt.Println("  2. Run: skein daemon start")
	fmt.Println("  3. Check progress: skein status")
	return nil
}

// initGitRepo mirrors the teacher's init sequence, trimmed to what
// this domain needs: a repo with at least one commit and a resolvable
// default branch, since every stage dispatch creates a worktree from
// one.
func initGitRepo(repoPath string) error {
	gitDir := filepath.Join(repoPath, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		cmd := exec.Command("git", "init")
		cmd.Dir = repoPath
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("git init failed: %w: %s", err, out)
		}
		printStatus("✓", "Initialized git repository", color.FgGreen)
	} else {
		printStatus("✓", "Git repository exists", color.FgGreen)
	}

	hasCommits, err := hasAnyCommits(repoPath)
	if err != nil {
		return fmt.Errorf("checking for commits: %w", err)
	}
	if !hasCommits {
		if err := ensureInitialCommit(repoPath); err != nil {
			return fmt.Errorf("creating initial commit: %w", err)
		}
		printStatus("✓", "Created initial commit", color.FgGreen)
	} else {
		printStatus("✓", "Git repository has commits", color.FgGreen)
	}
	return nil
}

func hasAnyCommits(repoPath string) (bool, error) {
	cmd := exec.Command("git", "rev-list", "-n", "1", "--all")
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
			return false, nil
		}
		return false, fmt.Errorf("git rev-list: %w: %s", err, out)
	}
	return len(out) > 0, nil
}

func ensureInitialCommit(repoPath string) error {
	readme := filepath.Join(repoPath, "README.md")
	if _, err := os.Stat(readme); os.IsNotExist(err) {
		if err := os.WriteFile(readme, []byte("# "+filepath.Base(repoPath)+"\n"), 0644); err != nil {
			return fmt.Errorf("write README: %w", err)
		}
	}
	for _, args := range [][]string{
		{"add", "README.md"},
		{"commit", "-m", "initial commit"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("git %v: %w: %s", args, err, out)
		}
	}
	return nil
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
