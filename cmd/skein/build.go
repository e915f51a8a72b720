package main

import (
	"fmt"
	"os"

	"github.com/cosmix/skein/internal/acceptance"
	"github.com/cosmix/skein/internal/config"
	skeinexec "github.com/cosmix/skein/internal/exec"
	"github.com/cosmix/skein/internal/git"
	"github.com/cosmix/skein/internal/graph"
	"github.com/cosmix/skein/internal/journal"
	"github.com/cosmix/skein/internal/mergeengine"
	"github.com/cosmix/skein/internal/obslog"
	"github.com/cosmix/skein/internal/orchestrator"
	"github.com/cosmix/skein/internal/stageio"
	"github.com/cosmix/skein/internal/terminal"
	"github.com/cosmix/skein/internal/workspace"
)

// repoRoot resolves the project root a verb should operate against:
// the current directory, unless overridden.
func repoRoot() (string, error) {
	return os.Getwd()
}

// buildOrchestrator wires every collaborator an Orchestrator needs from
// an already-initialized workspace, the way cmd/skein's daemon verbs
// and any future one-shot verb both need it built.
func buildOrchestrator(ws *workspace.Workspace, cfg *config.Config, logger *obslog.Logger) (*orchestrator.Orchestrator, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	stages, err := stageio.LoadAllStages(ws.StagesDir())
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	g := graph.New()
	g.SetDebugLog(logger.Debugf)
	if err := g.Build(stages); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	gitRun := git.NewRunner(ws.ProjectRoot())

	var backend terminal.Backend
	switch cfg.Backend.Kind {
	case "tmux":
		prefix := cfg.Backend.TmuxPrefix
		if prefix == "" {
			prefix = "skein"
		}
		workerCmd := "claude"
		if len(cfg.Backend.WorkerCmd) > 0 {
			workerCmd = cfg.Backend.WorkerCmd[0]
		}
		tmux := terminal.NewTmux(prefix, workerCmd)
		if cfg.Backend.TmuxDebounce > 0 {
			tmux.Debounce = cfg.Backend.TmuxDebounce
		}
		backend = tmux
	default:
		backend = terminal.NewNative(ws, cfg.Backend.WorkerCmd)
	}

	baseBranch := cfg.Scheduler.BaseBranch
	if baseBranch == "" {
		baseBranch, err = gitRun.DefaultBranch()
		if err != nil {
			return nil, fmt.Errorf("resolve default branch: %w", err)
		}
	}
	merger := mergeengine.New(gitRun, baseBranch)
	accept := acceptance.New(skeinexec.NewRunner())

	jrnl, err := journal.Open(ws.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	oc := cfg.ToOrchestratorConfig(ws.ProjectRoot())
	if oc.BaseBranch == "" {
		oc.BaseBranch = baseBranch
	}

	return orchestrator.New(oc, orchestrator.Deps{
		Workspace: ws,
		Git:       gitRun,
		Graph:     g,
		Backend:   backend,
		Merger:    merger,
		Accept:    accept,
		Journal:   jrnl,
		Logger:    logger,
	}), nil
}
