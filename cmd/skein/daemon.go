package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cosmix/skein/internal/config"
	"github.com/cosmix/skein/internal/daemon"
	"github.com/cosmix/skein/internal/obslog"
	"github.com/cosmix/skein/internal/workspace"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start, stop, or run the scheduler daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Detach and start the daemon in the background",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE:  runDaemonStop,
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground",
	Hidden: true, // internal re-exec target of `daemon start`; also usable directly
	RunE:   runDaemonRun,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRunCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	ws := workspace.New(root)
	if err := ws.Validate(); err != nil {
		return err
	}

	if pid, _ := daemon.ReadPIDFile(ws.PidFilePath()); pid > 0 && daemon.IsAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	pid, err := daemon.Detach(root)
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Printf("daemon started (pid %d)\n", pid)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	ws := workspace.New(root)

	client, err := daemon.Dial(ws.SocketPath())
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer client.Close()

	if _, err := client.Call(daemon.Request{Kind: daemon.ReqStop}); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	fmt.Println("daemon stopping")
	return nil
}

func runDaemonRun(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	ws := workspace.New(root)
	if err := ws.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load(ws.Root())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, logf, err := obslog.NewFile(ws.DaemonLogPath())
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logf.Close()

	orch, err := buildOrchestrator(ws, cfg, logFile)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	srv := daemon.New(ws, orch, logFile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = srv.Start(ctx)
	srv.Cleanup()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
