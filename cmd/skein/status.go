package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cosmix/skein/internal/daemon"
	"github.com/cosmix/skein/internal/orchestrator"
	"github.com/cosmix/skein/internal/workspace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current graph state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	ws := workspace.New(root)

	client, err := daemon.Dial(ws.SocketPath())
	if err != nil {
		fmt.Println("No daemon running. Run 'skein daemon start' to begin.")
		return nil
	}
	defer client.Close()

	resp, err := client.Call(daemon.Request{Kind: daemon.ReqStatus})
	if err != nil {
		return fmt.Errorf("request status: %w", err)
	}
	if resp.Status == nil {
		fmt.Println("No status available yet.")
		return nil
	}
	printStatusUpdate(*resp.Status)
	return nil
}

func printStatusUpdate(up orchestrator.StatusUpdate) {
	printGroup("Executing", up.Executing, color.FgCyan)
	printGroup("Pending", up.Pending, color.FgWhite)
	printGroup("Blocked", up.Blocked, color.FgRed)
	printGroup("Completed", up.Completed, color.FgGreen)
}

func printGroup(label string, stages []orchestrator.StageSummary, colorAttr color.Attribute) {
	if len(stages) == 0 {
		return
	}
	c := color.New(colorAttr)
	fmt.Println(c.Sprintf("%s (%d):", label, len(stages)))
	for _, s := range stages {
		merged := ""
		if s.Merged {
			merged = " [merged]"
		}
		fmt.Printf("  %s  %s%s\n", s.ID, s.Name, merged)
	}
}
