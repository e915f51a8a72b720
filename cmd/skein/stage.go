package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmix/skein/internal/daemon"
	"github.com/cosmix/skein/internal/workspace"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Drive a stage's lifecycle",
}

var stageReason string
var stageCommit string

func init() {
	complete := &cobra.Command{
		Use:   "complete <stage-id>",
		Short: "Mark a stage complete and run its acceptance criteria",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageComplete),
	}
	complete.Flags().StringVar(&stageCommit, "commit", "", "commit sha the stage completed at")

	block := &cobra.Command{
		Use:   "block <stage-id>",
		Short: "Force a stage to Blocked",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageBlock),
	}
	block.Flags().StringVar(&stageReason, "reason", "", "why the stage is blocked")

	reset := &cobra.Command{
		Use:   "reset <stage-id>",
		Short: "Requeue a Blocked stage, clearing its retry counter",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageReset),
	}

	retry := &cobra.Command{
		Use:   "retry <stage-id>",
		Short: "Requeue a stage, preserving its retry counter",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageRetry),
	}

	mergeComplete := &cobra.Command{
		Use:   "merge-complete <stage-id>",
		Short: "Re-attempt a merge after a conflict was resolved",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqMergeComplete),
	}

	hold := &cobra.Command{
		Use:   "hold <stage-id>",
		Short: "Hold a stage so it is never dispatched even when ready",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageHold),
	}

	release := &cobra.Command{
		Use:   "release <stage-id>",
		Short: "Release a held stage",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageRelease),
	}

	dispute := &cobra.Command{
		Use:   "dispute-criteria <stage-id>",
		Short: "Escalate a stage to human review over disputed acceptance criteria",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqDisputeCriteria),
	}
	dispute.Flags().StringVar(&stageReason, "reason", "", "why the criteria are disputed")

	verify := &cobra.Command{
		Use:   "verify <stage-id>",
		Short: "Re-run acceptance criteria without redispatching",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqStageVerify),
	}

	resume := &cobra.Command{
		Use:   "resume <stage-id>",
		Short: "Requeue a NeedsHandoff stage so a fresh session picks it up",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqResume),
	}

	approve := &cobra.Command{
		Use:   "approve <stage-id>",
		Short: "Resolve a NeedsHumanReview stage back into Executing",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqApproveReview),
	}

	reject := &cobra.Command{
		Use:   "reject <stage-id>",
		Short: "Resolve a NeedsHumanReview stage to Blocked",
		Args:  cobra.ExactArgs(1),
		RunE:  stageVerb(daemon.ReqRejectReview),
	}
	reject.Flags().StringVar(&stageReason, "reason", "", "why the stage was rejected")

	forceComplete := &cobra.Command{
		Use:   "force-complete <stage-id>",
		Short: "Bypass the FSM and mark a wedged stage Completed",
		Long: `Unsafe recovery escape hatch: marks a stage Completed without
running acceptance or the normal transition guards. Pass
--assume-merged to record that the work actually landed at the merge
point (it defaults to false); dependents are only promoted when it is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runForceComplete,
	}
	forceComplete.Flags().StringVar(&stageCommit, "commit", "", "commit sha to record")
	forceComplete.Flags().BoolVar(&forceAssumeMerged, "assume-merged", false, "treat the stage's work as already merged")

	stageCmd.AddCommand(complete, block, reset, retry, mergeComplete, hold, release, dispute, verify, resume, approve, reject, forceComplete)
}

var forceAssumeMerged bool

func runForceComplete(cmd *cobra.Command, args []string) error {
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

	resp, err := client.Call(daemon.Request{
		Kind:         daemon.ReqForceComplete,
		StageID:      args[0],
		Commit:       stageCommit,
		AssumeMerged: forceAssumeMerged,
	})
	if err != nil {
		return err
	}
	if resp.Kind == daemon.RespError {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Printf("%s: force-completed (assume_merged=%t)\n", args[0], forceAssumeMerged)
	return nil
}

// stageVerb returns a RunE closure that dials the daemon and sends a
// single stage-scoped request, the same one-request-one-response shape
// for every stage verb (spec section 4.6/6 RPC surface).
func stageVerb(kind daemon.RequestKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		resp, err := client.Call(daemon.Request{
			Kind:    kind,
			StageID: args[0],
			Commit:  stageCommit,
			Reason:  stageReason,
		})
		if err != nil {
			return err
		}
		if resp.Kind == daemon.RespError {
			return fmt.Errorf("%s", resp.Message)
		}
		fmt.Printf("%s: ok\n", args[0])
		return nil
	}
}
