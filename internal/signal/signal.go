// Package signal produces the one-shot markdown briefing document
// consumed by a spawned worker (spec section 4.7 "Signal generator",
// section 3.4 "Signal"). Every field a worker may legitimately read
// is embedded directly in this single file; the worker is
// contractually forbidden from reading anything else.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/cosmix/skein/pkg/models"
)

// Input collects everything a signal needs to render. Callers (the
// orchestrator) assemble it from the stage record, the graph's
// dependency outputs, and any prior handoff.
type Input struct {
	SessionID    string
	StageID      string
	PlanID       string
	WorktreePath string
	Branch       string

	PlanOverview string

	Stage *models.Stage

	Dependencies []models.DependencyStatus

	// Handoff, when non-nil, is the previous session's structured
	// handoff for this stage, embedded verbatim (spec 4.7 bullet 7).
	Handoff *models.Handoff

	// ConflictFiles, when non-empty, marks this as a merge-conflict
	// signal (spec 4.4): the worker is briefed on exactly which files
	// collided instead of the normal assignment.
	ConflictFiles []string
}

// Render produces the full markdown document for Input. It never
// touches the filesystem; callers write the result via WriteAtomic.
func Render(in Input) string {
	var b strings.Builder

	writePreamble(&b, in)
	writeExecutionRules(&b)
	writeTargetBlock(&b, in)

	if in.PlanOverview != "" {
		fmt.Fprintf(&b, "## Plan overview\n\n%s\n\n", strings.TrimSpace(in.PlanOverview))
	}

	if len(in.ConflictFiles) > 0 {
		writeConflictAssignment(&b, in)
	} else {
		writeAssignment(&b, in)
	}

	writeDependencies(&b, in)

	if in.Handoff != nil {
		writeHandoff(&b, *in.Handoff)
	}

	if len(in.ConflictFiles) == 0 {
		writeAcceptance(&b, in)
	}

	return b.String()
}

func writePreamble(b *strings.Builder, in Input) {
	b.WriteString("# Worker signal\n\n")
	b.WriteString("## Isolation boundaries\n\n")
	b.WriteString("- You may read and write anything inside this worktree.\n")
	b.WriteString("- The `.work` symlink inside this worktree gives you read-only access to the shared workspace (stages, signals, handoffs) by convention; never write through it.\n")
	b.WriteString("- You may NOT read or write any path outside this worktree, including `../..` and any absolute path that resolves outside it. Other worktrees belong to other stages and may be mid-edit.\n\n")
}

func writeExecutionRules(b *strings.Builder) {
	b.WriteString("## Execution rules\n\n")
	b.WriteString("- Prefer parallel sub-agents for independent sub-tasks.\n")
	b.WriteString("- Stage files explicitly; never `git add -A`.\n")
	b.WriteString("- Only modify files the stage's allow-list covers (see below); anything else is a signal you have drifted off-assignment.\n\n")
}

func writeTargetBlock(b *strings.Builder, in Input) {
	b.WriteString("## Target\n\n")
	fmt.Fprintf(b, "- session: `%s`\n", in.SessionID)
	fmt.Fprintf(b, "- stage: `%s`\n", in.StageID)
	if in.PlanID != "" {
		fmt.Fprintf(b, "- plan: `%s`\n", in.PlanID)
	}
	fmt.Fprintf(b, "- worktree: `%s`\n", in.WorktreePath)
	fmt.Fprintf(b, "- branch: `%s`\n\n", in.Branch)
}

func writeAssignment(b *strings.Builder, in Input) {
	b.WriteString("## Assignment\n\n")
	if in.Stage == nil {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", in.Stage.Name)
	if in.Stage.Description != "" {
		fmt.Fprintf(b, "%s\n\n", in.Stage.Description)
	} else if len(in.Stage.Acceptance) > 0 {
		b.WriteString("No explicit description was given for this stage; your immediate tasks are derived from its acceptance criteria below — make each one pass.\n\n")
	}
	if len(in.Stage.Setup) > 0 {
		b.WriteString("### Setup\n\n")
		for _, s := range in.Stage.Setup {
			fmt.Fprintf(b, "- `%s`\n", s)
		}
		b.WriteString("\n")
	}
	if len(in.Stage.Files) > 0 {
		b.WriteString("### Allowed files\n\n")
		for _, f := range in.Stage.Files {
			fmt.Fprintf(b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}
}

func writeConflictAssignment(b *strings.Builder, in Input) {
	b.WriteString("## Assignment: resolve a merge conflict\n\n")
	fmt.Fprintf(b, "Stage `%s`'s branch `%s` did not merge cleanly into the merge point. ", in.StageID, in.Branch)
	b.WriteString("Resolve the conflicts below, commit the resolution on this branch, and leave the worktree clean. ")
	b.WriteString("Do not attempt to resolve conflicts outside the listed files without understanding why they also changed.\n\n")
	b.WriteString("### Conflicting files\n\n")
	for _, f := range in.ConflictFiles {
		fmt.Fprintf(b, "- `%s`\n", f)
	}
	b.WriteString("\n")
}

func writeDependencies(b *strings.Builder, in Input) {
	if len(in.Dependencies) == 0 {
		return
	}
	b.WriteString("## Dependencies\n\n")
	b.WriteString("| stage | status | outputs |\n|---|---|---|\n")
	for _, d := range in.Dependencies {
		fmt.Fprintf(b, "| %s (%s) | %s | %s |\n", d.StageID, d.Name, d.Status, formatOutputs(d.Outputs))
	}
	b.WriteString("\n")
}

func formatOutputs(outputs []models.StageOutput) string {
	if len(outputs) == 0 {
		return "_none_"
	}
	parts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		parts = append(parts, fmt.Sprintf("`%s`=%s", o.Key, formatValue(o)))
	}
	return strings.Join(parts, ", ")
}

// formatValue renders a stage output by its declared kind (spec 4.7
// bullet 6: "formatted by value type").
func formatValue(o models.StageOutput) string {
	switch o.Kind {
	case "string":
		return fmt.Sprintf("%q", o.Value)
	case "number", "bool":
		return o.Value
	case "null":
		return "null"
	case "json":
		return "```json\n" + o.Value + "\n```"
	default:
		return o.Value
	}
}

func writeHandoff(b *strings.Builder, h models.Handoff) {
	b.WriteString("## Previous session handoff\n\n")
	fmt.Fprintf(b, "_from session `%s`, sequence %d, at %s_\n\n", h.SessionID, h.Sequence, h.CreatedAt.Format(time.RFC3339))
	writeList(b, "Completed tasks", h.CompletedTasks)
	writeList(b, "Key decisions", h.KeyDecisions)
	writeList(b, "Discovered facts", h.DiscoveredFacts)
	writeList(b, "Open questions", h.OpenQuestions)
	writeList(b, "Next actions", h.NextActions)
	if h.GitState != "" {
		fmt.Fprintf(b, "### Git state\n\n```\n%s\n```\n\n", strings.TrimSpace(h.GitState))
	}
	writeList(b, "Files read", h.FilesRead)
	writeList(b, "Files modified", h.FilesModified)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func writeAcceptance(b *strings.Builder, in Input) {
	if in.Stage == nil || len(in.Stage.Acceptance) == 0 {
		return
	}
	b.WriteString("## Acceptance criteria\n\n")
	for _, c := range in.Stage.Acceptance {
		fmt.Fprintf(b, "- [ ] `%s`\n", c)
	}
	b.WriteString("\n")
}
