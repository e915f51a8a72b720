// Package baseresolver implements the deterministic policy that picks
// the branch a stage's worktree must be created from (spec section
// 4.3). Progressive merge means a stage is never built on a temporary
// merge branch: once its dependencies have landed on the merge point,
// main already contains them.
package baseresolver

import (
	"fmt"

	"github.com/cosmix/skein/pkg/models"
)

// DependencyNotReady is returned when a stage's dependency has not
// yet completed and merged, mirroring spec section 7's
// `DependencyNotReady { stage, dep, dep_status, dep_merged }`.
type DependencyNotReady struct {
	Stage     string
	Dep       string
	DepStatus models.StageStatus
	DepMerged bool
}

func (e *DependencyNotReady) Error() string {
	return fmt.Sprintf("stage %s: dependency %s not ready (status=%s merged=%t)",
		e.Stage, e.Dep, e.DepStatus, e.DepMerged)
}

// Outcome names the branch a new worktree should be created from. The
// engine never fabricates a temporary merge branch (spec 4.3
// rationale), so there is exactly one successful variant: Main.
type Outcome struct {
	Branch string
}

// DependencyLookup resolves a dependency id to its current status and
// merged flag; the graph satisfies this during scheduling.
type DependencyLookup interface {
	Get(stageID string) *models.Stage
}

// Resolve implements spec 4.3's three-step policy:
//  1. No dependencies -> Main(configuredBase).
//  2. Any dependency not Completed+merged -> DependencyNotReady.
//  3. Otherwise -> Main(configuredBase).
//
// configuredBase is the plan- or flag-supplied base branch; callers
// pass the repository's detected default branch when none was
// configured.
func Resolve(stageID string, deps []string, lookup DependencyLookup, configuredBase string) (Outcome, error) {
	for _, dep := range deps {
		depStage := lookup.Get(dep)
		if depStage == nil {
			return Outcome{}, &DependencyNotReady{Stage: stageID, Dep: dep}
		}
		ready := depStage.Status == models.StageCompleted || depStage.Status == models.StageCompletedWithFails
		if !ready || !depStage.Merged {
			return Outcome{}, &DependencyNotReady{
				Stage:     stageID,
				Dep:       dep,
				DepStatus: depStage.Status,
				DepMerged: depStage.Merged,
			}
		}
	}
	return Outcome{Branch: configuredBase}, nil
}
