package acceptance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cosmix/skein/pkg/models"
)

// GapType classifies a single goal-backward verification failure
// (spec section 2 "goal-backward verification").
type GapType string

const (
	GapArtifactMissing GapType = "artifact_missing"
	GapArtifactEmpty   GapType = "artifact_empty"
	GapArtifactStub    GapType = "artifact_stub"
	GapWiringBroken    GapType = "wiring_broken"
)

// VerificationGap is one thing a completed stage claims to have done
// but the worktree does not actually show: a missing/empty/stub
// artifact, or a wiring test whose command didn't satisfy its
// declared success criteria.
type VerificationGap struct {
	Type        GapType
	Description string
	Suggestion  string
}

func newGap(t GapType, description, suggestion string) VerificationGap {
	return VerificationGap{Type: t, Description: description, Suggestion: suggestion}
}

// stubPatterns flags a file as an unfinished placeholder rather than a
// real implementation.
var stubPatterns = []string{
	"TODO",
	"FIXME",
	"unimplemented!",
	"todo!",
	`panic!("not implemented`,
	"pass  # TODO",
	"raise NotImplementedError",
	`throw new Error("Not implemented`,
}

// VerifyArtifacts checks that every glob pattern matches at least one
// existing, non-empty, non-stub file under worktreeDir.
func VerifyArtifacts(artifacts []string, worktreeDir string) ([]VerificationGap, error) {
	var gaps []VerificationGap

	for _, pattern := range artifacts {
		full := filepath.Join(worktreeDir, pattern)
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			gaps = append(gaps, newGap(GapArtifactMissing,
				fmt.Sprintf("no files match artifact pattern: %s", pattern),
				fmt.Sprintf("create file(s) matching: %s", pattern)))
			continue
		}

		for _, path := range matches {
			ext := strings.ToLower(filepath.Ext(path))
			isMarkdown := ext == ".md" || ext == ".mdx" || ext == ".markdown"

			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			content := string(data)
			if strings.TrimSpace(content) == "" {
				gaps = append(gaps, newGap(GapArtifactEmpty,
					fmt.Sprintf("artifact is empty: %s", path),
					"add implementation to the file"))
				continue
			}
			if isMarkdown {
				continue
			}
			for _, stub := range stubPatterns {
				if strings.Contains(content, stub) {
					gaps = append(gaps, newGap(GapArtifactStub,
						fmt.Sprintf("artifact contains stub %q: %s", stub, path),
						fmt.Sprintf("replace %q with actual implementation", stub)))
					break
				}
			}
		}
	}
	return gaps, nil
}

// wiringTestTimeout bounds a single wiring test command (spec section 2).
const wiringTestTimeout = 30 * time.Second

// VerifyWiringTests runs each test's command inside worktreeDir and
// validates the result against its declared SuccessCriteria.
func (r *Runner) VerifyWiringTests(tests []models.WiringTest, worktreeDir string) ([]VerificationGap, error) {
	var gaps []VerificationGap

	for _, test := range tests {
		ctx, cancel := context.WithTimeout(context.Background(), wiringTestTimeout)
		stdout, stderr, exitCode, err := r.Cmd.RunSplit(ctx, worktreeDir, test.Command)
		timedOut := ctx.Err() == context.DeadlineExceeded
		cancel()

		if timedOut {
			gaps = append(gaps, newGap(GapWiringBroken,
				fmt.Sprintf("wiring test %q timed out after %s", test.Name, wiringTestTimeout),
				fmt.Sprintf("check command: %s", test.Command)))
			continue
		}

		wantExit := 0
		if test.SuccessCriteria.ExitCode != nil {
			wantExit = *test.SuccessCriteria.ExitCode
		}
		if exitCode != wantExit {
			gaps = append(gaps, newGap(GapWiringBroken,
				fmt.Sprintf("wiring test %q failed: exit code %d (expected %d)", test.Name, exitCode, wantExit),
				fmt.Sprintf("check command: %s", test.Command)))
			continue
		}
		_ = err // a non-nil err with a matching exit code is not itself a gap

		out, errOut := string(stdout), string(stderr)
		for _, pattern := range test.SuccessCriteria.StdoutContains {
			if !strings.Contains(out, pattern) {
				gaps = append(gaps, newGap(GapWiringBroken,
					fmt.Sprintf("wiring test %q failed: stdout missing %q", test.Name, pattern),
					fmt.Sprintf("expected stdout to contain %q, got: %s", pattern, truncate(out, 200))))
			}
		}
		for _, pattern := range test.SuccessCriteria.StdoutNotContains {
			if strings.Contains(out, pattern) {
				gaps = append(gaps, newGap(GapWiringBroken,
					fmt.Sprintf("wiring test %q failed: stdout contains forbidden pattern %q", test.Name, pattern),
					fmt.Sprintf("expected stdout to not contain %q, got: %s", pattern, truncate(out, 200))))
			}
		}
		for _, pattern := range test.SuccessCriteria.StderrContains {
			if !strings.Contains(errOut, pattern) {
				gaps = append(gaps, newGap(GapWiringBroken,
					fmt.Sprintf("wiring test %q failed: stderr missing %q", test.Name, pattern),
					fmt.Sprintf("expected stderr to contain %q, got: %s", pattern, truncate(errOut, 200))))
			}
		}
		if test.SuccessCriteria.StderrEmpty != nil && *test.SuccessCriteria.StderrEmpty && errOut != "" {
			gaps = append(gaps, newGap(GapWiringBroken,
				fmt.Sprintf("wiring test %q failed: stderr not empty", test.Name),
				fmt.Sprintf("expected empty stderr, got: %s", truncate(errOut, 200))))
		}
	}
	return gaps, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GapsFailure turns a non-empty set of verification gaps into the
// acceptance Failure shape, so callers can treat a goal-backward
// shortfall the same way as a failed acceptance criterion (spec
// section 2: verification gaps feed the same fix-attempt budget).
func GapsFailure(stageID string, gaps []VerificationGap) error {
	if len(gaps) == 0 {
		return nil
	}
	descs := make([]string, len(gaps))
	for i, g := range gaps {
		descs[i] = string(g.Type) + ": " + g.Description
	}
	return &Failure{
		Stage:      stageID,
		Criterion:  "goal-backward verification",
		StderrHead: strings.Join(descs, "; "),
	}
}
