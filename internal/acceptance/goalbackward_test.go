package acceptance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cosmix/skein/pkg/models"
)

func TestVerifyArtifactsMissing(t *testing.T) {
	dir := t.TempDir()
	gaps, err := VerifyArtifacts([]string{"src/*.go"}, dir)
	if err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapArtifactMissing {
		t.Fatalf("expected one missing-artifact gap, got %+v", gaps)
	}
}

func TestVerifyArtifactsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.go"), []byte("   \n"), 0644); err != nil {
		t.Fatal(err)
	}
	gaps, err := VerifyArtifacts([]string{"file.go"}, dir)
	if err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapArtifactEmpty {
		t.Fatalf("expected one empty-artifact gap, got %+v", gaps)
	}
}

func TestVerifyArtifactsStub(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.go"), []byte("func f() { panic(\"TODO\") }"), 0644); err != nil {
		t.Fatal(err)
	}
	gaps, err := VerifyArtifacts([]string{"file.go"}, dir)
	if err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapArtifactStub {
		t.Fatalf("expected one stub gap, got %+v", gaps)
	}
}

func TestVerifyArtifactsSkipsStubCheckForMarkdown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# TODO list\nTODO: write more"), 0644); err != nil {
		t.Fatal(err)
	}
	gaps, err := VerifyArtifacts([]string{"notes.md"}, dir)
	if err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps for a markdown file, got %+v", gaps)
	}
}

func TestVerifyArtifactsPassesRealImplementation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "file.go"), []byte("package main\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gaps, err := VerifyArtifacts([]string{"file.go"}, dir)
	if err != nil {
		t.Fatalf("VerifyArtifacts: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", gaps)
	}
}

// fakeCommandRunner lets wiring-test checks be exercised without
// shelling out.
type fakeCommandRunner struct {
	stdout, stderr string
	exitCode       int
}

func (f *fakeCommandRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return []byte(f.stdout), nil
}

func (f *fakeCommandRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	return []byte(f.stdout), nil
}

func (f *fakeCommandRunner) Exists(ctx context.Context, workDir, path string) bool { return true }

func (f *fakeCommandRunner) RunSplit(ctx context.Context, workDir, command string) ([]byte, []byte, int, error) {
	return []byte(f.stdout), []byte(f.stderr), f.exitCode, nil
}

func TestVerifyWiringTestsSuccess(t *testing.T) {
	r := New(&fakeCommandRunner{stdout: "hello world"})
	zero := 0
	tests := []models.WiringTest{{
		Name:    "echo test",
		Command: "echo hello world",
		SuccessCriteria: models.SuccessCriteria{
			ExitCode:       &zero,
			StdoutContains: []string{"hello"},
		},
	}}
	gaps, err := r.VerifyWiringTests(tests, t.TempDir())
	if err != nil {
		t.Fatalf("VerifyWiringTests: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", gaps)
	}
}

func TestVerifyWiringTestsExitCodeMismatch(t *testing.T) {
	r := New(&fakeCommandRunner{exitCode: 1})
	zero := 0
	tests := []models.WiringTest{{
		Name:            "failing test",
		Command:         "false",
		SuccessCriteria: models.SuccessCriteria{ExitCode: &zero},
	}}
	gaps, err := r.VerifyWiringTests(tests, t.TempDir())
	if err != nil {
		t.Fatalf("VerifyWiringTests: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapWiringBroken {
		t.Fatalf("expected one wiring-broken gap, got %+v", gaps)
	}
}

func TestVerifyWiringTestsStdoutNotContainsFailure(t *testing.T) {
	r := New(&fakeCommandRunner{stdout: "an error occurred"})
	tests := []models.WiringTest{{
		Name:    "forbidden pattern",
		Command: "echo error",
		SuccessCriteria: models.SuccessCriteria{
			StdoutNotContains: []string{"error"},
		},
	}}
	gaps, err := r.VerifyWiringTests(tests, t.TempDir())
	if err != nil {
		t.Fatalf("VerifyWiringTests: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapWiringBroken {
		t.Fatalf("expected one wiring-broken gap, got %+v", gaps)
	}
}

func TestVerifyWiringTestsStderrEmptyFailure(t *testing.T) {
	r := New(&fakeCommandRunner{stderr: "warning: deprecated"})
	stderrEmpty := true
	tests := []models.WiringTest{{
		Name:            "stderr check",
		Command:         "sh -c 'echo warning >&2'",
		SuccessCriteria: models.SuccessCriteria{StderrEmpty: &stderrEmpty},
	}}
	gaps, err := r.VerifyWiringTests(tests, t.TempDir())
	if err != nil {
		t.Fatalf("VerifyWiringTests: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Type != GapWiringBroken {
		t.Fatalf("expected one wiring-broken gap, got %+v", gaps)
	}
}

func TestGapsFailureNilForNoGaps(t *testing.T) {
	if err := GapsFailure("stage-a", nil); err != nil {
		t.Errorf("expected nil for no gaps, got %v", err)
	}
}

func TestGapsFailureWrapsGaps(t *testing.T) {
	gaps := []VerificationGap{{Type: GapArtifactMissing, Description: "no files match pattern src/*.go"}}
	err := GapsFailure("stage-a", gaps)
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
	failure, ok := err.(*Failure)
	if !ok {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Stage != "stage-a" {
		t.Errorf("expected stage id to propagate, got %q", failure.Stage)
	}
}
