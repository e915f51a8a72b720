package models

import "testing"

func TestStageStatusValid(t *testing.T) {
	valid := []StageStatus{
		StageWaitingForDeps, StageQueued, StageExecuting, StageBlocked,
		StageNeedsHandoff, StageNeedsHumanReview, StageWaitingForInput,
		StageCompleted, StageCompletedWithFails, StageSkipped,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if StageStatus("bogus").Valid() {
		t.Error("expected bogus status to be invalid")
	}
}

func TestStageStatusTerminal(t *testing.T) {
	terminal := []StageStatus{StageCompleted, StageCompletedWithFails, StageSkipped, StageBlocked}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	nonTerminal := []StageStatus{StageWaitingForDeps, StageQueued, StageExecuting, StageNeedsHandoff, StageWaitingForInput, StageNeedsHumanReview}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestIsKnowledge(t *testing.T) {
	s := &Stage{StageType: StageTypeKnowledge}
	if !s.IsKnowledge() {
		t.Error("expected knowledge stage")
	}
	s2 := &Stage{StageType: StageTypeStandard}
	if s2.IsKnowledge() {
		t.Error("expected standard stage to not be knowledge")
	}
}
