package journal

import (
	"path/filepath"
	"testing"
)

func TestRecordAndHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	events := []Event{
		{StageID: "stage-a", ToStatus: "Queued"},
		{StageID: "stage-a", FromStatus: "Queued", ToStatus: "Executing", SessionID: "sess-1"},
		{StageID: "stage-b", ToStatus: "Queued"},
	}
	for _, e := range events {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	hist, err := j.History("stage-a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 events for stage-a, got %d", len(hist))
	}
	if hist[0].ToStatus != "Queued" || hist[1].ToStatus != "Executing" {
		t.Errorf("unexpected ordering: %+v", hist)
	}
	if hist[1].SessionID != "sess-1" {
		t.Errorf("expected session id to round-trip, got %q", hist[1].SessionID)
	}
}

func TestRecentOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := j.Record(Event{StageID: id, ToStatus: "Queued"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].StageID != "s3" || recent[1].StageID != "s2" {
		t.Errorf("expected newest-first ordering, got %+v", recent)
	}
}

func TestOpenIsIdempotentAcrossReopens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j1.Record(Event{StageID: "stage-a", ToStatus: "Queued"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	hist, err := j2.History("stage-a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected prior event to survive reopen, got %d", len(hist))
	}
}

func TestHistoryEmptyForUnknownStage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	hist, err := j.History("does-not-exist")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("expected no events, got %d", len(hist))
	}
}
