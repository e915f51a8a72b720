package daemon

import (
	"bytes"
	"io"
	"testing"

	"github.com/cosmix/skein/internal/orchestrator"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Kind: ReqStageComplete, StageID: "stage-a", Commit: "abc123"}
	if err := WriteMessage(&buf, req); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got Request
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got != req {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := []byte{0x7f, 0xff, 0xff, 0xff} // far beyond maxMessageSize
	buf.Write(header)

	var req Request
	if err := ReadMessage(&buf, &req); err == nil {
		t.Error("expected an error for an oversized length prefix")
	}
}

func TestWriteMessageRejectsOversizedBody(t *testing.T) {
	huge := make([]byte, maxMessageSize+1)
	req := Request{Kind: ReqDisputeCriteria, Reason: string(huge)}
	var buf bytes.Buffer
	if err := WriteMessage(&buf, req); err == nil {
		t.Error("expected an error for an oversized message body")
	}
}

func TestResponseCarriesStatusUpdate(t *testing.T) {
	var buf bytes.Buffer
	up := orchestrator.StatusUpdate{
		Executing: []orchestrator.StageSummary{{ID: "stage-a", Name: "build"}},
	}
	resp := Response{Kind: RespStatusUpdate, Status: &up}
	if err := WriteMessage(&buf, resp); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got Response
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Status == nil || len(got.Status.Executing) != 1 || got.Status.Executing[0].ID != "stage-a" {
		t.Errorf("status did not round-trip: %+v", got.Status)
	}
}

func TestReadMessageOnEmptyReaderReturnsEOF(t *testing.T) {
	var buf bytes.Buffer
	var req Request
	if err := ReadMessage(&buf, &req); err != io.EOF {
		t.Errorf("ReadMessage on an empty buffer = %v, want io.EOF", err)
	}
}
