package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestReadPIDFileMissingReturnsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile: %v", err)
	}
	if pid != 0 {
		t.Errorf("expected 0 for a missing pid file, got %d", pid)
	}
}

func TestWriteThenReadPIDFileRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePIDFile(path); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestReadPIDFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Error("expected an error parsing a non-numeric pid file")
	}
}

func TestIsAliveForCurrentProcess(t *testing.T) {
	if !IsAlive(os.Getpid()) {
		t.Error("expected the current process to report alive")
	}
}

func TestIsAliveRejectsNonPositivePID(t *testing.T) {
	if IsAlive(0) || IsAlive(-1) {
		t.Error("expected non-positive pids to never report alive")
	}
}

func TestIsAliveFalseForUnlikelyPID(t *testing.T) {
	// PID 1 is always running (init/systemd) so pick something past any
	// realistic PID range instead of guessing a dead-but-plausible one.
	unlikely, _ := strconv.Atoi("999999")
	if IsAlive(unlikely) {
		t.Skip("unexpectedly found a live process at the probe pid; environment-dependent")
	}
}
