package signal

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic renders in and writes it to path via a temp-file-then-
// rename, so a worker spawned concurrently with the write never sees
// a truncated signal. Signals are never written again after creation
// (spec section 5 "signal files are read by workers and never written
// after creation"), so callers must not call this twice for the same
// session id.
func WriteAtomic(path string, in Input) error {
	content := Render(in)
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-signal-*")
	if err != nil {
		return fmt.Errorf("create temp signal file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp signal file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp signal file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename signal into place: %w", err)
	}
	return nil
}
