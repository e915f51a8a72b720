// Package stageio reads and writes the markdown-plus-YAML-frontmatter
// files that persist stages and sessions under `.work/` (spec section
// 4.2 "Persistence", section 6 "Stage file frontmatter"). Writes are
// atomic (write-temp-then-rename), so readers never see a half-written
// file, and writes to one path are serialized by an in-process mutex;
// no file lock is taken across processes.
package stageio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cosmix/skein/pkg/models"
)

const frontmatterDelim = "---"

// fileLocks guards concurrent writers to the same path within this
// process. Cross-process safety is provided by the rename being
// atomic on the same filesystem; this mutex only protects against two
// goroutines racing on one file (the scheduler is single-writer per
// spec section 5, but RPC handlers may read concurrently).
var fileLocks sync.Map // map[string]*sync.Mutex

func lockFor(path string) *sync.Mutex {
	v, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// splitFrontmatter separates a `---\nYAML\n---\nBODY` document into
// its two parts. If the document has no frontmatter delimiters, the
// whole content is treated as body with empty frontmatter.
func splitFrontmatter(content []byte) (front, body []byte, ok bool) {
	s := string(content)
	if !bytes.HasPrefix(content, []byte(frontmatterDelim)) {
		return nil, content, false
	}
	rest := s[len(frontmatterDelim):]
	rest = trimLeadingNewline(rest)
	idx := indexDelimLine(rest)
	if idx < 0 {
		return nil, content, false
	}
	front = []byte(rest[:idx])
	remainder := rest[idx+len(frontmatterDelim):]
	remainder = trimLeadingNewline(remainder)
	body = []byte(remainder)
	return front, body, true
}

func trimLeadingNewline(s string) string {
	if len(s) > 0 && s[0] == '\n' {
		return s[1:]
	}
	if len(s) > 1 && s[0] == '\r' && s[1] == '\n' {
		return s[2:]
	}
	return s
}

// indexDelimLine finds the byte offset of a line that is exactly
// "---" in s, returning -1 if none is found.
func indexDelimLine(s string) int {
	offset := 0
	for {
		nl := bytes.IndexByte([]byte(s[offset:]), '\n')
		var line string
		if nl < 0 {
			line = s[offset:]
		} else {
			line = s[offset : offset+nl]
		}
		trimmed := bytes.TrimRight([]byte(line), "\r")
		if string(trimmed) == frontmatterDelim {
			return offset
		}
		if nl < 0 {
			return -1
		}
		offset += nl + 1
	}
}

// atomicWrite writes content to path via a temp file in the same
// directory followed by a rename, so readers never observe a
// partially-written file (spec section 4.2 "Persistence").
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// ReadStage parses a stage file at path, preserving any frontmatter
// fields this version of the code does not know about (spec section
// 6: "Unknown fields are preserved on round-trip").
func ReadStage(path string) (*models.Stage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage file: %w", err)
	}
	front, body, _ := splitFrontmatter(raw)

	var st models.Stage
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &st); err != nil {
			return nil, fmt.Errorf("parse stage frontmatter: %w", err)
		}
	}
	st.Body = string(body)
	return &st, nil
}

// WriteStage serializes a stage back to its markdown-plus-frontmatter
// form and writes it atomically, holding the per-path lock for the
// duration.
func WriteStage(path string, st *models.Stage) error {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	front, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal stage frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	buf.Write(front)
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	if st.Body != "" {
		buf.WriteByte('\n')
		buf.WriteString(st.Body)
		if !bytes.HasSuffix([]byte(st.Body), []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	return atomicWrite(path, buf.Bytes())
}

// ReadSession parses a session file at path.
func ReadSession(path string) (*models.Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	front, _, _ := splitFrontmatter(raw)
	var sess models.Session
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, &sess); err != nil {
			return nil, fmt.Errorf("parse session frontmatter: %w", err)
		}
	}
	return &sess, nil
}

// WriteSession serializes a session to its frontmatter-only form
// (sessions carry no narrative body) and writes it atomically.
func WriteSession(path string, sess *models.Session) error {
	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	front, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	buf.Write(front)
	buf.WriteString(frontmatterDelim)
	buf.WriteByte('\n')
	return atomicWrite(path, buf.Bytes())
}

// ListStageFiles returns every `.md` path under dir, sorted by name.
func ListStageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stages directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// LoadAllStages reads every stage file in dir.
func LoadAllStages(dir string) ([]*models.Stage, error) {
	files, err := ListStageFiles(dir)
	if err != nil {
		return nil, err
	}
	stages := make([]*models.Stage, 0, len(files))
	for _, f := range files {
		st, err := ReadStage(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
		stages = append(stages, st)
	}
	return stages, nil
}
