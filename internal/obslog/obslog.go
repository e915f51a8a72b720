// Package obslog is the scheduler's leveled logger. It generalizes the
// teacher's conditional debugLog (package-level logger gated by an env
// var) into four levels, still writing plain timestamped lines rather
// than reaching for a structured logging library: nothing in the
// example corpus pulls one in for a CLI/daemon of this shape.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level orders the four severities a Logger can emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger writes leveled, timestamped lines to a single writer. Debug
// lines are suppressed unless SKEIN_DEBUG is set in the environment,
// matching the teacher's own env-gated debugLog.
type Logger struct {
	mu       sync.Mutex
	w        io.Writer
	debug    bool
	colorize bool
}

// New wraps w. Pass colorize=true only for an interactive stderr, not
// for a log file, since ANSI codes in .work/orchestrator.log would
// make it useless to tail with plain tools.
func New(w io.Writer, colorize bool) *Logger {
	return &Logger{
		w:        w,
		debug:    os.Getenv("SKEIN_DEBUG") != "",
		colorize: colorize,
	}
}

// NewStderr returns the CLI-facing logger: colorized, writing to
// stderr, following cmd/alphie/init.go's use of fatih/color for
// terminal status output.
func NewStderr() *Logger {
	return New(os.Stderr, true)
}

// NewFile opens path for append and returns a Logger writing to it.
// This is the daemon-facing logger (.work/orchestrator.log); callers
// must Close the returned file when the daemon shuts down.
func NewFile(path string) (*Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(f, false), f, nil
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level == LevelDebug && !l.debug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	tag := level.String()
	if l.colorize {
		tag = colorFor(level).Sprint(tag)
	}
	line := fmt.Sprintf("[%s] %-5s %s\n", time.Now().Format("15:04:05.000"), tag, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.w, line)
}

func colorFor(level Level) *color.Color {
	switch level {
	case LevelDebug:
		return color.New(color.FgCyan)
	case LevelInfo:
		return color.New(color.FgGreen)
	case LevelWarn:
		return color.New(color.FgYellow)
	case LevelError:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Nop returns a Logger that discards everything, for tests that don't
// care about log output.
func Nop() *Logger {
	return New(io.Discard, false)
}
