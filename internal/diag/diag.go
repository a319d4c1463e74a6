// Package diag provides the compiler's error taxonomy and a logrus-backed
// sink for non-fatal diagnostics (lex warnings, stage tracing). Fatal
// errors still surface to the caller as a single diagnostic string
// (spec.md §7); the sentinel errors below only let callers within the
// compiler itself (and tests) classify a failure with errors.Is.
package diag

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Sentinel errors identifying the taxonomy from spec.md §7.
var (
	ErrLex      = errors.New("lex error")
	ErrParse    = errors.New("parse error")
	ErrResolve  = errors.New("resolution error")
	ErrType     = errors.New("type error")
	ErrIO       = errors.New("I/O error")
	ErrFatal    = errors.New("fatal compile error")
)

// Log is the package-level structured logger. Configured once by the
// driver; defaults to a quiet text formatter on stderr so that library
// consumers don't get unsolicited output.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// SetVerbose raises the logger to Debug level, mirroring the teacher's
// Options.Verbose flag (src/util/args.go's "-vb").
func SetVerbose(v bool) {
	if v {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.WarnLevel)
	}
}

// Errorf wraps fmt.Errorf while tagging the error with sentinel so that
// errors.Is(err, sentinel) succeeds for callers that care, without
// exposing any structure to the end user (spec.md §7: "a single
// diagnostic string").
func Errorf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// Collector buffers non-fatal diagnostics emitted while a fatal error has
// not yet aborted the pipeline, e.g. the lexer's "Illegal character"
// reports (spec.md §4.1, §7). Adapted from the teacher's perror.go
// concurrent collector (src/util/perror.go), simplified for the
// single-threaded model mandated by spec.md §5.
type Collector struct {
	warnings []string
}

// Warn appends a non-fatal diagnostic and logs it immediately at Warn
// level.
func (c *Collector) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.warnings = append(c.warnings, msg)
	Log.Warn(msg)
}

// Warnings returns every warning collected so far.
func (c *Collector) Warnings() []string {
	return c.warnings
}

// Len returns the number of buffered warnings.
func (c *Collector) Len() int {
	return len(c.warnings)
}
