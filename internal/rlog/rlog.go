// Package rlog is a minimal wrapper around logrus (spec's ambient logging
// stack), shaped after the teacher's log.Logger: a thin writer-style facade
// the rest of the module logs through, rather than importing logrus
// directly everywhere.
package rlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Logger, adding the teacher's Logln/Logf/LogDepfln
// call shapes on top of logrus's structured entries.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing to w at info level with a plain text
// formatter (no timestamps forced, since REPL/CLI transcripts are often
// diffed verbatim in tests).
func New(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &Logger{Logger: l}
}

// Logln logs a line at info level.
func (l *Logger) Logln(args ...interface{}) { l.Logger.Infoln(args...) }

// Logf logs a formatted string at info level.
func (l *Logger) Logf(f string, args ...interface{}) { l.Logger.Infof(f, args...) }

// LogDepfln logs a formatted line, prefixed with the binary's name, at
// info level (mirrors the teacher's "dep: "-prefixed diagnostics).
func (l *Logger) LogDepfln(prefix, format string, args ...interface{}) {
	l.Logger.Infof(prefix+": "+format, args...)
}

// WithPkg returns an Entry tagged with the package-under-operation field,
// used by the package manager's prepare/commit phases.
func (l *Logger) WithPkg(name string) *logrus.Entry {
	return l.Logger.WithField("pkg", name)
}
