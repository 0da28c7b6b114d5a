// Copyright (C) 2025 The LineageOS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logx provides the leveled, structured logger and run-scoped
// Context shared by every pipeline stage. Context is agnostic of any one
// acquisition or manifest run and may be reused across repeated calls in
// the same process.
package logx

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Severity mirrors xerr.Severity for the subset that is ever printed.
type Severity int

const (
	SeverityRed    Severity = iota // fatal or blob-aborting
	SeverityYellow                 // advisory
	SeverityGreen                  // success / informational
)

// Logger is the leveled logger used throughout the pipeline. It wraps
// logrus so the rest of the codebase never imports logrus directly.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to w. Verbose enables debug-level output.
func New(w io.Writer, verbose bool) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	if f, ok := w.(*os.File); ok {
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:   isTerminal(f),
			FullTimestamp: false,
			DisableQuote:  true,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// With returns a Logger with an additional structured field, attaching
// context rather than formatting it into the message.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Verbosef logs at debug level; shown only with -v, matching
// ui/build.Context.Verbosef.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Printf logs at info level; always shown.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Red logs a non-fatal warning (SourceNotFound, HashMismatch).
func (l *Logger) Red(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Yellow logs an advisory (PinnedButFixedUp).
func (l *Logger) Yellow(format string, args ...interface{}) {
	l.entry.WithField("severity", "advisory").Warnf(format, args...)
}

// Fatalf logs at error level and the caller is expected to exit(1)
// immediately after; Logger itself never calls os.Exit so it stays
// testable.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// RunStats accumulates the one-line summary counters from spec.md's
// Data Model §3 (the Go-native analogue of the original script's final
// echo summary). Safe for a single goroutine at a time, matching the
// "single-threaded cooperative" scheduling model of §5 except where the
// A/B fan-out explicitly joins before continuing.
type RunStats struct {
	Parsed      int
	Resolved    int
	FixedUp     int
	PinReused   int
	Skipped     int
	HashMismatch int
}

// Summary renders the counters as a single line.
func (s *RunStats) Summary() string {
	return fmt.Sprintf(
		"parsed=%d resolved=%d fixed_up=%d pin_reused=%d skipped=%d hash_mismatch=%d",
		s.Parsed, s.Resolved, s.FixedUp, s.PinReused, s.Skipped, s.HashMismatch,
	)
}

// Context combines a Logger and RunStats for one invocation, the way
// ui/build.Context combines a logger.Logger with Metrics.
type Context struct {
	*Logger
	Stats *RunStats
}

// NewContext builds a Context with fresh RunStats.
func NewContext(l *Logger) Context {
	return Context{Logger: l, Stats: &RunStats{}}
}
