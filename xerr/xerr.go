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

// Package xerr defines the structured error taxonomy shared by every
// component of the extraction pipeline. Each error type carries enough
// context (the blob, the tool, the offending line) to be reported
// without the caller re-deriving it, and each implements error so
// standard errors.As recovers the concrete types below. There are no
// sentinel error values.
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Severity classifies how a caller should react to an error: whether it
// aborts the run, aborts only the current blob, or is merely reported.
type Severity int

const (
	// Fatal aborts the whole invocation.
	Fatal Severity = iota
	// PerBlob aborts processing of one manifest record but the run continues.
	PerBlob
	// Advisory is reported but never changes control flow.
	Advisory
)

// UsageError signals missing or invalid command-line arguments.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return "usage: " + e.Reason }

// PreconditionFailure signals an absent root directory or required helper.
type PreconditionFailure struct {
	Reason string
}

func (e *PreconditionFailure) Error() string { return "precondition failed: " + e.Reason }

// MalformedSpec signals a manifest line that could not be parsed or that
// violates a structural invariant (e.g. a duplicate dst_path).
type MalformedSpec struct {
	Line   string
	LineNo int
	Reason string
}

func (e *MalformedSpec) Error() string {
	return fmt.Sprintf("malformed spec at line %d (%q): %s", e.LineNo, e.Line, e.Reason)
}

// SourceNotFound signals that a manifest record's source file could not
// be located anywhere in the canonical tree (the resolver looks up its
// dst_path, or its src_path under TRYSRCFIRST; Blob carries the
// src_path). It is always PerBlob severity.
type SourceNotFound struct {
	Blob string
}

func (e *SourceNotFound) Error() string { return "source not found for " + e.Blob }

// ToolFailure wraps a nonzero subprocess exit from one of the external
// tool adapters in package tools.
type ToolFailure struct {
	Tool   string
	Args   []string
	Stderr string
	Code   int
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Tool, e.Code, e.Stderr)
}

// IncompatibleTool signals a known-bad extractor behavior that must not
// be silently tolerated, such as the ext4 short-read-on-symlink marker.
type IncompatibleTool struct {
	Tool   string
	Detail string
}

func (e *IncompatibleTool) Error() string {
	return fmt.Sprintf("incompatible tool %s: %s", e.Tool, e.Detail)
}

// HashMismatch signals that a computed digest did not match the
// expected pinned or fixup hash. Non-fatal; reported as a red warning.
type HashMismatch struct {
	Blob     string
	Expected string
	Actual   string
}

func (e *HashMismatch) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s", e.Blob, e.Expected, e.Actual)
}

// PinnedButFixedUp signals that a blob was declared with only a
// pinned_hash (no fixup_hash) but the fixup pipeline altered it anyway.
// Non-fatal; reported as a yellow advisory.
type PinnedButFixedUp struct {
	Blob string
}

func (e *PinnedButFixedUp) Error() string {
	return fmt.Sprintf("%s is pinned without a fixup_hash but was fixed up", e.Blob)
}

// Wrap attaches a message to err while preserving its chain for
// errors.As/errors.Is, annotating rather than discarding the
// underlying cause.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
