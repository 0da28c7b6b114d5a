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

package acquire

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ScopedTempDir is the process-wide scratch directory for a single
// extraction run, created at startup and removed on exit unless
// keepDump is set. The directory is suffixed with a random UUID so
// concurrent invocations never collide on the same path.
type ScopedTempDir struct {
	Path     string
	keepDump bool
}

// NewScopedTempDir creates a fresh temp directory under parent (the OS
// default temp dir when parent is "").
func NewScopedTempDir(parent string, keepDump bool) (*ScopedTempDir, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "extract-blobs-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &ScopedTempDir{Path: dir, keepDump: keepDump}, nil
}

// Close removes the temp directory unless keepDump was requested (spec
// §4.C / §5's cancellation/cleanup rule).
func (t *ScopedTempDir) Close() error {
	if t.keepDump {
		return nil
	}
	return os.RemoveAll(t.Path)
}
