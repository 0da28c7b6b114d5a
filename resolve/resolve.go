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

// Package resolve locates manifest records inside the canonical tree
// produced by package image/acquire, following the path-fallback and
// symlink-redirect rules. It is a per-record resolution with no
// persistent state of its own — the canonical tree it reads is the
// only shared state, and it is owned exclusively by one pipeline stage
// at a time.
package resolve

import (
	"io/fs"
	"strings"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// maxSymlinkDepth bounds symlink-following recursion to guard against
// cycles in a malformed or adversarial image.
const maxSymlinkDepth = 10

// Tree is the canonical directory tree: one directory per partition
// root (system, vendor, product, system_ext, odm), rooted at an afero
// filesystem.
type Tree struct {
	FS afero.Fs
}

// NewTree wraps fs as a canonical tree.
func NewTree(fsys afero.Fs) *Tree {
	return &Tree{FS: fsys}
}

// Resolve locates rec's source file in the tree, following the
// fallback and symlink rules, and returns the tree-relative path at
// which it was found.
func (t *Tree) Resolve(rec manifest.Record) (string, error) {
	path := rec.DstPath
	if rec.Args.TrySrcFirst {
		path = rec.SrcPath
	}
	found, err := t.resolvePath(path, 0)
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", &xerr.SourceNotFound{Blob: rec.SrcPath}
	}
	return found, nil
}

// candidatePaths computes the three fallback candidates for p:
// "/system/<path>", "<path>", "system/<path>", normalized to
// tree-relative form.
func candidatePaths(p string) []string {
	clean := strings.TrimPrefix(p, "/")
	return []string{
		"system/" + clean,
		clean,
		"system/" + clean,
	}
}

func (t *Tree) resolvePath(path string, depth int) (string, error) {
	if depth > maxSymlinkDepth {
		return "", nil
	}

	for _, cand := range candidatePaths(path) {
		resolved, ok, err := t.tryCandidate(cand, depth)
		if err != nil {
			return "", err
		}
		if ok {
			return resolved, nil
		}
	}
	return "", nil
}

// tryCandidate Lstats cand before ever attempting to read it: a
// symlink must be recognized and re-resolved through the fallback
// sequence even when it's dangling (its target missing or satisfied
// only by a relative sibling elsewhere in the tree), so the symlink
// check cannot be gated behind a successful read of cand itself. Only
// once cand is known not to be a symlink does it fall back to a plain
// existence check, and then the documented /system/odm -> /vendor/odm
// compatibility redirect.
func (t *Tree) tryCandidate(cand string, depth int) (string, bool, error) {
	if target, isLink := t.readSymlink(cand); isLink {
		resolved, rerr := t.resolvePath(target, depth+1)
		if rerr != nil {
			return "", false, rerr
		}
		if resolved != "" {
			return resolved, true, nil
		}
		return "", false, nil
	}

	if _, err := afero.ReadFile(t.FS, cand); err == nil {
		return cand, true, nil
	}

	if redirected, ok := odmRedirect(cand); ok {
		if _, rerr := afero.ReadFile(t.FS, redirected); rerr == nil {
			return redirected, true, nil
		}
	}
	return "", false, nil
}

// odmRedirect implements the documented /system/odm/* -> /vendor/odm/*
// compatibility redirect.
func odmRedirect(cand string) (string, bool) {
	const from = "system/odm/"
	if strings.HasPrefix(cand, from) {
		return "vendor/odm/" + strings.TrimPrefix(cand, from), true
	}
	return "", false
}

// readSymlink reports whether cand is a symlink in the underlying
// filesystem and, if so, its target. Filesystems that do not implement
// afero.Lstater (such as the in-memory MemMapFs used in tests) report
// false, which is correct: an in-memory tree has no symlinks.
func (t *Tree) readSymlink(cand string) (string, bool) {
	lst, ok := t.FS.(afero.Lstater)
	if !ok {
		return "", false
	}
	info, wasLstat, err := lst.LstatIfPossible(cand)
	if err != nil || !wasLstat {
		return "", false
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return "", false
	}
	linker, ok := t.FS.(interface {
		ReadlinkIfPossible(name string) (string, error)
	})
	if !ok {
		return "", false
	}
	target, err := linker.ReadlinkIfPossible(cand)
	if err != nil {
		return "", false
	}
	return target, true
}
