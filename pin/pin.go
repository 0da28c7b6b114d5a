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

// Package pin implements hash pinning and kang mode: the decision of
// whether a pinned blob can be reused as-is, reused post-fixup, or must
// be re-fetched and re-fixed-up, plus the kang-mode manifest
// regeneration used to refresh pinned hashes. The underlying question
// is always "is the thing I already have the thing I was asked for",
// answered by comparing a content digest before deciding to re-fetch.
package pin

import (
	"io"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
	"github.com/LineageOS/android-tools-extract-utils/tools"
)

// Decision is the outcome of checking a pinned record against existing
// copies in the output directory or the staged temp directory.
type Decision int

const (
	// Miss means no usable existing copy was found; fetch and fixup
	// must run in full.
	Miss Decision = iota
	// ReuseAsIs means the existing copy matches PinnedHash and no
	// FixupHash is declared: skip fetch and fixup entirely.
	ReuseAsIs
	// ReusePostFixup means the existing copy matches FixupHash: skip
	// fetch and fixup, the copy is already in its post-fixup state.
	ReusePostFixup
	// RerunFixup means the existing copy matches PinnedHash but a
	// different FixupHash is declared: fixup must run again. The
	// extract-blobs driver re-copies the blob from the tree before
	// running it.
	RerunFixup
)

// Check implements the reuse decision's match table. existing is opened
// from whichever of the output directory or staged temp directory has
// a copy; if neither has one, pass a nil reader (or any error from
// Open) and Check returns Miss.
func Check(rec manifest.Record, existing io.Reader) (Decision, error) {
	if !rec.Pinned() || existing == nil {
		return Miss, nil
	}
	sum, err := tools.SHA1File(existing)
	if err != nil {
		return Miss, err
	}
	return checkSum(rec, sum), nil
}

func checkSum(rec manifest.Record, sum string) Decision {
	switch {
	case rec.FixupHash != "" && sum == rec.FixupHash:
		return ReusePostFixup
	case rec.PinnedHash != "" && sum == rec.PinnedHash:
		if rec.FixupHash == "" {
			return ReuseAsIs
		}
		return RerunFixup
	default:
		return Miss
	}
}

// FindExisting opens the first of outputPath, stagedPath that exists on
// fs, returning (nil, nil) if neither does. Callers pass the resulting
// reader to Check.
func FindExisting(fs afero.Fs, outputPath, stagedPath string) (afero.File, error) {
	for _, p := range []string{outputPath, stagedPath} {
		if p == "" {
			continue
		}
		f, err := fs.Open(p)
		if err == nil {
			return f, nil
		}
	}
	return nil, nil
}

// PostFixupVerdict is the non-fatal comparison performed after
// fixup runs: the post-fixup hash is checked against the declared
// FixupHash (if any) or PinnedHash (otherwise), and a mismatch is
// reported but never aborts the run.
type PostFixupVerdict struct {
	Checked  bool
	Matched  bool
	Expected string
	Actual   string
}

// VerifyPostFixup computes the post-fixup verdict for rec given its
// actual post-fixup hash.
func VerifyPostFixup(rec manifest.Record, postFixupHash string) PostFixupVerdict {
	expected := rec.FixupHash
	if expected == "" {
		expected = rec.PinnedHash
	}
	if expected == "" {
		return PostFixupVerdict{}
	}
	return PostFixupVerdict{
		Checked:  true,
		Matched:  postFixupHash == expected,
		Expected: expected,
		Actual:   postFixupHash,
	}
}

// PinnedWithoutFixupHash reports whether rec was statically pinned
// (PinnedHash set) but declares no FixupHash, which warrants a warning
// when fixup nonetheless changes its content.
func PinnedWithoutFixupHash(rec manifest.Record) bool {
	return rec.PinnedHash != "" && rec.FixupHash == ""
}

// Kang renders the normalized kang-mode line for one blob: a fresh
// manifest line with the just-computed pre- and post-fixup hashes
// substituted for whatever hashes (if any) the manifest previously
// declared.
func Kang(rec manifest.Record, preFixupHash, postFixupHash string) string {
	return manifest.FormatKang(rec, preFixupHash, postFixupHash)
}

// Diff reports the kang-mode lines that changed between an existing
// manifest and the freshly regenerated one, keyed by dst_path: only
// entries whose src path, dst path, packaged flag or hashes differ are
// returned, in the order they appear in newManifest; a change confined
// to the arg tokens is not reported. An entry present only in newManifest is reported in
// full; one present only in oldManifest is omitted (kang mode only
// regenerates what it extracted this run).
func Diff(oldManifest, newManifest []manifest.Record) []string {
	oldByDst := make(map[string]manifest.Record, len(oldManifest))
	for _, r := range oldManifest {
		oldByDst[r.DstPath] = r
	}

	var out []string
	for _, n := range newManifest {
		o, ok := oldByDst[n.DstPath]
		if !ok || !sameContent(o, n) {
			out = append(out, manifest.Format(n))
		}
	}
	return out
}

func sameContent(a, b manifest.Record) bool {
	return a.SrcPath == b.SrcPath &&
		a.DstPath == b.DstPath &&
		a.Packaged == b.Packaged &&
		a.PinnedHash == b.PinnedHash &&
		a.FixupHash == b.FixupHash
}
