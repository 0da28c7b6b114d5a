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

package manifest

import (
	"path"
	"sort"
	"strings"

	"github.com/google/blueprint/pathtools"

	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// checkELFPrefixes are the directories that, under check-ELF mode,
// imply a packaged (module-backed) record even without an explicit
// leading "-".
var checkELFPrefixes = []string{"lib/", "lib64/", "bin/", "lib/rfsa/"}

// Parse tokenizes a manifest's text into sorted, deduplicated Records.
// section, if non-empty, selects the block beginning at the first
// comment line whose text contains section (case-insensitively), or
// glob-matches it when section contains a pathtools glob metacharacter
// (e.g. "device_*"), and ending at the next blank line. checkELF enables
// the lib/bin/rfsa and etc/vintf/manifest implicit-packaging inference.
func Parse(text string, section string, checkELF bool) ([]Record, error) {
	lines := strings.Split(text, "\n")

	selected := lines
	if section != "" {
		start := -1
		needle := strings.ToLower(section)
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "#") {
				continue
			}
			header := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
			matched := strings.Contains(header, needle)
			if !matched && pathtools.IsGlob(needle) {
				if ok, err := pathtools.Match(needle, header); err == nil && ok {
					matched = true
				}
			}
			if matched {
				start = i + 1
				break
			}
		}
		if start == -1 {
			return nil, &xerr.MalformedSpec{Reason: "section " + section + " not found"}
		}
		end := len(lines)
		for i := start; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "" {
				end = i
				break
			}
		}
		selected = lines[start:end]
	}

	var content []string
	for _, line := range selected {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		content = append(content, trimmed)
	}

	sort.Strings(content)
	content = dedupSorted(content)

	records := make([]Record, 0, len(content))
	seenDst := make(map[string]string, len(content))
	for i, line := range content {
		rec, err := tokenizeLine(line)
		if err != nil {
			if ms, ok := err.(*xerr.MalformedSpec); ok {
				ms.LineNo = i + 1
				ms.Line = line
			}
			return nil, err
		}
		applyPackagedInference(&rec, checkELF)

		if prev, ok := seenDst[rec.DstPath]; ok {
			return nil, &xerr.MalformedSpec{
				Line:   line,
				LineNo: i + 1,
				Reason: "duplicate dst_path " + rec.DstPath + " (also produced by " + prev + ")",
			}
		}
		seenDst[rec.DstPath] = line

		records = append(records, rec)
	}

	return records, nil
}

func dedupSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// tokenizeLine implements the five-step tokenization of a single
// already-trimmed, non-empty manifest line: hash suffixes, the
// packaged marker, path spec, and arg tokens, in that order.
func tokenizeLine(line string) (Record, error) {
	// Step 1: split on '|' to peel off up to two trailing SHA1 hashes.
	parts := strings.Split(line, "|")
	specPart := parts[0]
	var pinnedHash, fixupHash string
	if len(parts) > 1 {
		pinnedHash = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	if len(parts) > 2 {
		fixupHash = strings.ToLower(strings.TrimSpace(parts[2]))
	}
	if len(parts) > 3 {
		return Record{}, &xerr.MalformedSpec{Reason: "too many '|'-separated hash fields"}
	}

	// Step 2: leading '-' marks packaged=true.
	packaged := false
	if strings.HasPrefix(specPart, "-") {
		packaged = true
		specPart = specPart[1:]
	}

	// Step 3/4: split path-spec-and-args on ';', then path spec on ':'.
	fields := strings.Split(specPart, ";")
	pathSpec := fields[0]
	if pathSpec == "" {
		return Record{}, &xerr.MalformedSpec{Reason: "empty src_path"}
	}
	argTokens := fields[1:]

	pathParts := strings.SplitN(pathSpec, ":", 2)
	src := pathParts[0]
	dst := src
	if len(pathParts) == 2 {
		dst = pathParts[1]
	}

	args, err := parseArgs(argTokens)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Packaged:   packaged,
		SrcPath:    src,
		DstPath:    dst,
		Args:       args,
		PinnedHash: pinnedHash,
		FixupHash:  fixupHash,
	}, nil
}

// parseArgs classifies each ';'-separated option token.
func parseArgs(tokens []string) (Args, error) {
	var a Args
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		a.Raw = append(a.Raw, tok)
		switch {
		case tok == "PRESIGNED":
			a.Presigned = true
		case tok == "SKIPAPKCHECKS":
			a.SkipAPKChecks = true
		case tok == "FIX_SONAME":
			a.FixSoname = true
		case tok == "FIX_XML":
			a.FixXML = true
		case tok == "DISABLE_CHECKELF":
			a.DisableCheckELF = true
		case tok == "DISABLE_DEPS":
			a.DisableDeps = true
		case tok == "AB":
			a.AB = true
		case tok == "TRYSRCFIRST":
			a.TrySrcFirst = true
		case strings.HasPrefix(tok, "MODULE_SUFFIX="):
			a.ModuleSuffix = strings.TrimPrefix(tok, "MODULE_SUFFIX=")
		case strings.HasPrefix(tok, "MODULE="):
			a.Module = strings.TrimPrefix(tok, "MODULE=")
		case strings.HasPrefix(tok, "STEM="):
			a.Stem = strings.TrimPrefix(tok, "STEM=")
		case strings.HasPrefix(tok, "OVERRIDES="):
			a.Overrides = splitNonEmpty(strings.TrimPrefix(tok, "OVERRIDES="), ",")
		case strings.HasPrefix(tok, "REQUIRED="):
			a.Required = splitNonEmpty(strings.TrimPrefix(tok, "REQUIRED="), ",")
		case strings.HasPrefix(tok, "SYMLINK="):
			a.Symlink = splitNonEmpty(strings.TrimPrefix(tok, "SYMLINK="), ",")
		default:
			if a.Certificate != "" {
				return Args{}, &xerr.MalformedSpec{Reason: "multiple certificate tokens: " + a.Certificate + " and " + tok}
			}
			a.Certificate = tok
		}
	}
	return a, nil
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyPackagedInference upgrades Packaged to true for extensions and
// paths that always imply a module-backed blob. It never downgrades an
// already-packaged record.
func applyPackagedInference(r *Record, checkELF bool) {
	if r.Packaged {
		return
	}
	ext := strings.ToLower(path.Ext(r.SrcPath))
	switch ext {
	case ".apk", ".jar", ".apex":
		r.Packaged = true
		return
	}
	if !checkELF {
		return
	}
	if r.Args.DisableCheckELF {
		return
	}
	for _, prefix := range checkELFPrefixes {
		if containsPathSegmentPrefix(r.SrcPath, prefix) {
			r.Packaged = true
			return
		}
	}
	if strings.Contains(r.SrcPath, "etc/vintf/manifest/") {
		r.Packaged = true
	}
}

// containsPathSegmentPrefix reports whether path has prefix as one of
// its path components, anchored either at the start of the path or
// immediately after a '/' (so "vendor/lib/foo.so" matches "lib/" but
// "vendor/library/foo" does not).
func containsPathSegmentPrefix(p, prefix string) bool {
	if strings.HasPrefix(p, prefix) {
		return true
	}
	return strings.Contains(p, "/"+prefix)
}
