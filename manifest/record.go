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

// Package manifest tokenizes the proprietary-files blob manifest into
// typed Records and formats them back out for kang mode. It replaces a
// parallel-array parse_file_list routine with a single Record type and
// a single ordered collection.
package manifest

import "strings"

// Record is one entry of the blob manifest.
type Record struct {
	Packaged bool
	SrcPath  string
	DstPath  string
	Args     Args

	PinnedHash string
	FixupHash  string
}

// Args holds the parsed option tokens of a manifest line. Raw preserves the original token order and casing/spelling for
// lossless round-trip formatting of tokens this package does not
// otherwise normalize (the certificate bareword in particular).
type Args struct {
	Presigned       bool
	SkipAPKChecks   bool
	FixSoname       bool
	FixXML          bool
	DisableCheckELF bool
	DisableDeps     bool
	AB              bool
	TrySrcFirst     bool

	Module       string
	ModuleSuffix string
	Stem         string

	Overrides []string
	Required  []string
	Symlink   []string

	// Certificate holds the first token that did not match any
	// recognized form, treated as an APK certificate name.
	Certificate string

	Raw []string
}

// HasModule reports whether MODULE= was given.
func (a Args) HasModule() bool { return a.Module != "" }

// HasModuleSuffix reports whether MODULE_SUFFIX= was given.
func (a Args) HasModuleSuffix() bool { return a.ModuleSuffix != "" }

// HasStem reports whether STEM= was given.
func (a Args) HasStem() bool { return a.Stem != "" }

// HasCertificate reports whether a bareword certificate token was given.
func (a Args) HasCertificate() bool { return a.Certificate != "" }

// Pinned reports whether either hash is present, which activates
// pinning.
func (r Record) Pinned() bool { return r.PinnedHash != "" || r.FixupHash != "" }

// key returns the record's textual form without its hashes. Parse does
// not call it: duplicates are removed on the raw line text before
// tokenizing.
func (r Record) key() string {
	var b strings.Builder
	if r.Packaged {
		b.WriteByte('-')
	}
	b.WriteString(r.SrcPath)
	if r.DstPath != r.SrcPath {
		b.WriteByte(':')
		b.WriteString(r.DstPath)
	}
	for _, tok := range r.Args.Raw {
		b.WriteByte(';')
		b.WriteString(tok)
	}
	return b.String()
}
