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

import "strings"

// Format renders r back into manifest line syntax, the inverse of
// tokenizeLine: formatting then re-parsing must reproduce the same
// Record.
func Format(r Record) string {
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
	if r.PinnedHash != "" || r.FixupHash != "" {
		b.WriteByte('|')
		b.WriteString(r.PinnedHash)
	}
	if r.FixupHash != "" {
		b.WriteByte('|')
		b.WriteString(r.FixupHash)
	}
	return b.String()
}

// FormatKang renders r for kang mode with freshly computed pre- and
// post-fixup hashes substituted for whatever hashes r originally
// carried.
func FormatKang(r Record, preHash, postHash string) string {
	r.PinnedHash = preHash
	r.FixupHash = postHash
	return Format(r)
}
