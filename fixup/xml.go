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

package fixup

import "strings"

// ReorderXMLDeclaration forces a leading "<?xml …?>" declaration onto
// the first line, re-emitting it first and appending every other line
// unchanged. Content with no XML declaration is returned unchanged.
func ReorderXMLDeclaration(content []byte) []byte {
	text := string(content)
	lines := strings.Split(text, "\n")

	declIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "<?xml") {
			declIdx = i
			break
		}
	}
	if declIdx <= 0 {
		return content
	}

	decl := lines[declIdx]
	rest := append(append([]string{}, lines[:declIdx]...), lines[declIdx+1:]...)
	out := append([]string{decl}, rest...)
	return []byte(strings.Join(out, "\n"))
}
