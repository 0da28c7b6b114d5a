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

package emit

import (
	"sort"

	"github.com/LineageOS/android-tools-extract-utils/classify"
)

// PackageList dedupes the module names of classified and drops any name
// that another record's REQUIRED= also names, since the required: edge
// already pulls it in transitively.
func PackageList(classified []classify.Classified) []string {
	required := map[string]bool{}
	for _, c := range classified {
		for _, req := range c.Record.Args.Required {
			required[req] = true
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, c := range classified {
		name := moduleName(c)
		if seen[name] || required[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
