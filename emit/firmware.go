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
	"fmt"
	"strings"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
)

// FirmwareSHA1Rule renders one add-radio-file-sha1-checked line for a
// radio image, keyed by its freshly computed SHA1.
func FirmwareSHA1Rule(dstPath, sha1 string) string {
	return fmt.Sprintf("$(call add-radio-file-sha1-checked,%s,%s)", TruncateFirstSegment(dstPath), sha1)
}

// ABOTAPartitions renders the AB_OTA_PARTITIONS assignment listing
// every record tagged AB.
func ABOTAPartitions(records []manifest.Record) string {
	var names []string
	for _, r := range records {
		if r.Args.AB {
			names = append(names, partitionName(r.DstPath))
		}
	}
	names = dedupStable(names)
	if len(names) == 0 {
		return ""
	}
	return "AB_OTA_PARTITIONS += " + strings.Join(names, " ")
}

// partitionName returns the top-level path segment of dstPath, the
// partition name AB_OTA_PARTITIONS expects.
func partitionName(dstPath string) string {
	if i := strings.IndexByte(dstPath, '/'); i >= 0 {
		return dstPath[:i]
	}
	return dstPath
}

func dedupStable(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
