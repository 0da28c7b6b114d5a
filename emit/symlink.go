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
	"path"
	"strings"
)

// SymlinkNamer assigns install-symlink module names, appending a
// duplicate-count suffix on collision. Its zero
// value is ready to use.
type SymlinkNamer struct {
	seen map[string]int
}

// Name returns the module name for a symlink from srcPath to link,
// optionally qualified by arch (e.g. "32", "64", or "" for
// architecture-independent targets).
func (n *SymlinkNamer) Name(srcPath, link, arch string) string {
	if n.seen == nil {
		n.seen = map[string]int{}
	}
	base := fmt.Sprintf("%s_%s_symlink", stem(srcPath), stem(link))
	if arch != "" {
		base += arch
	}
	n.seen[base]++
	if n.seen[base] == 1 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n.seen[base]-1)
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// SymlinkStanza renders the install_symlink module for a SYMLINK=
// target declared on a packaged record. installed_location is relative
// to the partition root the symlink lands on; symlink_target is always
// device-absolute, so only srcPath's leading slash is added, never its
// first path segment truncated. partition marks the symlink
// soc_specific when it lands on vendor.
func SymlinkStanza(name, srcPath, link, partition string) string {
	var b strings.Builder
	b.WriteString("install_symlink {\n")
	fmt.Fprintf(&b, "    name: %q,\n", name)
	fmt.Fprintf(&b, "    installed_location: %q,\n", TruncateFirstSegment(link))
	fmt.Fprintf(&b, "    symlink_target: %q,\n", "/"+srcPath)
	if partition == "vendor" {
		b.WriteString("    soc_specific: true,\n")
	}
	b.WriteString("}\n")
	return b.String()
}
