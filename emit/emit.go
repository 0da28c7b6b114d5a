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

// Package emit renders the four build-system sinks: the copy-file
// makefile fragment, the prebuilt-module description file, synthesized
// symlink stanzas, and firmware rules. Output is built with plain
// buffered string concatenation, deterministic and line-oriented,
// rather than through a templating engine.
package emit

import (
	"fmt"
	"strings"
)

// commonVariants lists the device-name suffixes the device guard also
// accepts via "ifneq(filter …" clauses.
var commonVariants = []string{"_wifi", "_row", "_global", "_sprout"}

// Header renders the license/warning header and device guard that wrap
// every makefile-flavored output. body is inserted between
// the opening guard and its matching endif.
func Header(device, body string) string {
	var b strings.Builder
	b.WriteString("#\n")
	b.WriteString("# Copyright (C) The LineageOS Project\n")
	b.WriteString("#\n")
	b.WriteString("# Licensed under the Apache License, Version 2.0 (the \"License\")\n")
	b.WriteString("#\n")
	b.WriteString("# This file is generated by extract-blobs. Do not edit manually.\n")
	b.WriteString("#\n\n")
	fmt.Fprintf(&b, "ifeq ($(TARGET_DEVICE),%s)\n", device)
	for _, v := range commonVariants {
		fmt.Fprintf(&b, "else ifneq ($(filter %s%s,$(TARGET_DEVICE)),)\n", device, v)
	}
	b.WriteString(body)
	b.WriteString("\nendif\n")
	return b.String()
}

// NamespaceImports renders the soong_namespace import stanza that heads
// the prebuilt-module file, folding in caller-supplied extra imports
// alongside the device's own vendor namespace.
func NamespaceImports(device string, extra []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "soong_namespace {\n")
	b.WriteString("    imports: [\n")
	fmt.Fprintf(&b, "        \"vendor/%s\",\n", device)
	for _, imp := range extra {
		fmt.Fprintf(&b, "        %q,\n", imp)
	}
	b.WriteString("    ],\n")
	b.WriteString("}\n")
	return b.String()
}

// TruncateFirstSegment strips the first '/'-delimited path segment of p
// (a "truncate-file" transform), e.g. "vendor/lib/libx.so" ->
// "lib/libx.so". A path with no '/' is returned unchanged.
func TruncateFirstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// partitionOutputVar maps a partition name to the make output-path
// variable the copy-file fragment assigns into.
func partitionOutputVar(partition string) string {
	switch partition {
	case "vendor":
		return "TARGET_COPY_OUT_VENDOR"
	case "product":
		return "TARGET_COPY_OUT_PRODUCT"
	case "system_ext":
		return "TARGET_COPY_OUT_SYSTEM_EXT"
	case "odm":
		return "TARGET_COPY_OUT_ODM"
	default:
		return "TARGET_COPY_OUT_SYSTEM"
	}
}

// CopyFileLine renders one copy-file makefile fragment line (spec
// §4.I, sink 1): stagedPath is the file's location in the staged
// output tree, dstPath is its manifest destination, partition is the
// classifier's partition bucket.
func CopyFileLine(partition, stagedPath, dstPath string) string {
	return fmt.Sprintf("PRODUCT_COPY_FILES += %s:$(%s)/%s",
		stagedPath, partitionOutputVar(partition), TruncateFirstSegment(dstPath))
}
