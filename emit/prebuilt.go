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
	"sort"
	"strings"

	"github.com/LineageOS/android-tools-extract-utils/classify"
)

// moduleName derives the prebuilt module's name: Record.Args.Module if
// given, otherwise the destination basename without its extension.
func moduleName(c classify.Classified) string {
	if c.Record.Args.HasModule() {
		name := c.Record.Args.Module
		if c.Record.Args.HasModuleSuffix() {
			name += c.Record.Args.ModuleSuffix
		}
		return name
	}
	base := path.Base(c.Record.DstPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// PrebuiltStanza renders the class-appropriate module stanza for one
// packaged record.
func PrebuiltStanza(c classify.Classified) string {
	switch c.Class {
	case classify.ClassSharedLibraries:
		return sharedLibraryStanza(c)
	case classify.ClassExecutables:
		if c.ELFTarget == classify.ELFTargetNone {
			return shBinaryStanza(c)
		}
		return ccPrebuiltBinaryStanza(c)
	case classify.ClassAPEX:
		return prebuiltApexStanza(c)
	case classify.ClassApps:
		return androidAppImportStanza(c)
	case classify.ClassJavaLibraries:
		return dexImportStanza(c)
	case classify.ClassRFSA:
		return prebuiltRFSAStanza(c)
	case classify.ClassETC:
		if strings.EqualFold(path.Ext(c.Record.DstPath), ".xml") {
			return prebuiltEtcXMLStanza(c)
		}
		return prebuiltEtcStanza(c)
	default:
		return prebuiltEtcStanza(c)
	}
}

func commonFields(b *strings.Builder, c classify.Classified) {
	fmt.Fprintf(b, "    name: %q,\n", moduleName(c))
	fmt.Fprintf(b, "    owner: \"lineage\",\n")
	fmt.Fprintf(b, "    src: %q,\n", TruncateFirstSegment(c.Record.DstPath))
	if len(c.Record.Args.Overrides) > 0 {
		fmt.Fprintf(b, "    overrides: %s,\n", quoteList(c.Record.Args.Overrides))
	}
	if len(c.Record.Args.Required) > 0 {
		fmt.Fprintf(b, "    required: %s,\n", quoteList(c.Record.Args.Required))
	}
	if c.Record.Args.HasStem() {
		fmt.Fprintf(b, "    stem: %q,\n", c.Record.Args.Stem)
	}
}

func quoteList(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, it := range sorted {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func sharedLibraryStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("cc_prebuilt_library_shared {\n")
	commonFields(&b, c)
	b.WriteString("    check_elf_files: false,\n")
	b.WriteString("    strip: { none: true },\n")
	b.WriteString("}\n")
	return b.String()
}

// SharedLibraryBucketStanza renders a single cc_prebuilt_library_shared
// module spanning an ABI bucket's 32- and 64-bit srcs, carrying a
// target: sub-block with ABI-specific srcs arrays.
func SharedLibraryBucketStanza(b classify.ABIBucket) string {
	var buf strings.Builder
	buf.WriteString("cc_prebuilt_library_shared {\n")
	fmt.Fprintf(&buf, "    name: %q,\n", strings.TrimSuffix(b.Name, path.Ext(b.Name)))
	buf.WriteString("    owner: \"lineage\",\n")
	buf.WriteString("    check_elf_files: false,\n")
	buf.WriteString("    strip: { none: true },\n")
	if len(b.Records32) > 0 || len(b.Records64) > 0 {
		buf.WriteString("    target: {\n")
		if len(b.Records32) > 0 {
			fmt.Fprintf(&buf, "        android_arm: { srcs: [%q] },\n", TruncateFirstSegment(b.Records32[0].Record.DstPath))
		}
		if len(b.Records64) > 0 {
			fmt.Fprintf(&buf, "        android_arm64: { srcs: [%q] },\n", TruncateFirstSegment(b.Records64[0].Record.DstPath))
		}
		buf.WriteString("    },\n")
	}
	buf.WriteString("}\n")
	return buf.String()
}

func ccPrebuiltBinaryStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("cc_prebuilt_binary {\n")
	commonFields(&b, c)
	b.WriteString("    check_elf_files: false,\n")
	b.WriteString("}\n")
	return b.String()
}

func shBinaryStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("sh_binary {\n")
	commonFields(&b, c)
	b.WriteString("}\n")
	return b.String()
}

func prebuiltApexStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("prebuilt_apex {\n")
	commonFields(&b, c)
	b.WriteString("    arch: { arm64: { src: \"" + TruncateFirstSegment(c.Record.DstPath) + "\" } },\n")
	b.WriteString("}\n")
	return b.String()
}

func androidAppImportStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("android_app_import {\n")
	commonFields(&b, c)
	if c.PrivApp {
		b.WriteString("    privileged: true,\n")
	}
	if c.Record.Args.Presigned {
		b.WriteString("    presigned: true,\n")
	} else if c.Record.Args.HasCertificate() {
		fmt.Fprintf(&b, "    certificate: %q,\n", c.Record.Args.Certificate)
	} else {
		b.WriteString("    presigned: true,\n")
	}
	if c.Record.Args.SkipAPKChecks {
		b.WriteString("    dex_preopt: { enabled: false },\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func dexImportStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("dex_import {\n")
	commonFields(&b, c)
	b.WriteString("}\n")
	return b.String()
}

func prebuiltRFSAStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("prebuilt_rfsa {\n")
	commonFields(&b, c)
	b.WriteString("    installable: true,\n")
	b.WriteString("}\n")
	return b.String()
}

func prebuiltEtcStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("prebuilt_etc {\n")
	commonFields(&b, c)
	fmt.Fprintf(&b, "    sub_dir: %q,\n", path.Dir(TruncateFirstSegment(c.Record.DstPath)))
	b.WriteString("}\n")
	return b.String()
}

func prebuiltEtcXMLStanza(c classify.Classified) string {
	var b strings.Builder
	b.WriteString("prebuilt_etc_xml {\n")
	commonFields(&b, c)
	fmt.Fprintf(&b, "    sub_dir: %q,\n", path.Dir(TruncateFirstSegment(c.Record.DstPath)))
	b.WriteString("}\n")
	return b.String()
}
