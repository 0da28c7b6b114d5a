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

// Package classify buckets the packaged subset of manifest records by
// partition, class, and (for shared libraries) ABI. A record is routed
// to a make-visible class ("JAVA_LIBRARIES", "SHARED_LIBRARIES", ...)
// by the same kind of extension/directory inspection a build-system
// module-type mapper performs.
package classify

import (
	"context"
	"path"
	"strings"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
)

// Partition is one of the five known partition roots. ClassifyPartition
// never returns PartitionNone (""): a path matching no prefix goes to
// PartitionSystem.
type Partition string

const (
	PartitionNone      Partition = ""
	PartitionSystem    Partition = "system"
	PartitionVendor    Partition = "vendor"
	PartitionProduct   Partition = "product"
	PartitionSystemExt Partition = "system_ext"
	PartitionOdm       Partition = "odm"
)

// Class is the emission-bucket module class.
type Class string

const (
	ClassSharedLibraries Class = "SHARED_LIBRARIES"
	ClassAPEX            Class = "APEX"
	ClassApps            Class = "APPS"
	ClassJavaLibraries   Class = "JAVA_LIBRARIES"
	ClassETC             Class = "ETC"
	ClassExecutables     Class = "EXECUTABLES"
	ClassRFSA            Class = "RFSA"
)

// ABI is the multilib bucket for SHARED_LIBRARIES.
type ABI string

const (
	ABIBoth ABI = "both"
	ABI32   ABI = "32"
	ABI64   ABI = "64"
)

// ELFTarget is one of the four recognized EXECUTABLES target triples;
// the zero value means "not ELF" (a shell script).
type ELFTarget string

const (
	ELFTargetNone     ELFTarget = ""
	ELFTargetArm      ELFTarget = "android_arm"
	ELFTargetArm64    ELFTarget = "android_arm64"
	ELFTargetX86      ELFTarget = "android_x86"
	ELFTargetX86_64   ELFTarget = "android_x86_64"
)

// Classified is one packaged record annotated with its emission-bucket
// coordinates.
type Classified struct {
	Record    manifest.Record
	Partition Partition
	Class     Class
	PrivApp   bool // APPS under a priv-app/ directory
	ELFTarget ELFTarget
}

// partitionPrefixes is the prefix table ClassifyPartition matches
// against. The longest matching prefix wins, so the order of the entries
// does not affect the result.
var partitionPrefixes = []struct {
	prefix    string
	partition Partition
}{
	{"product/", PartitionProduct},
	{"system/product/", PartitionProduct},
	{"system_ext/", PartitionSystemExt},
	{"system/system_ext/", PartitionSystemExt},
	{"odm/", PartitionOdm},
	{"vendor/odm/", PartitionOdm},
	{"system/vendor/odm/", PartitionOdm},
	{"vendor/", PartitionVendor},
	{"vendor_dlkm/", PartitionVendor},
	{"system/vendor/", PartitionVendor},
	{"system/", PartitionSystem},
	{"recovery/", PartitionSystem},
	{"vendor_ramdisk/", PartitionSystem},
}

// ClassifyPartition determines the partition bucket for dstPath (spec
// §4.H). A non-matching record defaults to "system".
func ClassifyPartition(dstPath string) Partition {
	best := PartitionSystem
	bestLen := -1
	for _, p := range partitionPrefixes {
		if strings.HasPrefix(dstPath, p.prefix) && len(p.prefix) > bestLen {
			best = p.partition
			bestLen = len(p.prefix)
		}
	}
	return best
}

// ELFProber abstracts the objdump call used to determine an
// EXECUTABLES record's target triple, so tests need not shell out.
type ELFProber interface {
	ObjdumpFileFormat(ctx context.Context, path string) (string, error)
}

// Classify buckets rec into its (partition, class[, priv-app][, ABI
// target]) coordinates. resolvedTreePath is a readable path to the
// blob's content (the extract-blobs driver passes its staged output
// copy), used only to probe ELF-ness for bin/ entries; it may be empty
// if unresolved.
func Classify(ctx context.Context, rec manifest.Record, resolvedTreePath string, prober ELFProber) Classified {
	c := Classified{
		Record:    rec,
		Partition: ClassifyPartition(rec.DstPath),
	}

	ext := strings.ToLower(path.Ext(rec.DstPath))
	dir := path.Dir(rec.DstPath)

	switch {
	case ext == ".apex":
		c.Class = ClassAPEX
	case ext == ".apk":
		c.Class = ClassApps
		c.PrivApp = strings.Contains(dir, "priv-app/") || strings.HasSuffix(dir, "priv-app")
	case ext == ".jar":
		c.Class = ClassJavaLibraries
	case underRfsa(dir):
		c.Class = ClassRFSA
	case underLib(dir):
		c.Class = ClassSharedLibraries
	case underBin(dir):
		if isELF(ctx, resolvedTreePath, prober) {
			c.Class = ClassExecutables
			c.ELFTarget = elfTargetFromObjdump(objdumpOutput(ctx, resolvedTreePath, prober))
		} else {
			c.Class = ClassExecutables
			c.ELFTarget = ELFTargetNone
		}
	case underEtc(dir):
		c.Class = ClassETC
	default:
		c.Class = ClassETC
	}

	return c
}

func underRfsa(dir string) bool {
	d := "/" + dir + "/"
	return strings.Contains(d, "/lib/rfsa/") || strings.Contains(d, "/lib64/rfsa/")
}

func underLib(dir string) bool {
	return hasSegment(dir, "lib") || hasSegment(dir, "lib64")
}

func underBin(dir string) bool {
	return hasSegment(dir, "bin")
}

func underEtc(dir string) bool {
	return hasSegment(dir, "etc")
}

// hasSegment reports whether dir contains segment as one of its '/'-
// separated path components.
func hasSegment(dir, segment string) bool {
	for _, part := range strings.Split(dir, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func objdumpOutput(ctx context.Context, treePath string, prober ELFProber) string {
	if treePath == "" || prober == nil {
		return ""
	}
	out, err := prober.ObjdumpFileFormat(ctx, treePath)
	if err != nil {
		return ""
	}
	return out
}

func isELF(ctx context.Context, treePath string, prober ELFProber) bool {
	return elfTargetFromObjdump(objdumpOutput(ctx, treePath, prober)) != ELFTargetNone
}

// elfTargetFromObjdump maps objdump -f's "file format" line to one of
// the four recognized target triples; anything else is treated as a
// shell script (ELFTargetNone).
func elfTargetFromObjdump(output string) ELFTarget {
	switch {
	case strings.Contains(output, "elf64-littleaarch64"):
		return ELFTargetArm64
	case strings.Contains(output, "elf32-littlearm"):
		return ELFTargetArm
	case strings.Contains(output, "elf64-x86-64"):
		return ELFTargetX86_64
	case strings.Contains(output, "elf32-i386"):
		return ELFTargetX86
	default:
		return ELFTargetNone
	}
}
