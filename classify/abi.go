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

package classify

import (
	"path"
	"strings"
)

// ABIBucket is the per-library ABI classification emitted by
// ComputeABIBuckets: the set-theoretic difference of a library's 32-bit
// and 64-bit locations within one partition. Every SHARED_LIBRARIES
// record under a given partition is assigned to exactly one ABI
// bucket.
type ABIBucket struct {
	Partition Partition
	Name      string // library basename, e.g. "libfoo.so"
	ABI       ABI
	Records32 []Classified
	Records64 []Classified
}

// ComputeABIBuckets groups the SHARED_LIBRARIES subset of classified by
// (partition, basename) and assigns each group its ABI bucket. RFSA
// records are excluded, since RFSA is not split by ABI.
func ComputeABIBuckets(classified []Classified) []ABIBucket {
	type key struct {
		partition Partition
		name      string
	}
	groups := map[key]*ABIBucket{}
	var order []key

	for _, c := range classified {
		if c.Class != ClassSharedLibraries {
			continue
		}
		k := key{c.Partition, path.Base(c.Record.DstPath)}
		b, ok := groups[k]
		if !ok {
			b = &ABIBucket{Partition: c.Partition, Name: k.name}
			groups[k] = b
			order = append(order, k)
		}
		if is64(c.Record.DstPath) {
			b.Records64 = append(b.Records64, c)
		} else {
			b.Records32 = append(b.Records32, c)
		}
	}

	out := make([]ABIBucket, 0, len(order))
	for _, k := range order {
		b := groups[k]
		switch {
		case len(b.Records32) > 0 && len(b.Records64) > 0:
			b.ABI = ABIBoth
		case len(b.Records64) > 0:
			b.ABI = ABI64
		default:
			b.ABI = ABI32
		}
		out = append(out, *b)
	}
	return out
}

// is64 reports whether dir contains a lib64 path segment.
func is64(dstPath string) bool {
	dir := path.Dir(dstPath)
	for _, part := range strings.Split(dir, "/") {
		if part == "lib64" {
			return true
		}
	}
	return false
}
