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
	"context"
	"testing"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
)

func rec(t *testing.T, line string) manifest.Record {
	t.Helper()
	recs, err := manifest.Parse(line, "", false)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return recs[0]
}

func TestClassifyPartitionLongestMatch(t *testing.T) {
	cases := map[string]Partition{
		"vendor/lib/libx.so":          PartitionVendor,
		"system/vendor/lib/libx.so":   PartitionVendor,
		"system/vendor/odm/etc/a.xml": PartitionOdm,
		"product/app/Foo/Foo.apk":     PartitionProduct,
		"system/product/app/Foo.apk":  PartitionProduct,
		"recovery/bin/sh":             PartitionSystem,
		"random/path/file":            PartitionSystem,
	}
	for path, want := range cases {
		if got := ClassifyPartition(path); got != want {
			t.Errorf("ClassifyPartition(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestClassifyByExtensionAndDir(t *testing.T) {
	cases := []struct {
		line  string
		class Class
	}{
		{"system/priv-app/Foo/Foo.apex", ClassAPEX},
		{"system/priv-app/Foo/Foo.apk", ClassApps},
		{"system/framework/foo.jar", ClassJavaLibraries},
		{"vendor/lib/rfsa/adsp.so", ClassRFSA},
		{"vendor/lib64/rfsa/adsp.so", ClassRFSA},
		{"vendor/lib/libx.so", ClassSharedLibraries},
		{"vendor/lib64/libx.so", ClassSharedLibraries},
		{"vendor/etc/foo.xml", ClassETC},
	}
	for _, c := range cases {
		r := rec(t, c.line)
		got := Classify(context.Background(), r, "", nil)
		if got.Class != c.class {
			t.Errorf("Classify(%q).Class = %q, want %q", c.line, got.Class, c.class)
		}
	}
}

func TestClassifyPrivApp(t *testing.T) {
	r := rec(t, "system/priv-app/Foo/Foo.apk")
	got := Classify(context.Background(), r, "", nil)
	if !got.PrivApp {
		t.Errorf("expected PrivApp=true for priv-app/ path")
	}
}

func TestComputeABIBucketsBoth(t *testing.T) {
	r32 := Classify(context.Background(), rec(t, "vendor/lib/libx.so"), "", nil)
	r64 := Classify(context.Background(), rec(t, "vendor/lib64/libx.so"), "", nil)
	buckets := ComputeABIBuckets([]Classified{r32, r64})
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(buckets))
	}
	if buckets[0].ABI != ABIBoth {
		t.Errorf("ABI = %q, want both", buckets[0].ABI)
	}
}

func TestComputeABIBuckets32Only(t *testing.T) {
	r32 := Classify(context.Background(), rec(t, "vendor/lib/liby.so"), "", nil)
	buckets := ComputeABIBuckets([]Classified{r32})
	if len(buckets) != 1 || buckets[0].ABI != ABI32 {
		t.Fatalf("unexpected buckets: %+v", buckets)
	}
}
