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

package pin

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
)

func parseOne(t *testing.T, line string) manifest.Record {
	t.Helper()
	recs, err := manifest.Parse(line, "", false)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return recs[0]
}

func TestCheckReuseAsIs(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|deadbeef")
	got, err := Check(rec, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got != Miss {
		t.Fatalf("expected Miss for non-matching content, got %v", got)
	}

	rec2 := parseOne(t, "vendor/lib/libx.so|aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d")
	got2, err := Check(rec2, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got2 != ReuseAsIs {
		t.Fatalf("expected ReuseAsIs, got %v", got2)
	}
}

func TestCheckReusePostFixupAndRerun(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d|7c211433f02071597741e6ff5a8ea34789abbf43")

	// Matches FixupHash directly.
	got, err := Check(rec, strings.NewReader("world"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got != ReusePostFixup {
		t.Fatalf("expected ReusePostFixup, got %v", got)
	}

	// Matches PinnedHash only, with a differing FixupHash declared.
	got2, err := Check(rec, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got2 != RerunFixup {
		t.Fatalf("expected RerunFixup, got %v", got2)
	}
}

func TestCheckMissOnNilReader(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|deadbeef")
	got, err := Check(rec, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got != Miss {
		t.Fatalf("expected Miss, got %v", got)
	}
}

func TestFindExistingPrefersOutputThenStaged(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "staged/libx.so", []byte("staged"), 0644)

	f, err := FindExisting(fs, "out/libx.so", "staged/libx.so")
	if err != nil {
		t.Fatalf("FindExisting: %v", err)
	}
	if f == nil {
		t.Fatal("expected a file from the staged fallback")
	}
	defer f.Close()

	afero.WriteFile(fs, "out/libx.so", []byte("output"), 0644)
	f2, err := FindExisting(fs, "out/libx.so", "staged/libx.so")
	if err != nil {
		t.Fatalf("FindExisting: %v", err)
	}
	defer f2.Close()
	if f2.Name() != "out/libx.so" {
		t.Errorf("expected output dir copy preferred, got %q", f2.Name())
	}
}

func TestFindExistingNeitherExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := FindExisting(fs, "out/libx.so", "staged/libx.so")
	if err != nil {
		t.Fatalf("FindExisting: %v", err)
	}
	if f != nil {
		t.Fatalf("expected nil file, got %v", f)
	}
}

func TestVerifyPostFixupPrefersFixupHash(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|aaaa|bbbb")
	v := VerifyPostFixup(rec, "bbbb")
	if !v.Checked || !v.Matched {
		t.Errorf("expected matched verdict, got %+v", v)
	}

	v2 := VerifyPostFixup(rec, "cccc")
	if !v2.Checked || v2.Matched {
		t.Errorf("expected mismatch verdict, got %+v", v2)
	}
}

func TestVerifyPostFixupFallsBackToPinnedHash(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|aaaa")
	v := VerifyPostFixup(rec, "aaaa")
	if !v.Checked || !v.Matched {
		t.Errorf("expected matched verdict, got %+v", v)
	}
}

func TestPinnedWithoutFixupHash(t *testing.T) {
	rec := parseOne(t, "vendor/lib/libx.so|aaaa")
	if !PinnedWithoutFixupHash(rec) {
		t.Error("expected PinnedWithoutFixupHash true")
	}
	rec2 := parseOne(t, "vendor/lib/libx.so|aaaa|bbbb")
	if PinnedWithoutFixupHash(rec2) {
		t.Error("expected PinnedWithoutFixupHash false")
	}
}

func TestKang(t *testing.T) {
	rec := parseOne(t, "vendor/lib/liby.so;FIX_SONAME")
	got := Kang(rec, "aaaa", "bbbb")
	want := "vendor/lib/liby.so;FIX_SONAME|aaaa|bbbb"
	if got != want {
		t.Errorf("Kang = %q, want %q", got, want)
	}
}

func TestDiffReportsChangedAndNewOnly(t *testing.T) {
	old := []manifest.Record{
		parseOne(t, "vendor/lib/liba.so|aaaa"),
		parseOne(t, "vendor/lib/libb.so|bbbb"),
	}
	fresh := []manifest.Record{
		parseOne(t, "vendor/lib/liba.so|aaaa"),   // unchanged
		parseOne(t, "vendor/lib/libb.so|cccc"),   // hash churned
		parseOne(t, "vendor/lib/libc.so|dddd"),   // new
	}

	diff := Diff(old, fresh)
	if len(diff) != 2 {
		t.Fatalf("got %d diff lines, want 2: %v", len(diff), diff)
	}
	if diff[0] != "vendor/lib/libb.so|cccc" {
		t.Errorf("diff[0] = %q", diff[0])
	}
	if diff[1] != "vendor/lib/libc.so|dddd" {
		t.Errorf("diff[1] = %q", diff[1])
	}
}
