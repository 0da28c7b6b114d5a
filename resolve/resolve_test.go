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

package resolve

import (
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/manifest"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// symlinkFs layers a small set of named symlinks over an afero.Fs,
// since afero.MemMapFs implements neither Lstater nor
// ReadlinkIfPossible. Open on a symlink path fails exactly as a real
// dangling symlink would (the kernel follows it and ENOENTs), so
// exercising the fallback requires going through LstatIfPossible /
// ReadlinkIfPossible instead of a plain read.
type symlinkFs struct {
	afero.Fs
	links map[string]string // path -> raw (possibly dangling) link target
}

func (f *symlinkFs) Open(name string) (afero.File, error) {
	if _, ok := f.links[name]; ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return f.Fs.Open(name)
}

func (f *symlinkFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	if _, ok := f.links[name]; ok {
		return symlinkInfo(name), true, nil
	}
	return nil, false, os.ErrNotExist
}

func (f *symlinkFs) ReadlinkIfPossible(name string) (string, error) {
	if target, ok := f.links[name]; ok {
		return target, nil
	}
	return "", os.ErrInvalid
}

type symlinkInfo string

func (s symlinkInfo) Name() string       { return string(s) }
func (s symlinkInfo) Size() int64        { return 0 }
func (s symlinkInfo) Mode() fs.FileMode  { return fs.ModeSymlink }
func (s symlinkInfo) ModTime() time.Time { return time.Time{} }
func (s symlinkInfo) IsDir() bool        { return false }
func (s symlinkInfo) Sys() interface{}   { return nil }

func newMemTree(files map[string]string) *Tree {
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		_ = afero.WriteFile(fsys, path, []byte(content), 0644)
	}
	return NewTree(fsys)
}

func TestResolveBarePathUnderSystem(t *testing.T) {
	tree := newMemTree(map[string]string{
		"system/app/Foo/Foo.apk": "apk-bytes",
	})
	rec, err := manifest.Parse("app/Foo/Foo.apk", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tree.Resolve(rec[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "system/app/Foo/Foo.apk" {
		t.Errorf("Resolve = %q, want system/app/Foo/Foo.apk", got)
	}
}

func TestResolveAlreadyRooted(t *testing.T) {
	tree := newMemTree(map[string]string{
		"vendor/lib/libx.so": "so-bytes",
	})
	rec, err := manifest.Parse("vendor/lib/libx.so", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tree.Resolve(rec[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "vendor/lib/libx.so" {
		t.Errorf("Resolve = %q, want vendor/lib/libx.so", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	tree := newMemTree(map[string]string{})
	rec, err := manifest.Parse("vendor/lib/missing.so", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = tree.Resolve(rec[0])
	if err == nil {
		t.Fatalf("expected SourceNotFound")
	}
	if _, ok := err.(*xerr.SourceNotFound); !ok {
		t.Fatalf("expected *xerr.SourceNotFound, got %T", err)
	}
}

func TestResolveOdmRedirect(t *testing.T) {
	tree := newMemTree(map[string]string{
		"vendor/odm/etc/thing.xml": "xml-bytes",
	})
	rec, err := manifest.Parse("system/odm/etc/thing.xml", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tree.Resolve(rec[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "vendor/odm/etc/thing.xml" {
		t.Errorf("Resolve = %q, want vendor/odm/etc/thing.xml", got)
	}
}

func TestResolveTrySrcFirst(t *testing.T) {
	tree := newMemTree(map[string]string{
		"system/app/Foo/Foo.apk": "apk-bytes",
	})
	rec, err := manifest.Parse("app/Foo/Foo.apk:app/Bar/Bar.apk;TRYSRCFIRST", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tree.Resolve(rec[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "system/app/Foo/Foo.apk" {
		t.Errorf("Resolve = %q, want system/app/Foo/Foo.apk (src_path tried first)", got)
	}
}

func TestResolveDanglingSymlinkFallsBackToRelativeSibling(t *testing.T) {
	base := afero.NewMemMapFs()
	_ = afero.WriteFile(base, "system/vendor/lib/libfoo.real.so", []byte("so-bytes"), 0644)
	fsys := &symlinkFs{
		Fs: base,
		links: map[string]string{
			"vendor/lib/libfoo.so": "/vendor/lib/libfoo.real.so",
		},
	}
	tree := NewTree(fsys)

	rec, err := manifest.Parse("vendor/lib/libfoo.so", "", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := tree.Resolve(rec[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "system/vendor/lib/libfoo.real.so" {
		t.Errorf("Resolve = %q, want system/vendor/lib/libfoo.real.so", got)
	}
}

func TestCopyToOutputPreservesContent(t *testing.T) {
	treeFS := afero.NewMemMapFs()
	_ = afero.WriteFile(treeFS, "vendor/lib/libx.so", []byte("so-bytes"), 0755)
	outFS := afero.NewMemMapFs()

	if err := CopyToOutput(treeFS, outFS, "vendor/lib/libx.so", "proprietary/vendor/lib/libx.so"); err != nil {
		t.Fatalf("CopyToOutput: %v", err)
	}
	got, err := afero.ReadFile(outFS, "proprietary/vendor/lib/libx.so")
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "so-bytes" {
		t.Errorf("copied content = %q, want so-bytes", got)
	}
}
