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

package image

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/tools"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

func TestProbeSparseMagic(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "system.img", append([]byte{0x3a, 0xff, 0x26, 0xed}, make([]byte, 100)...), 0644)
	kind, err := Probe(fs, "system.img")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindSparse {
		t.Errorf("got %v, want KindSparse", kind)
	}
}

func TestProbeBrotliByName(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "vendor.new.dat.br", []byte("x"), 0644)
	kind, err := Probe(fs, "vendor.new.dat.br")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindBrotliBlockPatch {
		t.Errorf("got %v, want KindBrotliBlockPatch", kind)
	}
}

func TestProbePayloadByName(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "payload.bin", []byte("x"), 0644)
	kind, err := Probe(fs, "payload.bin")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindABPayload {
		t.Errorf("got %v, want KindABPayload", kind)
	}
}

func TestProbeCanonicalDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("tree/output", 0755)
	kind, err := Probe(fs, "tree")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if kind != KindCanonicalDir {
		t.Errorf("got %v, want KindCanonicalDir", kind)
	}
}

type extractRunner struct {
	calls []string
}

func (r *extractRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, tool)
	return nil, nil, nil
}

func TestExtractABPayloadFansOutAllPartitions(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "payload.bin", []byte("x"), 0644)

	r := &extractRunner{}
	loc := tools.New("/opt/toolchain", tools.ELFRewriterV3)
	a := tools.NewAdapters(loc, r)
	ex := NewExtractor(fs, a, nil)

	if err := ex.Extract(context.Background(), "payload.bin", "out"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(r.calls) != len(Partitions) {
		t.Fatalf("got %d calls, want %d", len(r.calls), len(Partitions))
	}
}

// superUnpackRunner fakes lpunpack by writing slot-suffixed partition
// images into the destination directory, the way a real A/B device's
// super.img unpacks.
type superUnpackRunner struct{}

func (superUnpackRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	if strings.HasSuffix(tool, "lpunpack") && len(args) == 2 {
		outDir := args[1]
		afero.WriteFile(unpackFs, path.Join(outDir, "system_a.img"), []byte("system-a"), 0644)
		afero.WriteFile(unpackFs, path.Join(outDir, "system_b.img"), []byte("system-b"), 0644)
		afero.WriteFile(unpackFs, path.Join(outDir, "vendor_b.img"), []byte("vendor-b"), 0644)
	}
	return nil, nil, nil
}

// unpackFs is written to by superUnpackRunner.Run, which has no
// receiver access to the Extractor's filesystem.
var unpackFs afero.Fs

func TestExtractSuperPrefersSlotA(t *testing.T) {
	fs := afero.NewMemMapFs()
	unpackFs = fs
	afero.WriteFile(fs, "super.img", []byte("super-bytes"), 0644)

	loc := tools.New("/opt/toolchain", tools.ELFRewriterV3)
	a := tools.NewAdapters(loc, superUnpackRunner{})
	ex := NewExtractor(fs, a, nil)

	if err := ex.Extract(context.Background(), "super.img", "out"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got, err := afero.ReadFile(fs, "out/system.img")
	if err != nil {
		t.Fatalf("reading out/system.img: %v", err)
	}
	if string(got) != "system-a" {
		t.Errorf("out/system.img = %q, want slot-A content", got)
	}
	if ok, _ := afero.Exists(fs, "out/system_a.img"); ok {
		t.Error("out/system_a.img should have been renamed away")
	}

	got, err = afero.ReadFile(fs, "out/vendor.img")
	if err != nil {
		t.Fatalf("reading out/vendor.img: %v", err)
	}
	if string(got) != "vendor-b" {
		t.Errorf("out/vendor.img = %q, want the only available slot (B)", got)
	}
}

type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	return []byte("...Attempt to read block from filesystem resulted in short read while reading symlink..."), nil, nil
}

func TestExtractExt4ShortReadSymlinkIsFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	head := make([]byte, 0x440)
	head[0x438] = 0x53
	head[0x439] = 0xef
	afero.WriteFile(fs, "system.img", head, 0644)

	loc := tools.New("/opt/toolchain", tools.ELFRewriterV3)
	a := tools.NewAdapters(loc, failingRunner{})
	ex := NewExtractor(fs, a, nil)

	err := ex.Extract(context.Background(), "system.img", "out")
	if err == nil {
		t.Fatal("expected error")
	}
	var it *xerr.IncompatibleTool
	if !errors.As(err, &it) {
		t.Fatalf("expected *xerr.IncompatibleTool, got %T: %v", err, err)
	}
}
