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

package tools

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

type fakeRunner struct {
	stdout   []byte
	stderr   []byte
	exitCode int
	fail     bool
	gotTool  string
	gotArgs  []string
}

func (f *fakeRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	f.gotTool = tool
	f.gotArgs = args
	if f.fail {
		return f.stdout, f.stderr, &exec.ExitError{}
	}
	return f.stdout, f.stderr, nil
}

func TestRunMapsNonzeroExitToToolFailure(t *testing.T) {
	r := &fakeRunner{fail: true, stderr: []byte("boom")}
	_, err := run(context.Background(), r, "some-tool", "a", "b")
	if err == nil {
		t.Fatalf("expected error")
	}
	var tf *xerr.ToolFailure
	if !errors.As(err, &tf) {
		t.Fatalf("expected *xerr.ToolFailure, got %T: %v", err, err)
	}
	if tf.Tool != "some-tool" || tf.Stderr != "boom" {
		t.Errorf("unexpected ToolFailure: %+v", tf)
	}
}

func TestSHA1Bytes(t *testing.T) {
	got := SHA1Bytes([]byte("hello"))
	want := "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	if got != want {
		t.Errorf("SHA1Bytes = %q, want %q", got, want)
	}
}

func TestLocatorOverrideTakesPrecedenceOverDefault(t *testing.T) {
	loc := New("/opt/toolchain", ELFRewriterV3)
	if got := loc.Path("simg2img", "bin/simg2img"); got != "/opt/toolchain/bin/simg2img" {
		t.Errorf("Path before override = %q", got)
	}
	loc.Override("simg2img", "/recipe/tools/simg2img")
	if got := loc.Path("simg2img", "bin/simg2img"); got != "/recipe/tools/simg2img" {
		t.Errorf("Path after override = %q, want the overridden path", got)
	}
}

func TestAdaptersSparseToRawInvokesResolvedPath(t *testing.T) {
	r := &fakeRunner{}
	loc := New("/opt/toolchain", ELFRewriterV3)
	a := NewAdapters(loc, r)
	if err := a.SparseToRaw(context.Background(), "in.img", "out.img"); err != nil {
		t.Fatalf("SparseToRaw: %v", err)
	}
	if !strings.HasSuffix(r.gotTool, "simg2img") {
		t.Errorf("resolved tool = %q, want suffix simg2img", r.gotTool)
	}
}
