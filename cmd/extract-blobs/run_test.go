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

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/tools"
)

// noopRunner is a Runner that never needs to be invoked by the fixtures
// below: the directory source is already canonical and neither test
// blob triggers an oat2dex/ELF-probe subprocess.
type noopRunner struct{ calls []string }

func (r *noopRunner) Run(ctx context.Context, tool string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, tool)
	return nil, nil, nil
}

func baseOpts() options {
	return options{
		listFile:  "list.txt",
		source:    "tree",
		device:    "sample",
		output:    "out",
		toolchain: "/opt/toolchain",
		checkELF:  true,
	}
}

func seedCanonicalTree(t *testing.T, fs afero.Fs) {
	t.Helper()
	if err := fs.MkdirAll("tree/output", 0755); err != nil {
		t.Fatalf("seeding canonical marker: %v", err)
	}
	if err := afero.WriteFile(fs, "tree/vendor/etc/sample.conf", []byte("key=value\n"), 0644); err != nil {
		t.Fatalf("seeding etc blob: %v", err)
	}
	if err := afero.WriteFile(fs, "tree/vendor/app/SampleApp/SampleApp.apk", []byte("apk-bytes"), 0644); err != nil {
		t.Fatalf("seeding apk blob: %v", err)
	}
}

func TestRunEmitsCopyFileLineAndPrebuiltStanza(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCanonicalTree(t, fs)
	if err := afero.WriteFile(fs, "list.txt", []byte(
		"vendor/etc/sample.conf\n"+
			"vendor/app/SampleApp/SampleApp.apk\n",
	), 0644); err != nil {
		t.Fatalf("writing list file: %v", err)
	}

	var stdout, stderr bytes.Buffer
	r := &noopRunner{}
	if err := run(context.Background(), baseOpts(), fs, r, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	productMk, err := afero.ReadFile(fs, "out/proprietary-files.mk")
	if err != nil {
		t.Fatalf("reading proprietary-files.mk: %v", err)
	}
	if !strings.Contains(string(productMk), "PRODUCT_COPY_FILES += out/proprietary/vendor/etc/sample.conf") {
		t.Errorf("proprietary-files.mk missing copy-file line for the non-packaged record:\n%s", productMk)
	}
	if !strings.Contains(string(productMk), "ifeq ($(TARGET_DEVICE),sample)") {
		t.Errorf("proprietary-files.mk missing device guard:\n%s", productMk)
	}

	bp, err := afero.ReadFile(fs, "out/Android.bp")
	if err != nil {
		t.Fatalf("reading Android.bp: %v", err)
	}
	if !strings.Contains(string(bp), "android_app_import {") {
		t.Errorf("Android.bp missing android_app_import stanza for the packaged apk:\n%s", bp)
	}
	if !strings.Contains(string(bp), "\"vendor/sample\"") {
		t.Errorf("Android.bp missing vendor namespace import:\n%s", bp)
	}

	if ok, _ := afero.Exists(fs, "out/proprietary/vendor/app/SampleApp/SampleApp.apk"); !ok {
		t.Errorf("staged apk copy missing")
	}
	if ok, _ := afero.Exists(fs, "out/proprietary/vendor/etc/sample.conf"); !ok {
		t.Errorf("staged etc copy missing")
	}

	if len(r.calls) != 0 {
		t.Errorf("expected no subprocess calls for this fixture, got %v", r.calls)
	}

	if !strings.Contains(stdout.String(), "parsed=2") {
		t.Errorf("stdout summary missing parsed=2: %q", stdout.String())
	}
}

func TestRunMissingDeviceIsUsageError(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCanonicalTree(t, fs)
	afero.WriteFile(fs, "list.txt", []byte("vendor/etc/sample.conf\n"), 0644)

	opts := baseOpts()
	opts.device = ""

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), opts, fs, &noopRunner{}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected a usage error for a missing --device, got nil")
	}
}

func TestRunSkipsUnresolvableRecordAndContinues(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCanonicalTree(t, fs)
	if err := afero.WriteFile(fs, "list.txt", []byte(
		"vendor/etc/missing.conf\n"+
			"vendor/etc/sample.conf\n",
	), 0644); err != nil {
		t.Fatalf("writing list file: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), baseOpts(), fs, &noopRunner{}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !strings.Contains(stdout.String(), "skipped=1") {
		t.Errorf("stdout summary missing skipped=1: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "source not found") {
		t.Errorf("stderr missing source-not-found warning: %q", stderr.String())
	}
}

func TestRunKangModePrintsRegeneratedManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedCanonicalTree(t, fs)
	afero.WriteFile(fs, "list.txt", []byte("vendor/etc/sample.conf\n"), 0644)

	opts := baseOpts()
	opts.kang = true

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), opts, fs, &noopRunner{}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !strings.Contains(stdout.String(), "vendor/etc/sample.conf") {
		t.Errorf("kang output missing the re-hashed record line: %q", stdout.String())
	}
}

func TestParseELFRewriterVersion(t *testing.T) {
	cases := map[string]tools.ELFRewriterVersion{
		"v1": tools.ELFRewriterV1,
		"v2": tools.ELFRewriterV2,
		"v3": tools.ELFRewriterV3,
	}
	for in, want := range cases {
		got, err := parseELFRewriterVersion(in)
		if err != nil {
			t.Errorf("parseELFRewriterVersion(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseELFRewriterVersion(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseELFRewriterVersion("v9"); err == nil {
		t.Error("parseELFRewriterVersion(\"v9\") should fail")
	}
}

func TestToolOverridesSet(t *testing.T) {
	o := toolOverrides{}
	if err := o.Set("simg2img=/recipe/tools/simg2img"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if o["simg2img"] != "/recipe/tools/simg2img" {
		t.Errorf("o[simg2img] = %q", o["simg2img"])
	}
	for _, bad := range []string{"noequals", "=/path", "name="} {
		if err := o.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}
