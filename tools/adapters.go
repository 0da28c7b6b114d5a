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
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os/exec"

	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// Adapters is the typed facade over every external tool the pipeline
// shells out to. It is injected everywhere a component needs to shell
// out, so tests substitute a fake Runner instead of forking real
// binaries.
type Adapters struct {
	loc *Locator
	run Runner
}

// NewAdapters builds an Adapters bound to loc's resolved paths, using
// runner for subprocess execution (pass ExecRunner in production).
func NewAdapters(loc *Locator, runner Runner) *Adapters {
	return &Adapters{loc: loc, run: runner}
}

// SparseToRaw expands a sparse Android image at in into a raw image at
// out.
func (a *Adapters) SparseToRaw(ctx context.Context, in, out string) error {
	_, err := run(ctx, a.run, a.loc.path("simg2img", "bin/simg2img"), in, out)
	return err
}

// UnpackSuper unpacks a dynamic-partition super image at in into
// outDir, one raw image per logical partition.
func (a *Adapters) UnpackSuper(ctx context.Context, in, outDir string) error {
	_, err := run(ctx, a.run, a.loc.path("lpunpack", "bin/lpunpack"), in, outDir)
	return err
}

// ExtractOTAPayload extracts the named partitions from payload.bin at
// in into outDir.
func (a *Adapters) ExtractOTAPayload(ctx context.Context, in, outDir string, partitions []string) error {
	args := append([]string{"--partitions", joinComma(partitions), in, outDir})
	_, err := run(ctx, a.run, a.loc.path("ota_extractor", "bin/ota_extractor"), args...)
	return err
}

// ExtractEROFS extracts an EROFS image at in into outDir via fsck.
func (a *Adapters) ExtractEROFS(ctx context.Context, in, outDir string) error {
	_, err := run(ctx, a.run, a.loc.path("fsck.erofs", "bin/fsck.erofs"), "--extract="+outDir, in)
	return err
}

// DebugfsRdump dumps entry (a path within an ext4 image) from in into
// outDir using debugfs rdump. The combined stdout+stderr text is
// returned so the caller can scan for the short-read-on-symlink marker
// that must become *xerr.IncompatibleTool.
func (a *Adapters) DebugfsRdump(ctx context.Context, in, entry, outDir string) (string, error) {
	tool := a.loc.path("debugfs", "bin/debugfs")
	args := []string{"-R", "rdump " + entry + " " + outDir, in}
	stdout, stderr, err := a.run.Run(ctx, tool, args...)
	combined := string(stdout) + string(stderr)
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return combined, &xerr.ToolFailure{Tool: tool, Args: args, Stderr: string(stderr), Code: code}
	}
	return combined, nil
}

// BrotliDecode decompresses a Brotli-compressed .br file at in into
// out.
func (a *Adapters) BrotliDecode(ctx context.Context, in, out string) error {
	_, err := run(ctx, a.run, a.loc.path("brotli", "bin/brotli"), "-d", "-f", "-o", out, in)
	return err
}

// ApplyTransferList applies a block-based transfer list to a new.dat
// file, producing a raw partition image.
func (a *Adapters) ApplyTransferList(ctx context.Context, transferList, newDat, outImg string) error {
	_, err := run(ctx, a.run, a.loc.path("sdat2img", "bin/sdat2img"), transferList, newDat, outImg)
	return err
}

// Unzip extracts archive into outDir.
func (a *Adapters) Unzip(ctx context.Context, archive, outDir string) error {
	_, err := run(ctx, a.run, a.loc.path("unzip", "bin/unzip"), "-o", "-q", archive, "-d", outDir)
	return err
}

// SHA1File hashes the contents of r and returns the lowercase hex
// digest. This is computed in-process rather than shelled out, since
// it is pure stdlib and every other adapter already pays subprocess
// overhead only for concerns stdlib cannot express.
func SHA1File(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA1Bytes is SHA1File for an in-memory buffer.
func SHA1Bytes(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// RewriteSoname invokes the ELF SONAME rewriter (selectable major
// version) to set path's SONAME to soname.
func (a *Adapters) RewriteSoname(ctx context.Context, path, soname string, ver ELFRewriterVersion) error {
	_, err := run(ctx, a.run, a.loc.elfRewriterPath(ver), "--soname", soname, path)
	return err
}

// ObjdumpFileFormat returns objdump's file-format string for path, used
// by the classifier to map an EXECUTABLES record to an ELF target
// triple.
func (a *Adapters) ObjdumpFileFormat(ctx context.Context, path string) (string, error) {
	stdout, err := run(ctx, a.run, a.loc.path("objdump", "bin/objdump"), "-f", path)
	return string(stdout), err
}

// BaksmaliDeodex disassembles an odex/oat file at in into smali
// sources under outDir, against the given boot-classpath entries.
func (a *Adapters) BaksmaliDeodex(ctx context.Context, in, outDir string, bootClasspath []string) error {
	args := []string{"deodex", "-o", outDir}
	for _, bcp := range bootClasspath {
		args = append(args, "-b", bcp)
	}
	args = append(args, in)
	_, err := run(ctx, a.run, a.loc.path("baksmali", "bin/baksmali"), args...)
	return err
}

// SmaliAssemble reassembles smali sources under in into a classes.dex
// at out.
func (a *Adapters) SmaliAssemble(ctx context.Context, in, out string) error {
	_, err := run(ctx, a.run, a.loc.path("smali", "bin/smali"), "assemble", "-o", out, in)
	return err
}

// VdexExtract extracts the dex files embedded in a .vdex companion file
// at in into outDir.
func (a *Adapters) VdexExtract(ctx context.Context, in, outDir string) error {
	_, err := run(ctx, a.run, a.loc.path("vdexExtractor", "bin/vdexExtractor"), "-o", outDir, in)
	return err
}

// CdexToDex converts a compact dex file at in to a standard dex file at
// out.
func (a *Adapters) CdexToDex(ctx context.Context, in, out string) error {
	_, err := run(ctx, a.run, a.loc.path("compact_dex_converter", "bin/compact_dex_converter"), in, out)
	return err
}

// CarrierSettings wraps the one-shot carrier-settings protobuf
// conversion subprocess: out of scope beyond this fixed CLI contract.
func (a *Adapters) CarrierSettings(ctx context.Context, srcDir, outDir string) error {
	_, err := run(ctx, a.run, a.loc.path("carriersettings-extract", "bin/carriersettings-extract"), srcDir, outDir)
	return err
}

func joinComma(items []string) string {
	var buf bytes.Buffer
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(it)
	}
	return buf.String()
}
