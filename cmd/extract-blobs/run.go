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
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/acquire"
	"github.com/LineageOS/android-tools-extract-utils/classify"
	"github.com/LineageOS/android-tools-extract-utils/emit"
	"github.com/LineageOS/android-tools-extract-utils/fixup"
	"github.com/LineageOS/android-tools-extract-utils/hooks"
	"github.com/LineageOS/android-tools-extract-utils/logx"
	"github.com/LineageOS/android-tools-extract-utils/manifest"
	"github.com/LineageOS/android-tools-extract-utils/pin"
	"github.com/LineageOS/android-tools-extract-utils/resolve"
	"github.com/LineageOS/android-tools-extract-utils/tools"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// options collects the resolved CLI surface: the manifest and toolchain
// flags shared with the original shell tool (--keep-dump, --adb,
// --output, the toolchain root), plus the optional recipe/cache paths
// that this implementation reads explicitly rather than off the
// environment.
type options struct {
	listFile    string
	source      string
	oldManifest string // third positional arg, only consulted with kang

	device    string
	section   string
	output    string
	toolchain string
	cacheRoot string
	recipe    string

	kang     bool
	keepDump bool
	useADB   bool
	checkELF bool
	verbose  bool

	elfVersion tools.ELFRewriterVersion
	overrides  map[string]string
}

func (o options) validate() error {
	if o.listFile == "" || o.source == "" {
		return &xerr.UsageError{Reason: "both <list-file> and <source> are required"}
	}
	if o.device == "" {
		return &xerr.UsageError{Reason: "--device is required"}
	}
	if o.toolchain == "" {
		return &xerr.UsageError{Reason: "--toolchain is required"}
	}
	return nil
}

// kangEntry is one blob's freshly computed pre/post-fixup hash pair,
// collected only when kang mode is active.
type kangEntry struct {
	rec               manifest.Record
	preHash, postHash string
}

// run drives the full pipeline end to end: acquire, parse, resolve,
// fixup, pin, classify, emit. It takes fs and runner as parameters
// (rather than reaching for the OS directly) so the whole pipeline is
// exercisable against an in-memory filesystem and a fake Runner.
func run(ctx context.Context, opts options, fs afero.Fs, runner tools.Runner, stdout, stderr io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	log := logx.New(stderr, opts.verbose)
	rc := logx.NewContext(log)

	loc := tools.New(opts.toolchain, opts.elfVersion)
	for name, path := range opts.overrides {
		loc.Override(name, path)
	}
	adapters := tools.NewAdapters(loc, runner)

	raw, err := afero.ReadFile(fs, opts.listFile)
	if err != nil {
		return &xerr.PreconditionFailure{Reason: "reading list file: " + err.Error()}
	}
	records, err := manifest.Parse(string(raw), opts.section, opts.checkELF)
	if err != nil {
		return err
	}
	rc.Stats.Parsed = len(records)

	var h *hooks.RecipeHooks
	if opts.recipe != "" {
		src, err := afero.ReadFile(fs, opts.recipe)
		if err != nil {
			return &xerr.PreconditionFailure{Reason: "reading recipe hooks: " + err.Error()}
		}
		h, err = hooks.Load(opts.recipe, src)
		if err != nil {
			return err
		}
	}

	tempDir, err := acquire.NewScopedTempDir("", opts.keepDump)
	if err != nil {
		return xerr.Wrap(err, "creating scoped temp directory")
	}
	defer tempDir.Close()

	pipeline := acquire.NewPipeline(fs, loc, runner, log, opts.cacheRoot, tempDir)
	treeRoot, err := pipeline.Acquire(ctx, opts.source, opts.useADB)
	if err != nil {
		return err
	}
	tree := resolve.NewTree(afero.NewBasePathFs(fs, treeRoot))

	fixupPipeline := fixup.NewPipeline(fs, adapters, h, opts.elfVersion)

	stagingRoot := path.Join(opts.output, "proprietary")

	var classified []classify.Classified
	var firmwareLines []string
	var bpStanzas []string
	var symlinkStanzas []string
	var rroFiles []struct{ path, content string }
	var kangEntries []kangEntry
	symlinkNamer := &emit.SymlinkNamer{}

	var copyFileLines []string

	for _, rec := range records {
		partition := classify.ClassifyPartition(rec.DstPath)
		rec = applyLibToPackageFixup(h, rec, string(partition))

		resolvedTreePath, err := tree.Resolve(rec)
		if err != nil {
			if _, ok := err.(*xerr.SourceNotFound); ok {
				log.Red("%v", err)
				rc.Stats.Skipped++
				continue
			}
			return err
		}
		rc.Stats.Resolved++

		stagedPath := path.Join(stagingRoot, rec.DstPath)

		decision := pin.Miss
		if rec.Pinned() {
			existing, _ := pin.FindExisting(fs, stagedPath, path.Join(tempDir.Path, rec.DstPath))
			if existing != nil {
				decision, err = pin.Check(rec, existing)
				existing.Close()
				if err != nil {
					return err
				}
			}
		}

		switch decision {
		case pin.ReuseAsIs:
			rc.Stats.PinReused++
			if opts.kang {
				kangEntries = append(kangEntries, kangEntry{rec, rec.PinnedHash, rec.PinnedHash})
			}
		case pin.ReusePostFixup:
			rc.Stats.PinReused++
			if opts.kang {
				kangEntries = append(kangEntries, kangEntry{rec, rec.PinnedHash, rec.FixupHash})
			}
		default: // Miss or RerunFixup: (re)copy from the tree and run fixup
			if err := resolve.CopyToOutput(tree.FS, fs, resolvedTreePath, stagedPath); err != nil {
				return err
			}
			res, err := fixupPipeline.Run(ctx, rec, stagedPath, opts.kang)
			if err != nil {
				return err
			}
			if res.FixedUp {
				rc.Stats.FixedUp++
			}
			if res.PinnedNoFixupHash {
				log.Yellow("%v", &xerr.PinnedButFixedUp{Blob: rec.SrcPath})
			}
			if verdict := pin.VerifyPostFixup(rec, res.PostHash); verdict.Checked && !verdict.Matched {
				log.Red("%v", &xerr.HashMismatch{Blob: rec.SrcPath, Expected: verdict.Expected, Actual: verdict.Actual})
				rc.Stats.HashMismatch++
			}
			if opts.kang {
				kangEntries = append(kangEntries, kangEntry{rec, res.PreHash, res.PostHash})
			}
		}

		if strings.HasPrefix(rec.DstPath, "radio/") {
			if sum, err := firmwareSHA1(fs, stagedPath); err == nil {
				firmwareLines = append(firmwareLines, emit.FirmwareSHA1Rule(rec.DstPath, sum))
			}
		}

		if !rec.Packaged {
			copyFileLines = append(copyFileLines, emit.CopyFileLine(string(partition), stagedPath, rec.DstPath))
			continue
		}

		c := classify.Classify(ctx, rec, stagedPath, adapters)
		classified = append(classified, c)
		// SHARED_LIBRARIES records are emitted as one ABI-bucketed
		// stanza below instead of per-record, since a 32- and a 64-bit
		// copy of the same library share a single module name.
		if c.Class != classify.ClassSharedLibraries {
			bpStanzas = append(bpStanzas, emit.PrebuiltStanza(c))
		}

		for _, link := range rec.Args.Symlink {
			name := symlinkNamer.Name(rec.DstPath, link, "")
			symlinkStanzas = append(symlinkStanzas, emit.SymlinkStanza(name, rec.DstPath, link, string(partition)))
		}

		if c.Class == classify.ClassApps && c.PrivApp {
			rroFiles = append(rroFiles, rroSkeletonFiles(c)...)
		}
	}

	for _, b := range classify.ComputeABIBuckets(classified) {
		bpStanzas = append(bpStanzas, emit.SharedLibraryBucketStanza(b))
	}

	if ab := emit.ABOTAPartitions(records); ab != "" {
		firmwareLines = append(firmwareLines, ab)
	}

	var extraImports []string
	if h != nil {
		extraImports, _ = h.VendorImports(path.Join(opts.output, "Android.bp"))
	}

	if err := writeOutputs(fs, opts, copyFileLines, bpStanzas, symlinkStanzas, firmwareLines, classified, extraImports, rroFiles); err != nil {
		return err
	}

	if opts.kang {
		if err := printKang(fs, opts, kangEntries, stdout); err != nil {
			return err
		}
	}

	fmt.Fprintln(stdout, rc.Stats.Summary())
	return nil
}

// applyLibToPackageFixup rewrites rec's OVERRIDES= and REQUIRED= entries
// through the recipe's lib_to_package_fixup hook, returning a modified
// copy; rec itself is never mutated in place.
func applyLibToPackageFixup(h *hooks.RecipeHooks, rec manifest.Record, partition string) manifest.Record {
	filename := path.Base(rec.DstPath)
	rewrite := func(libs []string) []string {
		if len(libs) == 0 {
			return libs
		}
		out := make([]string, len(libs))
		for i, lib := range libs {
			pkg, err := h.LibToPackageFixup(lib, partition, filename)
			if err != nil {
				out[i] = lib
				continue
			}
			out[i] = pkg
		}
		return out
	}
	rec.Args.Overrides = rewrite(rec.Args.Overrides)
	rec.Args.Required = rewrite(rec.Args.Required)
	return rec
}

func firmwareSHA1(fs afero.Fs, stagedPath string) (string, error) {
	f, err := fs.Open(stagedPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return tools.SHA1File(f)
}

// rroTargetPackage approximates the overlaid app's package id from its
// staged apk basename, absent an APK manifest parser in scope (spec
// §9 Open Question: RRO trigger condition resolved as "priv-app APPS
// records get an overlay skeleton named after their own module").
func rroTargetPackage(c classify.Classified) string {
	base := path.Base(c.Record.DstPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

func rroSkeletonFiles(c classify.Classified) []struct{ path, content string } {
	pkg := rroTargetPackage(c)
	name := pkg + "_rro"
	dir := path.Join("rro", name)
	bp, mf := emit.RROSkeleton(name, pkg)
	return []struct{ path, content string }{
		{path.Join(dir, "Android.bp"), bp},
		{path.Join(dir, "AndroidManifest.xml"), mf},
	}
}

func writeOutputs(
	fs afero.Fs,
	opts options,
	copyFileLines, bpStanzas, symlinkStanzas, firmwareLines []string,
	classified []classify.Classified,
	extraImports []string,
	rroFiles []struct{ path, content string },
) error {
	if err := fs.MkdirAll(opts.output, 0755); err != nil {
		return xerr.Wrap(err, "creating output directory")
	}

	productBody := strings.Join(copyFileLines, " \\\n") + "\n\n"
	for _, name := range emit.PackageList(classified) {
		productBody += "PRODUCT_PACKAGES += " + name + "\n"
	}
	if err := writeFile(fs, path.Join(opts.output, "proprietary-files.mk"), emit.Header(opts.device, productBody)); err != nil {
		return err
	}

	bp := emit.NamespaceImports(opts.device, extraImports) + "\n" +
		strings.Join(bpStanzas, "\n") + "\n" + strings.Join(symlinkStanzas, "\n")
	if err := writeFile(fs, path.Join(opts.output, "Android.bp"), bp); err != nil {
		return err
	}

	if len(firmwareLines) > 0 {
		if err := writeFile(fs, path.Join(opts.output, "firmware.mk"), emit.Header(opts.device, strings.Join(firmwareLines, "\n"))); err != nil {
			return err
		}
	}

	for _, f := range rroFiles {
		if err := writeFile(fs, path.Join(opts.output, f.path), f.content); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fs afero.Fs, p, content string) error {
	if err := fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return xerr.Wrapf(err, "creating directory for %s", p)
	}
	return afero.WriteFile(fs, p, []byte(content), 0644)
}

// printKang renders the kang-mode manifest regeneration: the full set
// of freshly hashed lines, or — when an old manifest path was given as
// the third positional argument — only the lines that changed against
// it.
func printKang(fs afero.Fs, opts options, entries []kangEntry, stdout io.Writer) error {
	if opts.oldManifest == "" {
		for _, e := range entries {
			fmt.Fprintln(stdout, pin.Kang(e.rec, e.preHash, e.postHash))
		}
		return nil
	}

	oldRaw, err := afero.ReadFile(fs, opts.oldManifest)
	if err != nil {
		return &xerr.PreconditionFailure{Reason: "reading old manifest for kang diff: " + err.Error()}
	}
	oldRecords, err := manifest.Parse(string(oldRaw), opts.section, opts.checkELF)
	if err != nil {
		return err
	}

	fresh := make([]manifest.Record, len(entries))
	for i, e := range entries {
		r := e.rec
		r.PinnedHash = e.preHash
		r.FixupHash = e.postHash
		fresh[i] = r
	}
	for _, line := range pin.Diff(oldRecords, fresh) {
		fmt.Fprintln(stdout, line)
	}
	return nil
}
