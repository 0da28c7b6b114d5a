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

// Command extract-blobs pulls proprietary vendor blobs out of a device
// image (a directory, an OTA zip, or a live adb device) and writes a
// canonical build-system fragment describing them: a product makefile
// copy-line per non-packaged record, a prebuilt-module Soong stanza per
// packaged record, symlink and firmware rules, and an RRO skeleton per
// overlaid priv-app.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/tools"
)

// toolOverrides collects repeated -tool-override name=path flags, the
// way split_zips.go's multiFlag collects repeated -i/-o arguments.
type toolOverrides map[string]string

func (o toolOverrides) String() string { return "" }

func (o toolOverrides) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("tool-override %q must be name=path", v)
	}
	o[name] = path
	return nil
}

var (
	device    = flag.String("device", "", "device codename (required; guards the emitted makefile and its vendor namespace import)")
	section   = flag.String("section", "", "manifest section to read; empty reads the whole manifest")
	output    = flag.String("output", "vendor", "output directory for the emitted build fragment")
	toolchain = flag.String("toolchain", "", "root directory containing the external tool binaries (required)")
	cacheRoot = flag.String("cache", "", "OTA zip extraction cache root; empty disables caching")
	recipe    = flag.String("recipe", "", "path to an optional Starlark recipe hooks file")

	kang     = flag.Bool("kang", false, "print a freshly re-hashed manifest instead of writing build files")
	keepDump = flag.Bool("keep-dump", false, "keep the scoped temp directory used to extract images")
	useADB   = flag.Bool("adb", false, "pull partitions from a live, rooted device via adb instead of <source>")
	checkELF = flag.Bool("check-elf", true, "infer Packaged from ELF-bearing path segments (lib/, lib64/, bin/)")
	verbose  = flag.Bool("v", false, "enable verbose logging")

	elfVersion = flag.String("elf-rewriter-version", "v3", "elf_rewriter variant: v1, v2, or v3")

	overrides = toolOverrides{}
)

func main() {
	flag.Var(overrides, "tool-override", "override a tool's resolved path, as name=path (repeatable)")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: extract-blobs [--section NAME] [--kang] [--keep-dump]")
		fmt.Fprintln(os.Stderr, "                      [--adb] [--output DIR] --device NAME --toolchain DIR <list-file> <source> [old-manifest]")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "<source> is a directory, an OTA zip, or the literal string \"adb\" (with --adb).")
		fmt.Fprintln(os.Stderr, "With --kang, an optional third positional old-manifest path (after <list-file> and <source>) limits output to changed lines.")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		log.Println("Error: both <list-file> and <source> are required.")
		flag.Usage()
		os.Exit(1)
	}

	var oldManifest string
	if *kang && len(args) >= 3 {
		oldManifest = args[2]
	}

	ver, err := parseELFRewriterVersion(*elfVersion)
	if err != nil {
		log.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	opts := options{
		listFile:    args[0],
		source:      args[1],
		oldManifest: oldManifest,
		device:      *device,
		section:     *section,
		output:      *output,
		toolchain:   *toolchain,
		cacheRoot:   *cacheRoot,
		recipe:      *recipe,
		kang:        *kang,
		keepDump:    *keepDump,
		useADB:      *useADB,
		checkELF:    *checkELF,
		verbose:     *verbose,
		elfVersion:  ver,
		overrides:   overrides,
	}

	log.SetFlags(log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	if err := run(ctx, opts, fs, tools.ExecRunner, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "err: ", err)
		os.Exit(1)
	}
}

func parseELFRewriterVersion(s string) (tools.ELFRewriterVersion, error) {
	switch s {
	case "v1":
		return tools.ELFRewriterV1, nil
	case "v2":
		return tools.ELFRewriterV2, nil
	case "v3":
		return tools.ELFRewriterV3, nil
	default:
		return 0, fmt.Errorf("unknown --elf-rewriter-version %q (want v1, v2, or v3)", s)
	}
}
