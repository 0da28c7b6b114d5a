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

// Command extract-carriersettings is a thin wrapper around the
// carriersettings-extract binary: it converts a carrier-settings
// protobuf source tree into the individual per-carrier .pb files a
// device overlay ships. It has no manifest, no resolver, and no
// classifier of its own; it is kept separate from extract-blobs
// because it is a one-shot subprocess, not a blob pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/LineageOS/android-tools-extract-utils/tools"
)

var toolchain = flag.String("toolchain", "", "root directory containing the external tool binaries (required)")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: extract-carriersettings --toolchain DIR <src-dir> <out-dir>")
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	args := flag.Args()
	if len(args) != 2 || *toolchain == "" {
		flag.Usage()
		os.Exit(1)
	}

	loc := tools.New(*toolchain, tools.ELFRewriterV3)
	adapters := tools.NewAdapters(loc, tools.ExecRunner)

	if err := adapters.CarrierSettings(context.Background(), args[0], args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "err:", err)
		os.Exit(1)
	}
}
