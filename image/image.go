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

// Package image probes a file's container type by magic bytes and
// extracts it into the canonical tree. Extraction is a staged,
// re-probed unpack: each recognized container kind either finishes
// directly or produces an intermediate file that gets re-probed and
// extracted again, keyed by a fixed set of recognized image kinds.
package image

import (
	"bytes"
	"context"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/LineageOS/android-tools-extract-utils/logx"
	"github.com/LineageOS/android-tools-extract-utils/tools"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// Partitions is the fixed set of partition roots an A/B payload or
// super image extraction produces.
var Partitions = []string{"system", "odm", "product", "system_ext", "vendor"}

// Kind identifies a recognized container type.
type Kind int

const (
	KindUnknown Kind = iota
	KindSparse
	KindEROFS
	KindExt4
	KindBrotliBlockPatch
	KindSuper
	KindABPayload
	KindCanonicalDir
)

var (
	sparseMagic = []byte{0x3a, 0xff, 0x26, 0xed}
	erofsMagic  = []byte{0xe2, 0xe1, 0xf5, 0xe0}
	ext4Magic   = []byte{0x53, 0xef} // at offset 0x438
)

// shortReadSymlinkMarker is the debugfs failure text that must become a
// fatal IncompatibleTool error.
const shortReadSymlinkMarker = "Attempt to read block from filesystem resulted in short read while reading symlink"

// Probe identifies in's container type by inspecting its path/name and
// leading bytes. fs lets tests substitute an in-memory filesystem.
func Probe(fs afero.Fs, in string) (Kind, error) {
	base := path.Base(in)
	switch {
	case strings.HasSuffix(base, ".new.dat.br"):
		return KindBrotliBlockPatch, nil
	case base == "payload.bin":
		return KindABPayload, nil
	case base == "super.img", superSparseChunkRe.MatchString(base):
		return KindSuper, nil
	}

	if ok, _ := afero.DirExists(fs, in); ok {
		if has, _ := afero.DirExists(fs, path.Join(in, "output")); has {
			return KindCanonicalDir, nil
		}
	}

	f, err := fs.Open(in)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	head := make([]byte, 0x440)
	n, _ := f.Read(head)
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, sparseMagic):
		return KindSparse, nil
	case bytes.HasPrefix(head, erofsMagic):
		return KindEROFS, nil
	case len(head) >= 0x438+2 && bytes.Equal(head[0x438:0x438+2], ext4Magic):
		return KindExt4, nil
	}
	return KindUnknown, nil
}

var superSparseChunkRe = regexp.MustCompile(`^super\.img_sparsechunk\.\d+$`)

// Extractor drives the recursive extraction policy.
type Extractor struct {
	fs  afero.Fs
	a   *tools.Adapters
	log *logx.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(fs afero.Fs, a *tools.Adapters, log *logx.Logger) *Extractor {
	return &Extractor{fs: fs, a: a, log: log}
}

// Extract identifies in's container type and extracts it into outDir,
// recursing as needed (sparse -> raw -> re-probe, brotli -> raw ->
// re-probe).
func (e *Extractor) Extract(ctx context.Context, in, outDir string) error {
	kind, err := Probe(e.fs, in)
	if err != nil {
		return err
	}
	switch kind {
	case KindCanonicalDir:
		return nil
	case KindSparse:
		raw := in + ".raw"
		if err := e.a.SparseToRaw(ctx, in, raw); err != nil {
			return err
		}
		return e.Extract(ctx, raw, outDir)
	case KindEROFS:
		return e.a.ExtractEROFS(ctx, in, outDir)
	case KindExt4:
		return e.extractExt4(ctx, in, outDir)
	case KindBrotliBlockPatch:
		return e.extractBrotliBlockPatch(ctx, in, outDir)
	case KindSuper:
		return e.extractSuper(ctx, in, outDir)
	case KindABPayload:
		return e.extractABPayload(ctx, in, outDir)
	default:
		return &xerr.IncompatibleTool{Tool: "image-probe", Detail: "unrecognized container: " + in}
	}
}

func (e *Extractor) extractExt4(ctx context.Context, in, outDir string) error {
	entries, err := e.rootEntries(ctx, in)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		out, err := e.a.DebugfsRdump(ctx, in, entry, outDir)
		if err != nil {
			return err
		}
		if strings.Contains(out, shortReadSymlinkMarker) {
			return &xerr.IncompatibleTool{Tool: "debugfs", Detail: shortReadSymlinkMarker}
		}
	}
	return nil
}

// rootEntries lists the root directory entries of an ext4 image to
// dump one at a time. debugfs itself has no structured "ls" adapter in
// tools, so root entries are assumed to be exactly the canonical
// partition subtrees already present at image root: "/" as a single
// rdump target keeps behavior correct even when that assumption is
// wrong, since debugfs rdump on "/" recurses.
func (e *Extractor) rootEntries(ctx context.Context, in string) ([]string, error) {
	return []string{"/"}, nil
}

func (e *Extractor) extractBrotliBlockPatch(ctx context.Context, in, outDir string) error {
	newDat := strings.TrimSuffix(in, ".br")
	if err := e.a.BrotliDecode(ctx, in, newDat); err != nil {
		return err
	}
	partition := partitionFromNewDatName(newDat)
	transferList := strings.TrimSuffix(newDat, ".new.dat") + ".transfer.list"
	rawImg := path.Join(path.Dir(in), partition+".img")
	if err := e.a.ApplyTransferList(ctx, transferList, newDat, rawImg); err != nil {
		return err
	}
	return e.Extract(ctx, rawImg, outDir)
}

func partitionFromNewDatName(newDat string) string {
	base := path.Base(newDat)
	return strings.TrimSuffix(base, ".new.dat")
}

func (e *Extractor) extractSuper(ctx context.Context, in, outDir string) error {
	raw := in
	if superSparseChunkRe.MatchString(path.Base(in)) {
		concatenated, err := e.concatSparseChunks(ctx, in)
		if err != nil {
			return err
		}
		raw = concatenated
	}
	expanded := raw + ".raw"
	if err := e.a.SparseToRaw(ctx, raw, expanded); err != nil {
		// super.img chunks are sometimes already raw; fall back to the
		// concatenated image itself.
		expanded = raw
	}
	if err := e.a.UnpackSuper(ctx, expanded, outDir); err != nil {
		return err
	}
	return e.reconcileSuperSlots(outDir)
}

// reconcileSuperSlots renames lpunpack's per-partition output to the
// canonical "<partition>.img" name the rest of the pipeline expects.
// On an A/B device lpunpack produces "<partition>_a.img" and
// "<partition>_b.img" instead of the bare name; the slot-A copy is
// preferred when both are present.
func (e *Extractor) reconcileSuperSlots(outDir string) error {
	for _, part := range Partitions {
		canonical := path.Join(outDir, part+".img")
		if ok, _ := afero.Exists(e.fs, canonical); ok {
			continue
		}
		slotA := path.Join(outDir, part+"_a.img")
		if ok, _ := afero.Exists(e.fs, slotA); ok {
			if err := e.fs.Rename(slotA, canonical); err != nil {
				return err
			}
			continue
		}
		slotB := path.Join(outDir, part+"_b.img")
		if ok, _ := afero.Exists(e.fs, slotB); ok {
			if err := e.fs.Rename(slotB, canonical); err != nil {
				return err
			}
		}
	}
	return nil
}

// concatSparseChunks concatenates super.img_sparsechunk.N files in
// natural-sort (numeric) order into a single image.
func (e *Extractor) concatSparseChunks(ctx context.Context, first string) (string, error) {
	dir := path.Dir(first)
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return "", err
	}
	var chunks []string
	for _, ent := range entries {
		if superSparseChunkRe.MatchString(ent.Name()) {
			chunks = append(chunks, ent.Name())
		}
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunkIndex(chunks[i]) < chunkIndex(chunks[j])
	})

	out := path.Join(dir, "super.img.concat")
	outFile, err := e.fs.Create(out)
	if err != nil {
		return "", err
	}
	defer outFile.Close()
	for _, c := range chunks {
		in, err := e.fs.Open(path.Join(dir, c))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(outFile, in)
		in.Close()
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

func chunkIndex(name string) int {
	parts := strings.Split(name, ".")
	n, _ := strconv.Atoi(parts[len(parts)-1])
	return n
}

// extractABPayload extracts the five known partitions from payload.bin
// in parallel, joined via errgroup before returning, collecting
// rather than discarding per-partition stderr.
func (e *Extractor) extractABPayload(ctx context.Context, in, outDir string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, part := range Partitions {
		part := part
		g.Go(func() error {
			partOut := path.Join(outDir, part)
			if err := e.a.ExtractOTAPayload(ctx, in, partOut, []string{part}); err != nil {
				return xerr.Wrapf(err, "extracting partition %s from %s", part, in)
			}
			return nil
		})
	}
	return g.Wait()
}
