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

package acquire

import (
	"context"
	"path"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/image"
	"github.com/LineageOS/android-tools-extract-utils/logx"
	"github.com/LineageOS/android-tools-extract-utils/tools"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// Pipeline turns one of three source shapes — a directory, an OTA zip,
// or a live adb device — into a canonical tree ready for
// resolve/fixup/classify. One Pipeline is built per process
// and Acquire may be called more than once against it; State tracks
// whether the most recent call already produced a tree.
type Pipeline struct {
	fs        afero.Fs
	extractor *image.Extractor
	loc       *tools.Locator
	run       tools.Runner
	log       *logx.Logger

	cacheRoot string
	tempDir   *ScopedTempDir
	state     State
}

// NewPipeline builds a Pipeline. cacheRoot is where OTA-zip extractions
// are cached by MD5; an empty cacheRoot disables caching.
func NewPipeline(fs afero.Fs, loc *tools.Locator, run tools.Runner, log *logx.Logger, cacheRoot string, tempDir *ScopedTempDir) *Pipeline {
	return &Pipeline{
		fs:        fs,
		extractor: image.NewExtractor(fs, tools.NewAdapters(loc, run), log),
		loc:       loc,
		run:       run,
		log:       log,
		cacheRoot: cacheRoot,
		tempDir:   tempDir,
		state:     NotPrepared,
	}
}

// State reports whether the last Acquire call left a prepared tree.
func (p *Pipeline) State() State { return p.state }

// Acquire resolves source into a canonical tree rooted at the returned
// path. source is one of: a directory (used as-is, or
// recursed into if it looks like a staged image rather than an already
// extracted tree), an OTA zip (fingerprinted by MD5 and cached under
// cacheRoot), or the literal string "adb" (pulls partitions off a
// live, rooted device via Device).
func (p *Pipeline) Acquire(ctx context.Context, source string, useADB bool) (string, error) {
	p.state = NotPrepared

	var out string
	var err error
	switch {
	case useADB || source == "adb":
		out, err = p.acquireFromDevice(ctx)
	case isZip(source):
		out, err = p.acquireFromOTAZip(ctx, source)
	default:
		out, err = p.acquireFromDir(ctx, source)
	}
	if err != nil {
		return "", err
	}
	p.state = Prepared
	return out, nil
}

func isZip(source string) bool {
	return path.Ext(source) == ".zip"
}

// acquireFromDir extracts source into the scoped temp directory if it
// looks like a raw image rather than an already-canonical tree,
// otherwise uses it in place.
func (p *Pipeline) acquireFromDir(ctx context.Context, source string) (string, error) {
	kind, err := image.Probe(p.fs, source)
	if err != nil {
		return "", xerr.Wrapf(err, "probing %s", source)
	}
	if kind == image.KindCanonicalDir {
		return source, nil
	}
	out := path.Join(p.tempDir.Path, "tree")
	if err := p.extractor.Extract(ctx, source, out); err != nil {
		return "", xerr.Wrapf(err, "extracting %s", source)
	}
	return out, nil
}

// acquireFromOTAZip fingerprints source by MD5 and short-circuits to a
// cached tree when one already exists for that fingerprint (spec
// §4.C). A flock.Flock guards the cache directory against a second
// concurrent invocation regenerating the same tree.
func (p *Pipeline) acquireFromOTAZip(ctx context.Context, source string) (string, error) {
	f, err := p.fs.Open(source)
	if err != nil {
		return "", xerr.Wrap(err, "opening OTA zip")
	}
	sum, err := MD5File(f)
	f.Close()
	if err != nil {
		return "", xerr.Wrap(err, "fingerprinting OTA zip")
	}

	if p.cacheRoot == "" {
		return p.extractOTAZipInto(ctx, source, path.Join(p.tempDir.Path, "tree"))
	}

	dir := CacheDir(p.cacheRoot, sum)
	if err := p.fs.MkdirAll(path.Dir(dir), 0755); err != nil {
		return "", xerr.Wrap(err, "creating cache root")
	}
	// Locking is best-effort: it only dedups a race between two
	// concurrent invocations regenerating the same cache entry, so a
	// lock that can't be taken (e.g. cacheRoot isn't on a real
	// filesystem, as in tests) degrades to unguarded, not fatal.
	lock := NewLock(dir + ".lock")
	if held, err := lock.TryLock(); err == nil && held {
		defer lock.Unlock()
	}

	if idx, _ := LoadCacheIndex(p.fs, dir); idx != nil && idx.MD5 == sum {
		p.log.Verbosef("cache hit for %s (md5 %s)", source, sum.Hex())
		return path.Join(dir, "tree"), nil
	}

	out := path.Join(dir, "tree")
	if _, err := p.extractOTAZipInto(ctx, source, out); err != nil {
		return "", err
	}
	idx := NewCacheIndex(sum, source, time.Now(), nil)
	if err := SaveCacheIndex(p.fs, dir, idx); err != nil {
		p.log.Red("failed to persist cache index for %s: %v", source, err)
	}
	return out, nil
}

// extractOTAZipInto unpacks source and applies the image probe to its
// contents in sequence. Modern A/B OTA zips carry a
// single payload.bin covering every partition; older zips carry one
// raw/sparse image per partition instead, so both shapes are handled.
func (p *Pipeline) extractOTAZipInto(ctx context.Context, source, out string) (string, error) {
	if info, err := p.fs.Stat(source); err == nil {
		p.log.Verbosef("extracting %s (%s)", source, units.HumanSize(float64(info.Size())))
	}

	staging := out + ".unzipped"
	adapters := tools.NewAdapters(p.loc, p.run)
	if err := adapters.Unzip(ctx, source, staging); err != nil {
		return "", xerr.Wrapf(err, "unzipping OTA zip %s", source)
	}

	payload := path.Join(staging, "payload.bin")
	if ok, _ := afero.Exists(p.fs, payload); ok {
		if err := p.extractor.Extract(ctx, payload, out); err != nil {
			return "", xerr.Wrapf(err, "extracting A/B payload from %s", source)
		}
		return out, nil
	}

	found := false
	for _, part := range image.Partitions {
		img := path.Join(staging, part+".img")
		if ok, _ := afero.Exists(p.fs, img); !ok {
			continue
		}
		found = true
		if err := p.extractor.Extract(ctx, img, path.Join(out, part)); err != nil {
			return "", xerr.Wrapf(err, "extracting partition image %s from %s", part, source)
		}
	}
	if !found {
		return "", &xerr.IncompatibleTool{Tool: "image-probe", Detail: "OTA zip contains no payload.bin and no known partition image: " + source}
	}
	return out, nil
}

// acquireFromDevice pulls each known partition image off a rooted,
// connected device via adb.
func (p *Pipeline) acquireFromDevice(ctx context.Context) (string, error) {
	dev := NewDevice(p.loc, p.run)
	if err := dev.Handshake(ctx); err != nil {
		return "", xerr.Wrap(err, "adb handshake")
	}
	out := path.Join(p.tempDir.Path, "tree")
	for _, part := range image.Partitions {
		dst := path.Join(out, part+".img")
		if err := dev.Pull(ctx, "/dev/block/by-name/"+part, dst); err != nil {
			return "", xerr.Wrapf(err, "pulling partition %s", part)
		}
		partOut := path.Join(out, part)
		if err := p.extractor.Extract(ctx, dst, partOut); err != nil {
			return "", xerr.Wrapf(err, "extracting pulled partition %s", part)
		}
	}
	return out, nil
}

// Close releases the pipeline's scoped temp directory.
func (p *Pipeline) Close() error {
	if p.tempDir == nil {
		return nil
	}
	return p.tempDir.Close()
}
