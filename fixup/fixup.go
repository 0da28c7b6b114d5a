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

// Package fixup runs the two-stage-plus-hook pipeline against a
// resolved blob before pinning verification. The recipe's dry-run hook
// first decides whether any stage runs; the stages are fixed type-keyed
// edits (oat2dex repack, XML declaration reordering), per-record args
// (FIX_SONAME, FIX_XML), then the recipe's fixup hook.
// Each step is a plain function call rather than a staged command
// graph, since there is no build graph here to stage the commands
// into.
package fixup

import (
	"context"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/hooks"
	"github.com/LineageOS/android-tools-extract-utils/manifest"
	"github.com/LineageOS/android-tools-extract-utils/tools"
)

// Result is the outcome of running the pipeline against one staged
// blob.
type Result struct {
	PreHash          string
	PostHash         string
	FixedUp          bool
	PinnedNoFixupHash bool // statically pinned but fixup changed content and no fixup_hash was declared
}

// Pipeline runs the fixup stages against files staged in fs.
type Pipeline struct {
	fs       afero.Fs
	adapters *tools.Adapters
	hooks    *hooks.RecipeHooks
	elfVer   tools.ELFRewriterVersion
	oat      *OatState
}

// NewPipeline builds a Pipeline. h may be nil (no recipe hooks loaded).
func NewPipeline(fs afero.Fs, adapters *tools.Adapters, h *hooks.RecipeHooks, elfVer tools.ELFRewriterVersion) *Pipeline {
	return &Pipeline{fs: fs, adapters: adapters, hooks: h, elfVer: elfVer, oat: NewOatState(fs)}
}

// Run executes the pipeline against the staged copy of rec at
// stagedPath, mutating it in place as stages apply. The pre-fixup hash
// is always computed, so kangMode does not change what Run does.
func (p *Pipeline) Run(ctx context.Context, rec manifest.Record, stagedPath string, kangMode bool) (Result, error) {
	preBytes, err := afero.ReadFile(p.fs, stagedPath)
	if err != nil {
		return Result{}, err
	}
	preHash := tools.SHA1Bytes(preBytes)

	ran := false
	cur := preBytes

	if accept, err := p.hooks.BlobFixupDry(path.Base(rec.DstPath)); err != nil {
		return Result{}, err
	} else if accept {
		var err error
		cur, ran, err = p.runStages(ctx, rec, stagedPath, cur)
		if err != nil {
			return Result{}, err
		}
	}

	if ran {
		if err := afero.WriteFile(p.fs, stagedPath, cur, 0644); err != nil {
			return Result{}, err
		}
	}

	postHash := preHash
	if ran {
		postHash = tools.SHA1Bytes(cur)
	}

	res := Result{PreHash: preHash, PostHash: postHash, FixedUp: ran && postHash != preHash}
	if res.FixedUp && rec.PinnedHash != "" && rec.FixupHash == "" {
		res.PinnedNoFixupHash = true
	}
	_ = kangMode
	return res, nil
}

// runStages applies stage 1 (type-keyed fixed edits), stage 2
// (per-record args), and stage 3 (recipe fixup hook) in order,
// returning the possibly-edited content and whether any stage ran (a
// stage that ran may have left the content unchanged).
func (p *Pipeline) runStages(ctx context.Context, rec manifest.Record, stagedPath string, content []byte) ([]byte, bool, error) {
	ran := false
	ext := strings.ToLower(path.Ext(rec.DstPath))

	if (ext == ".apk" || ext == ".jar") && !p.oat.FullyDeodexed() {
		name := strings.TrimSuffix(path.Base(rec.DstPath), ext)
		dexFiles, ok, err := p.oat.Oat2Dex(ctx, p.adapters, path.Dir(stagedPath), name)
		if err != nil {
			return nil, false, err
		}
		if ok {
			repacked, err := RepackDex(content, dexFiles)
			if err != nil {
				return nil, false, err
			}
			content = repacked
			ran = true
		}
	}

	if ext == ".xml" {
		reordered := ReorderXMLDeclaration(content)
		if string(reordered) != string(content) {
			content = reordered
			ran = true
		}
	}

	if rec.Args.FixSoname {
		if err := afero.WriteFile(p.fs, stagedPath, content, 0644); err != nil {
			return nil, false, err
		}
		if err := p.adapters.RewriteSoname(ctx, stagedPath, path.Base(rec.DstPath), p.elfVer); err != nil {
			return nil, false, err
		}
		reread, err := afero.ReadFile(p.fs, stagedPath)
		if err != nil {
			return nil, false, err
		}
		content = reread
		ran = true
	}

	if rec.Args.FixXML && ext != ".xml" {
		reordered := ReorderXMLDeclaration(content)
		if string(reordered) != string(content) {
			content = reordered
			ran = true
		}
	}

	if err := afero.WriteFile(p.fs, stagedPath, content, 0644); err != nil {
		return nil, false, err
	}
	if err := p.hooks.BlobFixup(path.Base(rec.DstPath), stagedPath); err != nil {
		return nil, false, err
	}
	reread, err := afero.ReadFile(p.fs, stagedPath)
	if err != nil {
		return nil, false, err
	}
	if string(reread) != string(content) {
		ran = true
	}
	content = reread

	return content, ran, nil
}
