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

package fixup

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/tools"
)

// odexArches are probed in order against /system/framework/<arch>/.
var odexArches = []string{"arm64", "arm", "x86_64", "x86"}

// OatState tracks per-tree odex-arch probing across calls so repeated
// Oat2Dex invocations on the same canonical tree don't re-probe the
// framework directory for every blob: once the tree is known fully
// deodexed, future calls short-circuit.
type OatState struct {
	fs          afero.Fs
	probed      bool
	arches      []string // present arches, in probe order
	fullyDeodex bool
}

// NewOatState returns a fresh, unprobed OatState bound to fs (the
// canonical tree).
func NewOatState(fs afero.Fs) *OatState {
	return &OatState{fs: fs}
}

// probe populates o.arches and o.fullyDeodex on first use.
func (o *OatState) probe() {
	if o.probed {
		return
	}
	o.probed = true
	for _, arch := range odexArches {
		if ok, _ := afero.DirExists(o.fs, path.Join("system/framework", arch)); ok {
			o.arches = append(o.arches, arch)
		}
	}
	if len(o.arches) == 0 {
		o.fullyDeodex = true
	}
}

// FullyDeodexed reports whether no arch subdirectory was found under
// system/framework, meaning no further Oat2Dex attempts are useful.
func (o *OatState) FullyDeodexed() bool {
	o.probe()
	return o.fullyDeodex
}

var classesDexRe = regexp.MustCompile(`^(.+)_classes(\d*)\.(dex|cdex)$`)

// Oat2Dex attempts to produce a classes*.dex set for the archive named
// name (an APK/JAR basename without extension) already resolved at
// archiveDir. ok is false when no odex/oat pair could be located for
// any probed arch; callers should leave the archive untouched in that
// case.
func (o *OatState) Oat2Dex(ctx context.Context, a *tools.Adapters, archiveDir, name string) (dexFiles map[string][]byte, ok bool, err error) {
	o.probe()
	for _, arch := range o.arches {
		dex, found, err := o.oat2dexArch(ctx, a, archiveDir, name, arch)
		if err != nil {
			return nil, false, err
		}
		if found {
			return dex, true, nil
		}
	}
	return nil, false, nil
}

func (o *OatState) oat2dexArch(ctx context.Context, a *tools.Adapters, archiveDir, name, arch string) (map[string][]byte, bool, error) {
	oatDir := path.Join(archiveDir, "oat", arch)
	odexPath := path.Join(oatDir, name+".odex")
	vdexPath := path.Join(oatDir, name+".vdex")

	odexOK, _ := afero.Exists(o.fs, odexPath)
	vdexOK, _ := afero.Exists(o.fs, vdexPath)

	if odexOK && vdexOK {
		return o.vdexExtract(ctx, a, vdexPath)
	}

	bootOat, bootOK := o.findBootOat(name, arch)
	if !bootOK {
		return nil, false, nil
	}
	return o.disassembleReassemble(ctx, a, odexPath, bootOat)
}

// findBootOat locates the boot-classpath root used as baksmali's -b
// argument: system/framework/oat/<arch>/boot-<name>.oat for the
// archive's own name (APK and JAR alike), else the arch boot.oat. No
// .vdex boot image is looked for.
func (o *OatState) findBootOat(name, arch string) (string, bool) {
	candidates := []string{
		path.Join("system/framework/oat", arch, "boot-"+name+".oat"),
		path.Join("system/framework", arch, "boot.oat"),
	}
	for _, c := range candidates {
		if ok, _ := afero.Exists(o.fs, c); ok {
			return c, true
		}
	}
	return "", false
}

func (o *OatState) vdexExtract(ctx context.Context, a *tools.Adapters, vdexPath string) (map[string][]byte, bool, error) {
	outDir := vdexPath + ".out"
	if err := a.VdexExtract(ctx, vdexPath, outDir); err != nil {
		return nil, false, err
	}
	entries, err := afero.ReadDir(o.fs, outDir)
	if err != nil {
		return nil, false, err
	}
	out := map[string][]byte{}
	for _, e := range entries {
		renamed, ok := renameClassesDex(e.Name())
		if !ok {
			continue
		}
		content, err := afero.ReadFile(o.fs, path.Join(outDir, e.Name()))
		if err != nil {
			return nil, false, err
		}
		if strings.HasSuffix(e.Name(), ".cdex") {
			converted := path.Join(outDir, renamed)
			if err := a.CdexToDex(ctx, path.Join(outDir, e.Name()), converted); err != nil {
				return nil, false, err
			}
			content, err = afero.ReadFile(o.fs, converted)
			if err != nil {
				return nil, false, err
			}
		}
		out[renamed] = content
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

// renameClassesDex renames each <base>_classes<n>.<ext> to
// classes<n>.dex.
func renameClassesDex(name string) (string, bool) {
	m := classesDexRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	n := m[2]
	return "classes" + n + ".dex", true
}

func (o *OatState) disassembleReassemble(ctx context.Context, a *tools.Adapters, odexPath, bootOat string) (map[string][]byte, bool, error) {
	if ok, _ := afero.Exists(o.fs, odexPath); !ok {
		return nil, false, nil
	}
	smaliDir := odexPath + ".smali"
	if err := a.BaksmaliDeodex(ctx, odexPath, smaliDir, []string{bootOat}); err != nil {
		return nil, false, err
	}
	dexPath := odexPath + ".classes.dex"
	if err := a.SmaliAssemble(ctx, smaliDir, dexPath); err != nil {
		return nil, false, err
	}
	content, err := afero.ReadFile(o.fs, dexPath)
	if err != nil {
		return nil, false, err
	}
	return map[string][]byte{"classes.dex": content}, true, nil
}
