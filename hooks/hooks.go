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

// Package hooks loads a device recipe's four override callbacks from
// an optional Starlark file and threads the result explicitly through
// callers rather than through a process-wide mutable global hook
// table. Loading runs a .bzl file through starlark.ExecFile and reads
// named globals back out of the resulting StringDict.
package hooks

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// RecipeHooks holds the four optional callback slots a recipe may
// define. The zero value has no hooks loaded; every lookup method
// falls back to the documented default behavior when a slot is empty.
type RecipeHooks struct {
	thread *starlark.Thread

	blobFixupDry      *starlark.Function
	blobFixup         *starlark.Function
	vendorImports     *starlark.Function
	libToPackageFixup *starlark.Function
}

// Load parses a device recipe's Starlark hook file (filename is used
// only for error messages and relative-load resolution) and returns the
// callbacks it defines. A file defining none of the four recognized
// names is valid; its RecipeHooks has every slot empty.
func Load(filename string, src []byte) (*RecipeHooks, error) {
	thread := &starlark.Thread{Name: "recipe-hooks: " + filename}
	globals, err := starlark.ExecFile(thread, filename, src, nil)
	if err != nil {
		return nil, xerr.Wrapf(err, "loading recipe hooks from %s", filename)
	}

	h := &RecipeHooks{thread: thread}
	h.blobFixupDry, _ = globals["blob_fixup_dry"].(*starlark.Function)
	h.blobFixup, _ = globals["blob_fixup"].(*starlark.Function)
	h.vendorImports, _ = globals["vendor_imports"].(*starlark.Function)
	h.libToPackageFixup, _ = globals["lib_to_package_fixup"].(*starlark.Function)
	return h, nil
}

// BlobFixupDry evaluates blob_fixup_dry(name), defaulting to accept
// (true) when no hook is loaded.
func (h *RecipeHooks) BlobFixupDry(name string) (accept bool, err error) {
	if h == nil || h.blobFixupDry == nil {
		return true, nil
	}
	v, err := starlark.Call(h.thread, h.blobFixupDry, starlark.Tuple{starlark.String(name)}, nil)
	if err != nil {
		return false, xerr.Wrapf(err, "blob_fixup_dry(%q)", name)
	}
	return bool(v.Truth()), nil
}

// BlobFixup evaluates blob_fixup(name, path); a no-op when no hook is
// loaded.
func (h *RecipeHooks) BlobFixup(name, path string) error {
	if h == nil || h.blobFixup == nil {
		return nil
	}
	_, err := starlark.Call(h.thread, h.blobFixup, starlark.Tuple{starlark.String(name), starlark.String(path)}, nil)
	if err != nil {
		return xerr.Wrapf(err, "blob_fixup(%q, %q)", name, path)
	}
	return nil
}

// VendorImports evaluates vendor_imports(targetFile) and returns the
// extra namespace imports it yields, or nil when no hook is loaded.
func (h *RecipeHooks) VendorImports(targetFile string) ([]string, error) {
	if h == nil || h.vendorImports == nil {
		return nil, nil
	}
	v, err := starlark.Call(h.thread, h.vendorImports, starlark.Tuple{starlark.String(targetFile)}, nil)
	if err != nil {
		return nil, xerr.Wrapf(err, "vendor_imports(%q)", targetFile)
	}
	return stringList(v)
}

func stringList(v starlark.Value) ([]string, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %s", v.Type())
	}
	it := iterable.Iterate()
	defer it.Done()
	var out []string
	var item starlark.Value
	for it.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("expected a string element, got %s", item.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

// LibToPackageFixup rewrites a dependency library name into a package
// name. The recipe's own hook, if loaded, is consulted
// first; if it returns "skip" (or none is loaded / it declines), the
// builtin policies apply; failing those, lib is returned unchanged.
func (h *RecipeHooks) LibToPackageFixup(lib, partition, filename string) (string, error) {
	if h != nil && h.libToPackageFixup != nil {
		v, err := starlark.Call(h.thread, h.libToPackageFixup,
			starlark.Tuple{starlark.String(lib), starlark.String(partition), starlark.String(filename)}, nil)
		if err != nil {
			return "", xerr.Wrapf(err, "lib_to_package_fixup(%q, %q, %q)", lib, partition, filename)
		}
		if s, ok := starlark.AsString(v); ok && s != "" && s != "skip" {
			return s, nil
		}
	}
	if pkg, ok := BuiltinLibToPackageFixup(lib); ok {
		return pkg, nil
	}
	return lib, nil
}
