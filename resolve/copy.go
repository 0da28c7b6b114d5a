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

package resolve

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// CopyToOutput copies the file at treePath (as returned by Resolve)
// into outFS at outPath, preserving the source's file mode and never
// removing the source.
func CopyToOutput(treeFS, outFS afero.Fs, treePath, outPath string) error {
	src, err := treeFS.Open(treePath)
	if err != nil {
		return xerr.Wrapf(err, "opening %s", treePath)
	}
	defer src.Close()

	info, err := treeFS.Stat(treePath)
	if err != nil {
		return xerr.Wrapf(err, "stat %s", treePath)
	}

	if err := outFS.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return xerr.Wrapf(err, "creating output directory for %s", outPath)
	}

	dst, err := outFS.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return xerr.Wrapf(err, "creating %s", outPath)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return xerr.Wrapf(err, "copying %s to %s", treePath, outPath)
	}
	return nil
}
