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
	"archive/zip"
	"bytes"
	"io"
	"time"
)

// reproducibleTimestamp is the fixed mtime ("2009-01-01 00:00")
// stamped on every repacked dex entry so re-running extraction against
// an unchanged source reproduces byte-identical archives.
var reproducibleTimestamp = time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)

// RepackDex rewrites archive (an APK/JAR's raw bytes), replacing any
// existing classes*.dex entries with newDex and copying every other
// entry's content unchanged, each entry's timestamp reset to the
// reproducible 2009-01-01 stamp.
func RepackDex(archive []byte, newDex map[string][]byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w := zip.NewWriter(&out)

	written := map[string]bool{}
	for _, f := range r.File {
		if dex, replace := newDex[f.Name]; replace {
			if err := writeZipEntry(w, f.Name, dex); err != nil {
				return nil, err
			}
			written[f.Name] = true
			continue
		}
		if err := copyZipEntry(w, f); err != nil {
			return nil, err
		}
	}
	for name, dex := range newDex {
		if written[name] {
			continue
		}
		if err := writeZipEntry(w, name, dex); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func writeZipEntry(w *zip.Writer, name string, content []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	hdr.Modified = reproducibleTimestamp
	fw, err := w.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = fw.Write(content)
	return err
}

func copyZipEntry(w *zip.Writer, f *zip.File) error {
	hdr := f.FileHeader
	hdr.Modified = reproducibleTimestamp
	fw, err := w.CreateHeader(&hdr)
	if err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(fw, src)
	return err
}
