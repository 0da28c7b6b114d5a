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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"path"
	"time"

	"github.com/gofrs/flock"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// CacheIndex is the persisted record of one OTA-zip extraction: it
// lets a second acquisition of an unchanged zip skip re-deriving the
// canonical tree. ExtractedAt uses the protobuf well-known Timestamp
// type rather than a bare time.Time. The index is written with
// encoding/json, so the Timestamp is stored as its seconds/nanos
// fields rather than in protojson's RFC 3339 form.
type CacheIndex struct {
	MD5              digest.Digest     `json:"md5"`
	SourcePath       string            `json:"source_path"`
	ExtractedAt      *timestamppb.Timestamp `json:"extracted_at"`
	PartitionDigests map[string]string `json:"partition_digests"`
}

// cacheIndexFileName is the fixed filename of the persisted index
// within each MD5-keyed cache directory.
const cacheIndexFileName = "cache_index.json"

// MD5File computes the MD5 fingerprint of an OTA zip.
func MD5File(r io.Reader) (digest.Digest, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return digest.NewDigestFromEncoded(digest.Algorithm("md5"), hex.EncodeToString(h.Sum(nil))), nil
}

// CacheDir returns the cache directory path for a zip under cacheRoot,
// keyed by its MD5.
func CacheDir(cacheRoot string, md5sum digest.Digest) string {
	return path.Join(cacheRoot, md5sum.Hex())
}

// LoadCacheIndex reads the persisted index from dir, returning
// (nil, nil) if none exists yet.
func LoadCacheIndex(fs afero.Fs, dir string) (*CacheIndex, error) {
	p := path.Join(dir, cacheIndexFileName)
	if ok, _ := afero.Exists(fs, p); !ok {
		return nil, nil
	}
	raw, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, err
	}
	var idx CacheIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// SaveCacheIndex persists idx into dir.
func SaveCacheIndex(fs afero.Fs, dir string, idx *CacheIndex) error {
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path.Join(dir, cacheIndexFileName), raw, 0644)
}

// NewCacheIndex builds a fresh index stamped with the given extraction
// time (callers pass time.Now() at the call site rather than this
// package reaching for the wall clock itself, so tests stay
// deterministic).
func NewCacheIndex(md5sum digest.Digest, sourcePath string, extractedAt time.Time, partitionDigests map[string]string) *CacheIndex {
	return &CacheIndex{
		MD5:              md5sum,
		SourcePath:       sourcePath,
		ExtractedAt:      timestamppb.New(extractedAt),
		PartitionDigests: partitionDigests,
	}
}

// Lock guards a cache directory against two racing invocations
// regenerating it concurrently. It is an advisory lock on a real
// filesystem path, independent of any afero.Fs; Acquire continues
// unguarded when the lock cannot be taken.
type Lock struct {
	fl *flock.Flock
}

// NewLock returns a Lock guarding lockPath (created alongside the
// cache directory, e.g. "<dir>.lock").
func NewLock(lockPath string) *Lock {
	return &Lock{fl: flock.New(lockPath)}
}

// TryLock attempts to acquire the lock without blocking, returning
// false if another process already holds it.
func (l *Lock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}
