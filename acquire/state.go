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

// Package acquire implements the acquisition pipeline: turning a
// directory, OTA zip, or live adb device into the canonical tree that
// resolve, fixup, and classify operate on.
package acquire

// State is the two-valued acquisition state reported by Pipeline.State:
// Prepared once the most recent Acquire call produced a tree. Acquire
// does not consult it, so every call repeats the acquisition; an
// unchanged OTA zip is then served from the MD5 cache when one is
// configured.
type State int

const (
	NotPrepared State = iota
	Prepared
)

func (s State) String() string {
	if s == Prepared {
		return "prepared"
	}
	return "not-prepared"
}
