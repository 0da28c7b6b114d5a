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

package hooks

import "regexp"

// ubsanRe matches libclang_rt.ubsan_standalone-<arch>-android, collapsed
// to the arch-independent package name.
var ubsanRe = regexp.MustCompile(`^libclang_rt\.ubsan_standalone-[a-z0-9_]+-android$`)

// protobufCppRe matches libprotobuf-cpp-{lite,full}-3.9.1, which gets a
// "-vendorcompat" suffix.
var protobufCppRe = regexp.MustCompile(`^libprotobuf-cpp-(lite|full)-3\.9\.1$`)

// BuiltinLibToPackageFixup applies the two hardcoded lib_to_package_fixup
// policies a recipe hook can override.
func BuiltinLibToPackageFixup(lib string) (string, bool) {
	if ubsanRe.MatchString(lib) {
		return "libclang_rt.ubsan_standalone", true
	}
	if protobufCppRe.MatchString(lib) {
		return lib + "-vendorcompat", true
	}
	return "", false
}
