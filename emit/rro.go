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

package emit

import "fmt"

// RROSkeleton renders the fixed two-file scaffold (blueprint +
// manifest) for one requested runtime-resource-overlay target (spec
// §4.I, "RRO overlay skeletons"). targetPackage is the package the
// overlay applies to.
func RROSkeleton(name, targetPackage string) (blueprint, manifest string) {
	blueprint = fmt.Sprintf(`runtime_resource_overlay {
    name: %q,
    product_specific: true,
    theme: "icon_pack_circular",
}
`, name)

	manifest = fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android"
    package="%s.overlay">
    <overlay
        android:targetPackage="%s"
        android:isStatic="true"
        android:priority="0" />
</manifest>
`, name, targetPackage)
	return blueprint, manifest
}
