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
	"strings"
	"time"

	"github.com/LineageOS/android-tools-extract-utils/tools"
	"github.com/LineageOS/android-tools-extract-utils/xerr"
)

// Device drives the live-device half of acquisition: an adb-server
// handshake with reconnect logic tolerant of "adb root" killing the
// existing TCP connection.
type Device struct {
	loc *tools.Locator
	run tools.Runner
}

// NewDevice builds a Device bound to loc's resolved adb path.
func NewDevice(loc *tools.Locator, run tools.Runner) *Device {
	return &Device{loc: loc, run: run}
}

// reconnectBackoff is how long Handshake waits after "adb root" before
// retrying a killed connection.
var reconnectBackoff = 500 * time.Millisecond

// Handshake waits for an adb device to be ready, reconnecting once if
// "adb root" killed the existing transport.
func (d *Device) Handshake(ctx context.Context) error {
	if _, err := d.adb(ctx, "wait-for-device"); err != nil {
		return xerr.Wrap(err, "adb wait-for-device")
	}

	out, err := d.adb(ctx, "root")
	if err != nil {
		return xerr.Wrap(err, "adb root")
	}
	if strings.Contains(out, "restarting") || strings.Contains(out, "already running as root") {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
		if _, err := d.adb(ctx, "wait-for-device"); err != nil {
			return xerr.Wrap(err, "adb wait-for-device (post-root reconnect)")
		}
	}
	return nil
}

// Pull copies devicePath from the device into dst via adb pull. Acquire
// uses it to pull whole partition block devices; the resolver reads
// blobs from the extracted tree and never calls Pull.
func (d *Device) Pull(ctx context.Context, devicePath, dst string) error {
	_, err := d.adb(ctx, "pull", devicePath, dst)
	return err
}

func (d *Device) adb(ctx context.Context, args ...string) (string, error) {
	stdout, stderr, err := d.run.Run(ctx, d.loc.Path("adb", "bin/adb"), args...)
	if err != nil {
		return "", &xerr.ToolFailure{Tool: "adb", Args: args, Stderr: string(stderr)}
	}
	return string(stdout), nil
}
