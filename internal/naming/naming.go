// Package naming provides the naming conventions for block devices and
// LVM objects, and allocation of free names inside a namespace.
//
// These rules are shared by the device graph and by every component that
// creates devices, so that a planned device always ends up with the same
// name no matter which code path materializes it.
package naming

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

const (
	// DefaultVGName is the base name for volume groups created by the proposal.
	DefaultVGName = "system"

	// DefaultLVName is the base name for logical volumes without an explicit name.
	DefaultLVName = "lv"

	// EncryptionPrefix is prepended to the kernel name of an encrypted device.
	EncryptionPrefix = "cr_"

	// MapperDir is where device-mapper exposes encrypted devices.
	MapperDir = "/dev/mapper"
)

// Available returns name if it is not taken, otherwise the first of
// name0, name1, name2... that is free.
//
// Example: with "system" and "system0" taken, Available("system", taken)
// returns "system1".
func Available(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for suffix := 0; ; suffix++ {
		candidate := fmt.Sprintf("%s%d", name, suffix)
		if !taken(candidate) {
			return candidate
		}
	}
}

// TakenIn returns a taken-predicate for Available backed by a list of
// existing names.
func TakenIn(names []string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

// PartitionName returns the device name of partition number n on disk.
// Disks whose name ends with a digit get a "p" separator.
//
// Example: PartitionName("/dev/sda", 1) → /dev/sda1,
// PartitionName("/dev/nvme0n1", 2) → /dev/nvme0n1p2
func PartitionName(disk string, n int) string {
	if disk == "" {
		return ""
	}
	last := rune(disk[len(disk)-1])
	if unicode.IsDigit(last) {
		return fmt.Sprintf("%sp%d", disk, n)
	}
	return fmt.Sprintf("%s%d", disk, n)
}

// EncryptionName returns the device-mapper name used for the encryption
// layer of device.
//
// Example: EncryptionName("/dev/sda2") → /dev/mapper/cr_sda2
func EncryptionName(device string) string {
	return path.Join(MapperDir, EncryptionPrefix+path.Base(device))
}

// VolumeGroupPath returns the device directory of a volume group.
func VolumeGroupPath(vg string) string {
	return "/dev/" + vg
}

// LogicalVolumePath returns the device path of a logical volume.
// Format: /dev/{vg}/{lv}
func LogicalVolumePath(vg, lv string) string {
	return fmt.Sprintf("/dev/%s/%s", vg, lv)
}

// SplitLogicalVolumePath is the inverse of LogicalVolumePath.
func SplitLogicalVolumePath(device string) (vg, lv string, ok bool) {
	rest, found := strings.CutPrefix(device, "/dev/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || parts[0] == "mapper" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
