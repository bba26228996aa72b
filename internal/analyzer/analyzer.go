// Package analyzer answers read-only questions about an existing device
// graph: which partitions back which volume group, what operating system a
// partition belongs to, and in which order partitions should be sacrificed
// when space is needed.
package analyzer

import (
	"slices"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
)

// Graph is the part of the device graph the analyzer reads.
type Graph interface {
	Disks() []devicegraph.Disk
	Partitions(filters ...devicegraph.PartitionFilter) []devicegraph.Partition
	PartitionByDevice(device string) (devicegraph.Partition, bool)
	VolumeGroups(filters ...devicegraph.VGFilter) []devicegraph.VolumeGroup
}

// Class is the operating system family a partition is attributed to.
type Class int

const (
	Linux Class = iota + 1
	Windows
	Other
)

func (c Class) String() string {
	switch c {
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	default:
		return "other"
	}
}

// UsedLVMPartitions maps every volume group name to the partitions backing
// it. PVs on encryption layers resolve to the encrypted partition.
func UsedLVMPartitions(g Graph) map[string][]string {
	out := make(map[string][]string)
	for _, vg := range g.VolumeGroups() {
		for _, pv := range vg.PVs {
			if p, ok := g.PartitionByDevice(pv); ok {
				out[vg.Name] = append(out[vg.Name], p.Name)
			}
		}
	}
	return out
}

// VolumeGroupOf returns the volume group a partition backs, if any.
func VolumeGroupOf(g Graph, partition string) (string, bool) {
	for vg, parts := range UsedLVMPartitions(g) {
		if slices.Contains(parts, partition) {
			return vg, true
		}
	}
	return "", false
}

// Classify attributes a partition to an operating system family from its
// partition id.
func Classify(p devicegraph.Partition) Class {
	switch p.ID {
	case devicegraph.IDLinux, devicegraph.IDSwap, devicegraph.IDLVM:
		return Linux
	case devicegraph.IDNTFS, devicegraph.IDFAT:
		return Windows
	default:
		return Other
	}
}

// Allow selects which partition classes may be deleted.
type Allow struct {
	Linux   bool
	Windows bool
	Other   bool
}

func (a Allow) permits(c Class) bool {
	switch c {
	case Linux:
		return a.Linux
	case Windows:
		return a.Windows
	default:
		return a.Other
	}
}

// DeletionCandidates returns, in deletion order, the partitions of the given
// disks (all disks when none is given) whose class is allowed.
//
// Linux partitions come first, then other partitions, then Windows ones.
// Within a class, disks are visited in probe order and each disk is emptied
// from its end towards its start. Extended partitions are never candidates:
// they go away with their last logical partition.
func DeletionCandidates(g Graph, disks []string, allow Allow) []string {
	if len(disks) == 0 {
		for _, d := range g.Disks() {
			disks = append(disks, d.Name)
		}
	}

	var out []string
	for _, class := range []Class{Linux, Other, Windows} {
		if !allow.permits(class) {
			continue
		}
		for _, disk := range disks {
			parts := g.Partitions(devicegraph.OnDisk(disk))
			slices.Reverse(parts)
			for _, p := range parts {
				if p.Type == devicegraph.Extended || Classify(p) != class {
					continue
				}
				out = append(out, p.Name)
			}
		}
	}
	return out
}
