// Package devicegraph defines the storage device graph consumed by the
// allocation engine, and provides an in-memory implementation of it.
//
// The graph holds disks, their partition tables and partitions, encryption
// layers, LVM volume groups and logical volumes. Consumers never keep
// pointers into a graph: every query returns a value snapshot and every
// mutation is addressed by device name, so a handle can never outlive the
// graph it came from.
//
// Duplicate returns a deep copy. Allocation attempts always work on a
// duplicate; discarding the duplicate is the rollback.
//
// Consumer-Side Interfaces:
//
// Engine packages accept the Devicegraph interface, or a narrower interface
// of their own listing only the operations they call. *Graph satisfies all
// of them.
package devicegraph

import (
	"errors"

	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// DefaultGrain is the alignment used for disks that do not report one.
const DefaultGrain = disksize.MiB

// DefaultExtentSize is the extent size of new volume groups.
const DefaultExtentSize = 4 * disksize.MiB

var (
	// ErrNotFound is returned when a named device does not exist.
	ErrNotFound = errors.New("device not found")

	// ErrExists is returned when creating a device whose name is taken.
	ErrExists = errors.New("device already exists")

	// ErrNoSpace is returned when a device does not fit where requested.
	ErrNoSpace = errors.New("not enough space")

	// ErrInvalid is returned for geometrically or structurally invalid requests.
	ErrInvalid = errors.New("invalid device request")
)

// PartitionFilter selects partitions. It returns true for accepted ones.
type PartitionFilter func(Partition) bool

// VGFilter selects volume groups.
type VGFilter func(VolumeGroup) bool

// LVFilter selects logical volumes.
type LVFilter func(LogicalVolume) bool

// Devicegraph is the contract between the allocation engine and the
// storage device store.
type Devicegraph interface {
	// Duplicate returns a deep, independent copy of the graph.
	Duplicate() Devicegraph

	// Disks returns all disks in probe order.
	Disks() []Disk
	// Disk looks up a disk by name.
	Disk(name string) (Disk, bool)

	// Partitions returns the partitions accepted by all filters, ordered by
	// disk and start offset.
	Partitions(filters ...PartitionFilter) []Partition
	// Partition looks up a partition by name.
	Partition(name string) (Partition, bool)
	// PartitionByDevice resolves a partition from its own name or from the
	// name of its encryption layer.
	PartitionByDevice(device string) (Partition, bool)

	// VolumeGroups returns the volume groups accepted by all filters.
	VolumeGroups(filters ...VGFilter) []VolumeGroup
	// VolumeGroup looks up a volume group by name.
	VolumeGroup(name string) (VolumeGroup, bool)
	// LogicalVolumes returns the logical volumes of a volume group.
	LogicalVolumes(vg string, filters ...LVFilter) []LogicalVolume

	// FreeRegions returns the free regions of the given disks, or of every
	// partitioned disk when none is given.
	FreeRegions(disks ...string) []FreeRegion

	// DeviceExists reports whether any device (disk, partition,
	// encryption layer or logical volume path) has the given name.
	DeviceExists(name string) bool

	// CreatePartitionTable creates an empty partition table on a disk.
	CreatePartitionTable(disk string, t TableType) error
	// CreatePartition creates a partition and returns it.
	CreatePartition(spec PartitionSpec) (Partition, error)
	// DeletePartition deletes a partition and everything built on it. It
	// returns the names of the deleted partitions.
	DeletePartition(name string) ([]string, error)
	// Encrypt adds an encryption layer to a partition and returns its name.
	Encrypt(partition string) (string, error)

	// CreateVolumeGroup creates an empty volume group.
	CreateVolumeGroup(name string, extentSize disksize.Size) (VolumeGroup, error)
	// AddPhysicalVolume adds a block device to a volume group.
	AddPhysicalVolume(vg, device string) error
	// CreateLogicalVolume creates a logical volume in a volume group.
	CreateLogicalVolume(vg, name string, size disksize.Size) (LogicalVolume, error)
	// DeleteLogicalVolume deletes a logical volume.
	DeleteLogicalVolume(vg, name string) error

	// Format applies a filesystem to a block device.
	Format(device string, fs Filesystem) error
}

// OnDisk accepts partitions on the given disk.
func OnDisk(disk string) PartitionFilter {
	return func(p Partition) bool { return p.Disk == disk }
}

// OfType accepts partitions of the given type.
func OfType(t PartitionType) PartitionFilter {
	return func(p Partition) bool { return p.Type == t }
}

// Named accepts the partition with the given name.
func Named(name string) PartitionFilter {
	return func(p Partition) bool { return p.Name == name }
}

// Within accepts partitions located inside [start, end).
func Within(start, end disksize.Size) PartitionFilter {
	return func(p Partition) bool { return p.Start >= start && p.End <= end }
}

// VGNamed accepts the volume group with the given name.
func VGNamed(name string) VGFilter {
	return func(vg VolumeGroup) bool { return vg.Name == name }
}

// LVNamed accepts the logical volume with the given name.
func LVNamed(name string) LVFilter {
	return func(lv LogicalVolume) bool { return lv.Name == name }
}
