package devicegraph

import (
	"fmt"
	"strings"

	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// TableType represents the partition table format of a disk.
type TableType int

const (
	// TableMSDOS is the legacy MBR partition table.
	TableMSDOS TableType = iota + 1
	// TableGPT is the GUID partition table.
	TableGPT
)

var tableTypeNames = map[TableType]string{
	TableMSDOS: "msdos",
	TableGPT:   "gpt",
}

func (t TableType) String() string {
	if n, ok := tableTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TableType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t TableType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TableType) UnmarshalText(text []byte) error {
	return unmarshalEnum(string(text), tableTypeNames, t, "partition table type")
}

// PartitionType represents the slot kind of a partition.
type PartitionType int

// Partition types.
const (
	Primary PartitionType = iota + 1
	Extended
	Logical
)

var partitionTypeNames = map[PartitionType]string{
	Primary:  "primary",
	Extended: "extended",
	Logical:  "logical",
}

func (pt PartitionType) String() string {
	if n, ok := partitionTypeNames[pt]; ok {
		return n
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (pt PartitionType) MarshalText() ([]byte, error) {
	return []byte(pt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pt *PartitionType) UnmarshalText(text []byte) error {
	return unmarshalEnum(string(text), partitionTypeNames, pt, "partition type")
}

// PartitionID is the content identifier stored in the partition table.
type PartitionID int

// Partition ids.
const (
	IDLinux PartitionID = iota + 1
	IDSwap
	IDLVM
	IDNTFS
	IDFAT
	IDESP
	IDExtended
)

var partitionIDNames = map[PartitionID]string{
	IDLinux:    "linux",
	IDSwap:     "swap",
	IDLVM:      "lvm",
	IDNTFS:     "ntfs",
	IDFAT:      "fat",
	IDESP:      "esp",
	IDExtended: "extended",
}

func (id PartitionID) String() string {
	if n, ok := partitionIDNames[id]; ok {
		return n
	}
	return fmt.Sprintf("PartitionID(%d)", int(id))
}

// MarshalText implements encoding.TextMarshaler.
func (id PartitionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PartitionID) UnmarshalText(text []byte) error {
	return unmarshalEnum(string(text), partitionIDNames, id, "partition id")
}

func unmarshalEnum[T comparable](text string, names map[T]string, out *T, what string) error {
	text = strings.ToLower(strings.TrimSpace(text))
	for v, n := range names {
		if n == text {
			*out = v
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q", what, text)
}

// PartitionTable describes the partition table of a disk.
type PartitionTable struct {
	Type TableType
}

// MaxPrimary returns the number of primary slots (extended included) the
// table offers.
func (t PartitionTable) MaxPrimary() int {
	if t.Type == TableMSDOS {
		return 4
	}
	return 128
}

// ExtendedSupported reports whether the table type can hold an extended
// partition at all.
func (t PartitionTable) ExtendedSupported() bool {
	return t.Type == TableMSDOS
}

// Disk is a partitionable block device.
type Disk struct {
	Name string
	Size disksize.Size
	// MinGrain is the minimal allocation unit (alignment) of the disk.
	MinGrain disksize.Size
	// Table is nil for disks without a partition table.
	Table *PartitionTable
}

// Grain returns the disk's MinGrain, defaulting to DefaultGrain.
func (d Disk) Grain() disksize.Size {
	if d.MinGrain.IsZero() {
		return DefaultGrain
	}
	return d.MinGrain
}

// Partition is a partition on a disk. End is exclusive.
type Partition struct {
	Name   string
	Disk   string
	Number int
	Type   PartitionType
	ID     PartitionID
	Start  disksize.Size
	End    disksize.Size

	// Encryption is the device name of the encryption layer, if any.
	Encryption string

	Filesystem string
	MountPoint string
	Label      string
}

// Size returns the partition size.
func (p Partition) Size() disksize.Size {
	return p.End.SubFloor(p.Start)
}

// Device returns the top-most block device of the partition: its
// encryption layer when encrypted, the partition itself otherwise.
func (p Partition) Device() string {
	if p.Encryption != "" {
		return p.Encryption
	}
	return p.Name
}

// VolumeGroup is an LVM volume group.
type VolumeGroup struct {
	Name       string
	UUID       string
	ExtentSize disksize.Size
	// PVs lists the block devices (partitions or encryption layers) backing
	// the group.
	PVs []string
	// Size is the capacity provided by all PVs.
	Size disksize.Size
	// Used is the capacity taken by logical volumes.
	Used disksize.Size
}

// AvailableSpace returns the capacity not assigned to any logical volume.
func (vg VolumeGroup) AvailableSpace() disksize.Size {
	return vg.Size.SubFloor(vg.Used)
}

// LogicalVolume is an LVM logical volume.
type LogicalVolume struct {
	VG         string
	Name       string
	UUID       string
	Size       disksize.Size
	Filesystem string
	MountPoint string
	Label      string
}

// Path returns the device path of the volume.
func (lv LogicalVolume) Path() string {
	return naming.LogicalVolumePath(lv.VG, lv.Name)
}

// Filesystem describes formatting applied to a block device.
type Filesystem struct {
	Type       string
	MountPoint string
	Label      string
}

// PartitionSpec describes a partition to create.
type PartitionSpec struct {
	Disk  string
	Type  PartitionType
	ID    PartitionID
	Start disksize.Size
	End   disksize.Size
	// Number requests a partition number. Zero takes the next free one.
	Number int
}

// FreeRegion is a contiguous, unallocated slice of a disk starting on a
// grain boundary.
type FreeRegion struct {
	Disk  string
	Start disksize.Size
	End   disksize.Size

	MinGrain disksize.Size

	// InsideExtended is set for regions within an existing extended
	// partition. The boot record of the first logical partition created in
	// such a region is already excluded from it.
	InsideExtended bool

	// ExtendedPossible is set when a new extended partition can still be
	// created on the disk.
	ExtendedPossible bool

	// PrimarySlots is the number of free primary slots on the disk.
	PrimarySlots int
}

// Size returns the size of the region.
func (r FreeRegion) Size() disksize.Size {
	return r.End.SubFloor(r.Start)
}

func (r FreeRegion) String() string {
	return fmt.Sprintf("%s[%s-%s]", r.Disk, r.Start, r.End)
}
