package storage

import (
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// PoolType represents the type of storage pool backend.
type PoolType string

const (
	PoolTypeDisk    PoolType = "disk"    // Partitioned disk, volumes are partitions
	PoolTypeLogical PoolType = "logical" // LVM volume group, volumes are logical volumes
	PoolTypeDir     PoolType = "dir"     // Directory-based storage, ignored when probing
)

// Disk pool volume formats.
const (
	FormatNone     = "none"
	FormatLinux    = "linux"
	FormatSwap     = "linux-swap"
	FormatLVM      = "linux-lvm"
	FormatFAT16    = "fat16"
	FormatFAT32    = "fat32"
	FormatExtended = "extended"
)

// Pool source formats.
const (
	formatLVM2     = "lvm2"
	tableFormatDOS = "dos"
	tableFormatGPT = "gpt"
)

// VolumeSpec specifies how to create a storage volume.
type VolumeSpec struct {
	Name     string        // Volume name (e.g., "sda3", "root")
	Capacity disksize.Size // Capacity, exact
	// Format is the partition format in disk pools. Empty in logical pools.
	Format string
}

// Validate checks if the volume spec is valid.
func (v *VolumeSpec) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	if v.Capacity.IsZero() {
		return fmt.Errorf("volume capacity must be greater than 0")
	}
	if v.Capacity.IsUnlimited() {
		return fmt.Errorf("volume capacity must be finite")
	}
	return nil
}

// PoolInfo contains information about a storage pool.
type PoolInfo struct {
	Name       string        // Pool name
	Type       PoolType      // Pool type
	Path       string        // Target path
	Devices    []string      // Source devices: the disk, or the physical volumes
	Source     string        // Source name: the volume group of a logical pool
	Format     string        // Source format: the partition table of a disk pool
	UUID       string        // Pool UUID
	State      string        // Pool state (running, inactive, etc.)
	Capacity   disksize.Size // Total capacity
	Allocation disksize.Size // Allocated space
	Available  disksize.Size // Available space
}

// VolumeInfo contains information about a storage volume.
type VolumeInfo struct {
	Name     string        // Volume name
	Path     string        // Full path to the block device
	Pool     string        // Pool name
	Format   string        // Partition format in disk pools
	Capacity disksize.Size // Capacity
	// Start and End locate partitions on their disk. End is exclusive.
	// Both are zero for logical volumes.
	Start disksize.Size
	End   disksize.Size
}

var idFormats = map[devicegraph.PartitionID]string{
	devicegraph.IDLinux:    FormatLinux,
	devicegraph.IDSwap:     FormatSwap,
	devicegraph.IDLVM:      FormatLVM,
	devicegraph.IDFAT:      FormatFAT32,
	devicegraph.IDESP:      FormatFAT32,
	devicegraph.IDExtended: FormatExtended,
}

// VolumeFormat returns the disk pool volume format for a partition id.
// Ids libvirt has no format for map to "none".
func VolumeFormat(id devicegraph.PartitionID) string {
	if f, ok := idFormats[id]; ok {
		return f
	}
	return FormatNone
}

// PartitionID returns the partition id for a disk pool volume format.
func PartitionID(format string) devicegraph.PartitionID {
	switch format {
	case FormatSwap:
		return devicegraph.IDSwap
	case FormatLVM:
		return devicegraph.IDLVM
	case FormatFAT16, FormatFAT32:
		return devicegraph.IDFAT
	case FormatExtended:
		return devicegraph.IDExtended
	default:
		return devicegraph.IDLinux
	}
}

// tableType maps a disk pool source format to a partition table type.
func tableType(format string) (devicegraph.TableType, bool) {
	switch format {
	case tableFormatDOS:
		return devicegraph.TableMSDOS, true
	case tableFormatGPT:
		return devicegraph.TableGPT, true
	default:
		return 0, false
	}
}

// tableFormat maps a partition table type to a disk pool source format.
func tableFormat(t devicegraph.TableType) string {
	if t == devicegraph.TableMSDOS {
		return tableFormatDOS
	}
	return tableFormatGPT
}
