package v1alpha1

import (
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// Devicegraph describes the storage devices of a machine: disks with their
// partition tables and partitions, and the LVM volume groups built on them.
//
// +kubebuilder:object:root=true
type Devicegraph struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec DevicegraphSpec `json:"spec" yaml:"spec"`
}

// DevicegraphSpec lists the devices of a Devicegraph.
type DevicegraphSpec struct {
	Disks []DiskSpec `json:"disks" yaml:"disks"`

	// +optional
	VolumeGroups []VolumeGroupSpec `json:"volumeGroups,omitempty" yaml:"volumeGroups,omitempty"`
}

// DiskSpec describes a disk.
type DiskSpec struct {
	// Name is the kernel device path, e.g. /dev/sda.
	Name string        `json:"name" yaml:"name"`
	Size disksize.Size `json:"size" yaml:"size"`

	// MinGrain is the alignment of the disk. Defaults to 1 MiB.
	// +optional
	MinGrain disksize.Size `json:"minGrain,omitempty" yaml:"minGrain,omitempty"`

	// PartitionTable is "msdos" or "gpt". Empty for unpartitioned disks.
	// +optional
	// +kubebuilder:validation:Enum=msdos;gpt
	PartitionTable string `json:"partitionTable,omitempty" yaml:"partitionTable,omitempty"`

	// +optional
	Partitions []PartitionSpec `json:"partitions,omitempty" yaml:"partitions,omitempty"`
}

// PartitionSpec describes a partition. Extended partitions must be listed
// before their logical partitions.
type PartitionSpec struct {
	// Number is the partition number. Zero takes the next free one.
	// +optional
	Number int `json:"number,omitempty" yaml:"number,omitempty"`

	// Type defaults to primary.
	// +optional
	Type devicegraph.PartitionType `json:"type,omitempty" yaml:"type,omitempty"`

	// ID defaults to linux.
	// +optional
	ID devicegraph.PartitionID `json:"id,omitempty" yaml:"id,omitempty"`

	Start disksize.Size `json:"start" yaml:"start"`
	Size  disksize.Size `json:"size" yaml:"size"`

	// Encrypted adds an encryption layer on top of the partition.
	// +optional
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`

	// +optional
	Filesystem string `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	// +optional
	MountPoint string `json:"mountPoint,omitempty" yaml:"mountPoint,omitempty"`
	// +optional
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// VolumeGroupSpec describes an LVM volume group.
type VolumeGroupSpec struct {
	Name string `json:"name" yaml:"name"`

	// ExtentSize defaults to 4 MiB.
	// +optional
	ExtentSize disksize.Size `json:"extentSize,omitempty" yaml:"extentSize,omitempty"`

	// PhysicalVolumes are partitions or encryption layers, e.g. /dev/sda2
	// or /dev/mapper/cr_sda2.
	PhysicalVolumes []string `json:"physicalVolumes" yaml:"physicalVolumes"`

	// +optional
	LogicalVolumes []LogicalVolumeSpec `json:"logicalVolumes,omitempty" yaml:"logicalVolumes,omitempty"`
}

// LogicalVolumeSpec describes an LVM logical volume.
type LogicalVolumeSpec struct {
	Name string        `json:"name" yaml:"name"`
	Size disksize.Size `json:"size" yaml:"size"`

	// +optional
	Filesystem string `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	// +optional
	MountPoint string `json:"mountPoint,omitempty" yaml:"mountPoint,omitempty"`
	// +optional
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}
