// Package planned describes storage devices the proposal wants to exist:
// partitions, volume groups and logical volumes that are not materialized
// yet, together with their size ranges and placement constraints.
package planned

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// ErrInvalid is returned by Validate for inconsistent planned devices.
var ErrInvalid = errors.New("invalid planned device")

// FormatDirective is the formatting applied to a device right after it is
// created.
type FormatDirective struct {
	Filesystem string `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	MountPoint string `yaml:"mountPoint,omitempty" json:"mountPoint,omitempty"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Empty reports whether the directive formats nothing.
func (f FormatDirective) Empty() bool {
	return f.Filesystem == ""
}

// Formatter applies a filesystem to a block device.
type Formatter interface {
	Format(device string, fs devicegraph.Filesystem) error
}

// Apply formats device according to the directive. An empty directive is a
// no-op.
func (f FormatDirective) Apply(g Formatter, device string) error {
	if f.Empty() {
		return nil
	}
	if err := g.Format(device, devicegraph.Filesystem{Type: f.Filesystem, MountPoint: f.MountPoint, Label: f.Label}); err != nil {
		return fmt.Errorf("failed to format %s as %s: %w", device, f.Filesystem, err)
	}
	return nil
}

// Partition is a partition the proposal wants to create or reuse.
type Partition struct {
	FormatDirective `yaml:",inline"`

	// ID is the partition id to set. Zero means linux.
	ID devicegraph.PartitionID `yaml:"id,omitempty" json:"id,omitempty"`

	Min    disksize.Size `yaml:"min" json:"min"`
	Max    disksize.Size `yaml:"max" json:"max"`
	Weight int           `yaml:"weight,omitempty" json:"weight,omitempty"`

	// MaxStartOffset requires the partition to start within the given
	// distance from the start of the disk.
	MaxStartOffset *disksize.Size `yaml:"maxStartOffset,omitempty" json:"maxStartOffset,omitempty"`

	// Disk restricts the partition to one disk.
	Disk string `yaml:"disk,omitempty" json:"disk,omitempty"`

	// Reuse names an existing partition to use instead of creating one.
	Reuse string `yaml:"reuse,omitempty" json:"reuse,omitempty"`

	// Type requires a partition type. Zero accepts whatever the region
	// allows.
	Type devicegraph.PartitionType `yaml:"type,omitempty" json:"type,omitempty"`

	// EncryptionPassword encrypts the partition when set.
	EncryptionPassword string `yaml:"encryptionPassword,omitempty" json:"-"`
}

// Encrypted reports whether the partition gets an encryption layer.
func (p *Partition) Encrypted() bool {
	return p.EncryptionPassword != ""
}

// PartitionID returns the id to create the partition with.
func (p *Partition) PartitionID() devicegraph.PartitionID {
	if p.ID == 0 {
		return devicegraph.IDLinux
	}
	return p.ID
}

func (p *Partition) String() string {
	what := p.MountPoint
	if what == "" {
		what = p.PartitionID().String()
	}
	return fmt.Sprintf("%s(%s-%s)", what, p.Min, p.Max)
}

// Validate checks the size range of the partition.
func (p *Partition) Validate() error {
	if p.Reuse != "" {
		return nil
	}
	if p.Min.IsZero() {
		return fmt.Errorf("%w: partition %s has no minimum size", ErrInvalid, p)
	}
	if p.Max.Less(p.Min) {
		return fmt.Errorf("%w: partition %s has max < min", ErrInvalid, p)
	}
	if p.Weight < 0 {
		return fmt.Errorf("%w: partition %s has a negative weight", ErrInvalid, p)
	}
	if p.Type == devicegraph.Extended {
		return fmt.Errorf("%w: extended partitions cannot be planned", ErrInvalid)
	}
	return nil
}

// MakeSpacePolicy governs how existing logical volumes are deleted to fit
// planned ones.
type MakeSpacePolicy string

const (
	// Keep never deletes existing logical volumes.
	Keep MakeSpacePolicy = "keep"
	// Remove deletes every logical volume not reused.
	Remove MakeSpacePolicy = "remove"
	// Needed deletes logical volumes until the planned ones fit.
	Needed MakeSpacePolicy = "needed"
)

// ParseMakeSpacePolicy parses a policy name. The empty string means Needed.
func ParseMakeSpacePolicy(s string) (MakeSpacePolicy, error) {
	switch p := MakeSpacePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Needed, nil
	case Keep, Remove, Needed:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown make-space policy %q", ErrInvalid, s)
	}
}

// LogicalVolume is a logical volume the proposal wants to create or reuse.
type LogicalVolume struct {
	FormatDirective `yaml:",inline"`

	// Name is the requested name. It is suffixed when already taken. Empty
	// names get the default logical volume name.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Min    disksize.Size `yaml:"min" json:"min"`
	Max    disksize.Size `yaml:"max" json:"max"`
	Weight int           `yaml:"weight,omitempty" json:"weight,omitempty"`

	// Reuse names an existing logical volume of the group to keep.
	Reuse string `yaml:"reuse,omitempty" json:"reuse,omitempty"`

	// Size is the size decided by DistributeSpace.
	Size disksize.Size `yaml:"-" json:"-"`
}

func (lv *LogicalVolume) String() string {
	name := lv.Name
	if name == "" {
		name = lv.MountPoint
	}
	return fmt.Sprintf("%s(%s-%s)", name, lv.Min, lv.Max)
}

// VolumeGroup is a volume group the proposal wants to create or reuse.
type VolumeGroup struct {
	// Name is the requested name of a new group.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Reuse names an existing group to extend instead of creating one.
	Reuse string `yaml:"reuse,omitempty" json:"reuse,omitempty"`

	MakeSpacePolicy MakeSpacePolicy `yaml:"makeSpacePolicy,omitempty" json:"makeSpacePolicy,omitempty"`

	LVs []*LogicalVolume `yaml:"lvs" json:"lvs"`

	// PVEncryptionPassword encrypts the physical volumes created for the
	// group.
	PVEncryptionPassword string `yaml:"pvEncryptionPassword,omitempty" json:"-"`
}

// Policy returns the effective make-space policy.
func (vg *VolumeGroup) Policy() MakeSpacePolicy {
	if vg.MakeSpacePolicy == "" {
		return Needed
	}
	return vg.MakeSpacePolicy
}

// NewLVs returns the planned logical volumes that are not reused.
func (vg *VolumeGroup) NewLVs() []*LogicalVolume {
	var out []*LogicalVolume
	for _, lv := range vg.LVs {
		if lv.Reuse == "" {
			out = append(out, lv)
		}
	}
	return out
}

// ReusedNames returns the names of the existing logical volumes to keep.
func (vg *VolumeGroup) ReusedNames() []string {
	var out []string
	for _, lv := range vg.LVs {
		if lv.Reuse != "" {
			out = append(out, lv.Reuse)
		}
	}
	return out
}

// MinSize returns the space the new logical volumes need at least, each
// minimum rounded up to extent.
func (vg *VolumeGroup) MinSize(extent disksize.Size) disksize.Size {
	var mins []disksize.Size
	for _, lv := range vg.NewLVs() {
		mins = append(mins, lv.Min)
	}
	return disksize.Sum(mins, extent)
}

// Validate checks the group and its logical volumes.
func (vg *VolumeGroup) Validate() error {
	var errs []error
	if _, err := ParseMakeSpacePolicy(string(vg.MakeSpacePolicy)); err != nil {
		errs = append(errs, err)
	}
	if strings.ContainsAny(vg.Name, "/ ") {
		errs = append(errs, fmt.Errorf("%w: invalid volume group name %q", ErrInvalid, vg.Name))
	}
	names := make(map[string]bool)
	for _, lv := range vg.LVs {
		if strings.ContainsAny(lv.Name, "/ ") {
			errs = append(errs, fmt.Errorf("%w: invalid logical volume name %q", ErrInvalid, lv.Name))
		}
		if lv.Name != "" {
			if names[lv.Name] {
				errs = append(errs, fmt.Errorf("%w: duplicate logical volume name %q", ErrInvalid, lv.Name))
			}
			names[lv.Name] = true
		}
		if lv.Reuse != "" {
			continue
		}
		if lv.Min.IsZero() {
			errs = append(errs, fmt.Errorf("%w: logical volume %s has no minimum size", ErrInvalid, lv))
		}
		if lv.Max.Less(lv.Min) {
			errs = append(errs, fmt.Errorf("%w: logical volume %s has max < min", ErrInvalid, lv))
		}
		if lv.Weight < 0 {
			errs = append(errs, fmt.Errorf("%w: logical volume %s has a negative weight", ErrInvalid, lv))
		}
	}
	return errors.Join(errs...)
}
