package proposal

import (
	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// swapWeight is the share of extra space offered to swap next to root and
// home, whose weights add up to 100.
const swapWeight = 10

// Devices is the set of planned devices derived from the settings.
type Devices struct {
	// Partitions are the partitions to place on the disks. With LVM this is
	// the single physical volume backing the group.
	Partitions []*planned.Partition
	// VolumeGroup is nil unless the settings ask for LVM.
	VolumeGroup *planned.VolumeGroup
}

// Validate checks every planned device.
func (d *Devices) Validate() error {
	for _, part := range d.Partitions {
		if err := part.Validate(); err != nil {
			return err
		}
	}
	if d.VolumeGroup != nil {
		return d.VolumeGroup.Validate()
	}
	return nil
}

type volume struct {
	name       string
	mountPoint string
	filesystem string
	id         devicegraph.PartitionID
	min, max   disksize.Size
	weight     int
}

// PlanDevices turns the settings into planned devices: root, swap and
// optionally home, either as partitions or as logical volumes of one new
// volume group backed by one physical volume.
func PlanDevices(s *config.ProposalSettings) *Devices {
	vols := volumes(s)

	if !s.UseLVM {
		parts := make([]*planned.Partition, 0, len(vols))
		for _, v := range vols {
			p := &planned.Partition{
				ID:                 v.id,
				Min:                v.min,
				Max:                v.max,
				Weight:             v.weight,
				EncryptionPassword: s.EncryptionPassword,
			}
			p.Filesystem = v.filesystem
			p.MountPoint = v.mountPoint
			parts = append(parts, p)
		}
		return &Devices{Partitions: parts}
	}

	vg := &planned.VolumeGroup{
		Name:                 s.VolumeGroupName,
		MakeSpacePolicy:      s.MakeSpacePolicy,
		PVEncryptionPassword: s.EncryptionPassword,
	}
	maxSize := devicegraph.DefaultExtentSize
	for _, v := range vols {
		lv := &planned.LogicalVolume{Name: v.name, Min: v.min, Max: v.max, Weight: v.weight}
		lv.Filesystem = v.filesystem
		lv.MountPoint = v.mountPoint
		vg.LVs = append(vg.LVs, lv)
		maxSize = maxSize.Add(v.max.CeilTo(devicegraph.DefaultExtentSize))
	}

	// One extra extent covers the LVM metadata area of the physical volume.
	pv := &planned.Partition{
		ID:                 devicegraph.IDLVM,
		Min:                vg.MinSize(devicegraph.DefaultExtentSize).Add(devicegraph.DefaultExtentSize),
		Max:                maxSize,
		Weight:             1,
		EncryptionPassword: s.EncryptionPassword,
	}
	return &Devices{Partitions: []*planned.Partition{pv}, VolumeGroup: vg}
}

func volumes(s *config.ProposalSettings) []volume {
	root := volume{
		name:       "root",
		mountPoint: "/",
		filesystem: s.RootFilesystem,
		id:         devicegraph.IDLinux,
		min:        s.RootBase,
		max:        s.RootMax,
		weight:     s.RootSpacePercent,
	}
	if s.SnapshotsActive() {
		grow := uint64(100 + s.RootSnapshotsPercent)
		root.min = root.min.MulDiv(grow, 100)
		if !root.max.IsUnlimited() {
			root.max = root.max.MulDiv(grow, 100)
		}
	}
	if !s.UseSeparateHome {
		root.max = disksize.Unlimited
		root.weight = 100
	}

	swap := volume{
		name:       "swap",
		mountPoint: "swap",
		filesystem: "swap",
		id:         devicegraph.IDSwap,
		min:        s.SwapMin,
		max:        s.SwapMax,
		weight:     swapWeight,
	}
	if s.EnlargeSwapForSuspend {
		swap.min = disksize.Max(s.MemorySize, s.SwapMin)
		swap.max = swap.min
	}

	vols := []volume{root, swap}
	if s.UseSeparateHome {
		vols = append(vols, volume{
			name:       "home",
			mountPoint: "/home",
			filesystem: s.HomeFilesystem,
			id:         devicegraph.IDLinux,
			min:        s.HomeMin,
			max:        s.HomeMax,
			weight:     100 - s.RootSpacePercent,
		})
	}
	return vols
}
