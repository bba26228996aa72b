package loader

import (
	"fmt"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
)

// BuildGraph creates the graph described by a Devicegraph document.
func BuildGraph(doc *v1alpha1.Devicegraph) (*devicegraph.Graph, error) {
	g := devicegraph.New()

	for i, ds := range doc.Spec.Disks {
		if err := addDisk(g, ds); err != nil {
			return nil, fmt.Errorf("spec.disks[%d]: %w", i, err)
		}
	}

	for i, vs := range doc.Spec.VolumeGroups {
		if err := addVolumeGroup(g, vs); err != nil {
			return nil, fmt.Errorf("spec.volumeGroups[%d]: %w", i, err)
		}
	}

	return g, nil
}

func addDisk(g *devicegraph.Graph, ds v1alpha1.DiskSpec) error {
	if ds.Name == "" {
		return fmt.Errorf("name is required")
	}
	if ds.Size.IsZero() {
		return fmt.Errorf("disk %s: size must be greater than 0", ds.Name)
	}

	disk := devicegraph.Disk{Name: ds.Name, Size: ds.Size, MinGrain: ds.MinGrain}
	if ds.PartitionTable != "" {
		var t devicegraph.TableType
		if err := t.UnmarshalText([]byte(ds.PartitionTable)); err != nil {
			return fmt.Errorf("disk %s: %w", ds.Name, err)
		}
		disk.Table = &devicegraph.PartitionTable{Type: t}
	} else if len(ds.Partitions) > 0 {
		return fmt.Errorf("disk %s: partitions require a partitionTable", ds.Name)
	}

	if err := g.AddDisk(disk); err != nil {
		return err
	}

	for j, ps := range ds.Partitions {
		if err := addPartition(g, ds.Name, ps); err != nil {
			return fmt.Errorf("partitions[%d]: %w", j, err)
		}
	}
	return nil
}

func addPartition(g *devicegraph.Graph, disk string, ps v1alpha1.PartitionSpec) error {
	if ps.Size.IsZero() {
		return fmt.Errorf("size must be greater than 0")
	}
	pt := ps.Type
	if pt == 0 {
		pt = devicegraph.Primary
	}

	p, err := g.CreatePartition(devicegraph.PartitionSpec{
		Disk:   disk,
		Type:   pt,
		ID:     ps.ID,
		Start:  ps.Start,
		End:    ps.Start.Add(ps.Size),
		Number: ps.Number,
	})
	if err != nil {
		return err
	}

	device := p.Name
	if ps.Encrypted {
		if device, err = g.Encrypt(p.Name); err != nil {
			return err
		}
	}
	if ps.Filesystem != "" {
		fs := devicegraph.Filesystem{Type: ps.Filesystem, MountPoint: ps.MountPoint, Label: ps.Label}
		if err := g.Format(device, fs); err != nil {
			return err
		}
	}
	return nil
}

func addVolumeGroup(g *devicegraph.Graph, vs v1alpha1.VolumeGroupSpec) error {
	if vs.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := g.CreateVolumeGroup(vs.Name, vs.ExtentSize); err != nil {
		return err
	}
	for _, pv := range vs.PhysicalVolumes {
		if err := g.AddPhysicalVolume(vs.Name, pv); err != nil {
			return err
		}
	}
	for _, ls := range vs.LogicalVolumes {
		lv, err := g.CreateLogicalVolume(vs.Name, ls.Name, ls.Size)
		if err != nil {
			return err
		}
		if ls.Filesystem != "" {
			fs := devicegraph.Filesystem{Type: ls.Filesystem, MountPoint: ls.MountPoint, Label: ls.Label}
			if err := g.Format(lv.Path(), fs); err != nil {
				return err
			}
		}
	}
	return nil
}

// FromGraph describes g as a Devicegraph document named name.
func FromGraph(g devicegraph.Devicegraph, name string) *v1alpha1.Devicegraph {
	doc := v1alpha1.NewDevicegraph(name)

	for _, d := range g.Disks() {
		ds := v1alpha1.DiskSpec{Name: d.Name, Size: d.Size, MinGrain: d.MinGrain}
		if d.Table != nil {
			ds.PartitionTable = d.Table.Type.String()
		}
		for _, p := range g.Partitions(devicegraph.OnDisk(d.Name)) {
			ps := v1alpha1.PartitionSpec{
				Number:     p.Number,
				Type:       p.Type,
				Start:      p.Start,
				Size:       p.Size(),
				Encrypted:  p.Encryption != "",
				Filesystem: p.Filesystem,
				MountPoint: p.MountPoint,
				Label:      p.Label,
			}
			if p.Type != devicegraph.Extended {
				ps.ID = p.ID
			}
			ds.Partitions = append(ds.Partitions, ps)
		}
		doc.Spec.Disks = append(doc.Spec.Disks, ds)
	}

	for _, vg := range g.VolumeGroups() {
		vs := v1alpha1.VolumeGroupSpec{
			Name:            vg.Name,
			ExtentSize:      vg.ExtentSize,
			PhysicalVolumes: append([]string(nil), vg.PVs...),
		}
		for _, lv := range g.LogicalVolumes(vg.Name) {
			vs.LogicalVolumes = append(vs.LogicalVolumes, v1alpha1.LogicalVolumeSpec{
				Name:       lv.Name,
				Size:       lv.Size,
				Filesystem: lv.Filesystem,
				MountPoint: lv.MountPoint,
				Label:      lv.Label,
			})
		}
		doc.Spec.VolumeGroups = append(doc.Spec.VolumeGroups, vs)
	}

	return doc
}
