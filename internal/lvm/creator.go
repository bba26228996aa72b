// Package lvm materializes planned volume groups: it creates or reuses the
// group, attaches the physical volumes, deletes existing logical volumes
// according to the make-space policy and creates the planned logical
// volumes.
//
// All the work happens on a duplicate of the graph the Creator was built
// with. The original graph is never modified; on failure the duplicate is
// simply dropped.
package lvm

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// Creator builds volume groups on top of a base graph.
type Creator struct {
	graph devicegraph.Devicegraph
}

// NewCreator creates a Creator for the given base graph.
func NewCreator(g devicegraph.Devicegraph) *Creator {
	return &Creator{graph: g}
}

// Result is the outcome of CreateVolumes.
type Result struct {
	// Graph is the new graph holding the volume group.
	Graph devicegraph.Devicegraph
	// VG is the name of the created or reused volume group.
	VG string
	// Deleted lists the paths of the logical volumes deleted to make space.
	Deleted []string
	// Created lists the paths of the new logical volumes.
	Created []string
}

// CreateVolumes materializes vg on a duplicate of the base graph, using the
// partitions named in pvs as physical volumes. Encrypted partitions are
// added through their encryption layer.
//
// It fails with a *outcome.NoDiskSpaceError when the group cannot provide
// the minimum sizes of the new logical volumes.
func (c *Creator) CreateVolumes(ctx context.Context, vg *planned.VolumeGroup, pvs []string) (*Result, error) {
	log := logr.FromContextOrDiscard(ctx)
	work := c.graph.Duplicate()
	res := &Result{Graph: work}

	name, err := c.resolveGroup(work, vg)
	if err != nil {
		return nil, err
	}
	res.VG = name
	log = log.WithValues("vg", name)

	for _, pv := range pvs {
		p, ok := work.Partition(pv)
		if !ok {
			return nil, fmt.Errorf("failed to add physical volume %s: %w", pv, devicegraph.ErrNotFound)
		}
		if err := work.AddPhysicalVolume(name, p.Device()); err != nil {
			return nil, fmt.Errorf("failed to add physical volume %s: %w", p.Device(), err)
		}
		log.V(1).Info("added physical volume", "device", p.Device())
	}

	deleted, err := c.makeSpace(ctx, work, name, vg)
	if err != nil {
		return nil, err
	}
	res.Deleted = deleted

	if err := c.formatReused(work, name, vg); err != nil {
		return nil, err
	}

	created, err := c.createVolumes(ctx, work, name, vg)
	if err != nil {
		return nil, err
	}
	res.Created = created
	return res, nil
}

func (c *Creator) resolveGroup(g devicegraph.Devicegraph, vg *planned.VolumeGroup) (string, error) {
	if vg.Reuse != "" {
		if _, ok := g.VolumeGroup(vg.Reuse); !ok {
			return "", fmt.Errorf("failed to reuse volume group %s: %w", vg.Reuse, devicegraph.ErrNotFound)
		}
		return vg.Reuse, nil
	}

	base := vg.Name
	if base == "" {
		base = naming.DefaultVGName
	}
	var existing []string
	for _, other := range g.VolumeGroups() {
		existing = append(existing, other.Name)
	}
	name := naming.Available(base, naming.TakenIn(existing))
	if _, err := g.CreateVolumeGroup(name, devicegraph.DefaultExtentSize); err != nil {
		return "", fmt.Errorf("failed to create volume group %s: %w", name, err)
	}
	return name, nil
}

func (c *Creator) makeSpace(ctx context.Context, g devicegraph.Devicegraph, name string, vg *planned.VolumeGroup) ([]string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("vg", name)
	reused := vg.ReusedNames()
	deletable := func() []devicegraph.LogicalVolume {
		return g.LogicalVolumes(name, func(lv devicegraph.LogicalVolume) bool {
			return !slices.Contains(reused, lv.Name)
		})
	}

	var deleted []string
	deleteLV := func(lv devicegraph.LogicalVolume) error {
		if err := g.DeleteLogicalVolume(name, lv.Name); err != nil {
			return fmt.Errorf("failed to delete logical volume %s: %w", lv.Path(), err)
		}
		log.Info("deleted logical volume", "lv", lv.Name, "size", lv.Size.String())
		deleted = append(deleted, lv.Path())
		return nil
	}

	switch vg.Policy() {
	case planned.Keep:
		return nil, nil

	case planned.Remove:
		for _, lv := range deletable() {
			if err := deleteLV(lv); err != nil {
				return deleted, err
			}
		}
		return deleted, nil

	case planned.Needed:
		current, _ := g.VolumeGroup(name)
		needed := vg.MinSize(current.ExtentSize)
		for {
			current, _ = g.VolumeGroup(name)
			available := current.AvailableSpace()
			if !available.Less(needed) {
				return deleted, nil
			}
			missing := needed.MustSub(available)
			victim, ok := deletionCandidate(deletable(), missing)
			if !ok {
				return deleted, &outcome.NoDiskSpaceError{VG: name, Missing: missing}
			}
			if err := deleteLV(victim); err != nil {
				return deleted, err
			}
		}

	default:
		return nil, fmt.Errorf("%w: unknown make-space policy %q", planned.ErrInvalid, vg.MakeSpacePolicy)
	}
}

// deletionCandidate picks the logical volume to delete when missing bytes
// are needed: the smallest one that frees enough space alone, otherwise the
// largest one. Ties go to the volume created first.
func deletionCandidate(lvs []devicegraph.LogicalVolume, missing disksize.Size) (devicegraph.LogicalVolume, bool) {
	if len(lvs) == 0 {
		return devicegraph.LogicalVolume{}, false
	}

	var (
		smallest *devicegraph.LogicalVolume
		largest  = &lvs[0]
	)
	for i := range lvs {
		lv := &lvs[i]
		if !lv.Size.Less(missing) && (smallest == nil || lv.Size.Less(smallest.Size)) {
			smallest = lv
		}
		if largest.Size.Less(lv.Size) {
			largest = lv
		}
	}
	if smallest != nil {
		return *smallest, true
	}
	return *largest, true
}

func (c *Creator) formatReused(g devicegraph.Devicegraph, name string, vg *planned.VolumeGroup) error {
	for _, lv := range vg.LVs {
		if lv.Reuse == "" {
			continue
		}
		if len(g.LogicalVolumes(name, devicegraph.LVNamed(lv.Reuse))) == 0 {
			return fmt.Errorf("failed to reuse logical volume %s: %w", naming.LogicalVolumePath(name, lv.Reuse), devicegraph.ErrNotFound)
		}
		if err := lv.FormatDirective.Apply(g, naming.LogicalVolumePath(name, lv.Reuse)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Creator) createVolumes(ctx context.Context, g devicegraph.Devicegraph, name string, vg *planned.VolumeGroup) ([]string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("vg", name)

	current, _ := g.VolumeGroup(name)
	lvs := vg.NewLVs()
	if err := planned.DistributeSpace(lvs, current.AvailableSpace(), current.ExtentSize); err != nil {
		missing := vg.MinSize(current.ExtentSize).SubFloor(current.AvailableSpace())
		return nil, fmt.Errorf("failed to distribute space: %w", &outcome.NoDiskSpaceError{VG: name, Missing: missing})
	}

	var created []string
	for _, lv := range lvs {
		base := lv.Name
		if base == "" {
			base = naming.DefaultLVName
		}
		lvName := naming.Available(base, func(n string) bool {
			return len(g.LogicalVolumes(name, devicegraph.LVNamed(n))) > 0
		})
		out, err := g.CreateLogicalVolume(name, lvName, lv.Size)
		if err != nil {
			return created, fmt.Errorf("failed to create logical volume %s: %w", naming.LogicalVolumePath(name, lvName), err)
		}
		if err := lv.FormatDirective.Apply(g, out.Path()); err != nil {
			return created, err
		}
		log.Info("created logical volume", "lv", lvName, "size", out.Size.String(), "mountPoint", lv.MountPoint)
		created = append(created, out.Path())
	}
	return created, nil
}
