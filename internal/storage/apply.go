package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// ActionKind identifies a libvirt change.
type ActionKind string

const (
	ActionDeleteLV        ActionKind = "delete-lv"
	ActionDeleteVG        ActionKind = "delete-vg"
	ActionDeletePartition ActionKind = "delete-partition"
	ActionCreateTable     ActionKind = "create-table"
	ActionCreatePartition ActionKind = "create-partition"
	ActionCreateVG        ActionKind = "create-vg"
	ActionCreateLV        ActionKind = "create-lv"
)

// ErrUnsupported is returned by Plan for changes libvirt storage pools
// cannot express.
var ErrUnsupported = errors.New("change not supported by libvirt storage pools")

// Action is a single change turning one devicegraph into another.
type Action struct {
	Kind ActionKind
	// Device is the partition, volume group or logical volume path acted
	// on. For create-table it is the disk.
	Device string
	// Parent is the disk of a partition or the volume group of a logical
	// volume.
	Parent string
	Size   disksize.Size
	// Format is the volume format of a partition, or the table format of a
	// create-table action.
	Format string
	// PVs lists the physical volumes of a new volume group.
	PVs []string
	// PVDisks holds, for every entry of PVs that is a plain partition, the
	// disk of that partition. It is empty for other devices.
	PVDisks []string
}

func (a Action) String() string {
	switch a.Kind {
	case ActionCreateTable:
		return fmt.Sprintf("%s %s (%s)", a.Kind, a.Device, a.Format)
	case ActionCreatePartition:
		return fmt.Sprintf("%s %s on %s (%s, %s)", a.Kind, a.Device, a.Parent, a.Size, a.Format)
	case ActionCreateVG:
		return fmt.Sprintf("%s %s on %s", a.Kind, a.Device, strings.Join(a.PVs, ","))
	case ActionCreateLV:
		return fmt.Sprintf("%s %s (%s)", a.Kind, a.Device, a.Size)
	default:
		return fmt.Sprintf("%s %s", a.Kind, a.Device)
	}
}

// ApplyResult lists the devices changed by Apply.
type ApplyResult struct {
	Deleted []string
	Created []string
}

// Plan computes the actions turning before into after.
//
// Volume groups and logical volumes are matched by UUID, partitions by
// name and geometry: a partition that moved, changed size, type or id is
// deleted and created again. Actions are ordered so that every device is
// gone before its space is reused: logical volumes, volume groups and
// partitions are deleted first, then tables, partitions, volume groups and
// logical volumes are created.
//
// Filesystems are not managed. Plan fails with ErrUnsupported for new
// encryption layers and for physical volumes added to or removed from an
// existing volume group.
func Plan(before, after devicegraph.Devicegraph) ([]Action, error) {
	var (
		deleteLVs, deleteVGs, deleteParts []Action
		createTables, createParts         []Action
		createVGs, createLVs              []Action
	)

	beforeVGs := vgsByUUID(before)
	afterVGs := vgsByUUID(after)

	for _, vg := range before.VolumeGroups() {
		kept, ok := afterVGs[vg.UUID]
		if !ok {
			deleteVGs = append(deleteVGs, Action{Kind: ActionDeleteVG, Device: vg.Name})
			continue
		}
		if kept.Name != vg.Name {
			return nil, fmt.Errorf("%w: volume group %s renamed to %s", ErrUnsupported, vg.Name, kept.Name)
		}
		if !sameMembers(vg.PVs, kept.PVs) {
			return nil, fmt.Errorf("%w: physical volumes of %s changed", ErrUnsupported, vg.Name)
		}
		afterLVs := lvsByUUID(after, kept.Name)
		for _, lv := range before.LogicalVolumes(vg.Name) {
			if _, ok := afterLVs[lv.UUID]; !ok {
				deleteLVs = append(deleteLVs, Action{Kind: ActionDeleteLV, Device: lv.Path(), Parent: vg.Name})
			}
		}
	}

	for _, d := range after.Disks() {
		old, ok := before.Disk(d.Name)
		if !ok {
			return nil, fmt.Errorf("%w: disk %s is not probed", ErrUnsupported, d.Name)
		}
		if d.Table != nil && (old.Table == nil || old.Table.Type != d.Table.Type) {
			createTables = append(createTables, Action{
				Kind:   ActionCreateTable,
				Device: d.Name,
				Format: tableFormat(d.Table.Type),
			})
		}
	}

	for _, p := range before.Partitions() {
		if q, ok := after.Partition(p.Name); ok && samePlacement(p, q) {
			continue
		}
		deleteParts = append(deleteParts, Action{Kind: ActionDeletePartition, Device: p.Name, Parent: p.Disk})
	}
	// Logical partitions are renumbered when a lower one goes away.
	slices.Reverse(deleteParts)

	for _, p := range after.Partitions() {
		if q, ok := before.Partition(p.Name); ok && samePlacement(p, q) {
			if p.Encryption != "" && q.Encryption == "" {
				return nil, fmt.Errorf("%w: encrypting existing partition %s", ErrUnsupported, p.Name)
			}
			continue
		}
		if p.Encryption != "" {
			return nil, fmt.Errorf("%w: encrypted partition %s", ErrUnsupported, p.Name)
		}
		createParts = append(createParts, Action{
			Kind:   ActionCreatePartition,
			Device: p.Name,
			Parent: p.Disk,
			Size:   p.Size(),
			Format: VolumeFormat(partitionID(p)),
		})
	}

	for _, vg := range after.VolumeGroups() {
		if _, ok := beforeVGs[vg.UUID]; !ok {
			pvDisks := make([]string, len(vg.PVs))
			for i, pv := range vg.PVs {
				if p, ok := after.Partition(pv); ok {
					pvDisks[i] = p.Disk
				}
			}
			createVGs = append(createVGs, Action{
				Kind:    ActionCreateVG,
				Device:  vg.Name,
				Size:    vg.Size,
				PVs:     slices.Clone(vg.PVs),
				PVDisks: pvDisks,
			})
		}
		var beforeLVs map[string]devicegraph.LogicalVolume
		if _, ok := beforeVGs[vg.UUID]; ok {
			beforeLVs = lvsByUUID(before, vg.Name)
		}
		for _, lv := range after.LogicalVolumes(vg.Name) {
			if _, ok := beforeLVs[lv.UUID]; ok {
				continue
			}
			createLVs = append(createLVs, Action{
				Kind:   ActionCreateLV,
				Device: lv.Path(),
				Parent: vg.Name,
				Size:   lv.Size,
			})
		}
	}

	return slices.Concat(deleteLVs, deleteVGs, deleteParts, createTables, createParts, createVGs, createLVs), nil
}

func partitionID(p devicegraph.Partition) devicegraph.PartitionID {
	if p.Type == devicegraph.Extended {
		return devicegraph.IDExtended
	}
	return p.ID
}

func samePlacement(a, b devicegraph.Partition) bool {
	return a.Disk == b.Disk && a.Start == b.Start && a.End == b.End &&
		a.Type == b.Type && partitionID(a) == partitionID(b)
}

func sameMembers(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func vgsByUUID(g devicegraph.Devicegraph) map[string]devicegraph.VolumeGroup {
	out := make(map[string]devicegraph.VolumeGroup)
	for _, vg := range g.VolumeGroups() {
		out[vg.UUID] = vg
	}
	return out
}

func lvsByUUID(g devicegraph.Devicegraph, vg string) map[string]devicegraph.LogicalVolume {
	out := make(map[string]devicegraph.LogicalVolume)
	for _, lv := range g.LogicalVolumes(vg) {
		out[lv.UUID] = lv
	}
	return out
}

// poolIndex maps disks and volume groups to the pools managing them.
type poolIndex struct {
	disks map[string]string
	vgs   map[string]string
	// created maps planned partitions to the devices libvirt created.
	created map[string]string
}

func (m *Manager) indexPools(ctx context.Context) (*poolIndex, error) {
	pools, err := m.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	idx := &poolIndex{
		disks:   make(map[string]string),
		vgs:     make(map[string]string),
		created: make(map[string]string),
	}
	for _, p := range pools {
		switch p.Type {
		case PoolTypeDisk:
			if len(p.Devices) > 0 {
				idx.disks[p.Devices[0]] = p.Name
			}
		case PoolTypeLogical:
			vg := p.Source
			if vg == "" {
				vg = p.Name
			}
			idx.vgs[vg] = p.Name
		}
	}
	return idx, nil
}

func (idx *poolIndex) disk(name string) (string, error) {
	pool, ok := idx.disks[name]
	if !ok {
		return "", fmt.Errorf("no disk pool manages %s", name)
	}
	return pool, nil
}

func (idx *poolIndex) vg(name string) (string, error) {
	pool, ok := idx.vgs[name]
	if !ok {
		return "", fmt.Errorf("no logical pool manages volume group %s", name)
	}
	return pool, nil
}

// Apply changes the libvirt pools so that the devices they manage match
// after. before must be the devicegraph the pools were probed into.
//
// The whole plan is computed before anything is changed, so an
// unsupported change leaves the pools untouched. A failing action stops
// Apply; the result lists what was done until then.
func (m *Manager) Apply(ctx context.Context, before, after devicegraph.Devicegraph) (*ApplyResult, error) {
	log := logr.FromContextOrDiscard(ctx)

	actions, err := Plan(before, after)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	if len(actions) == 0 {
		log.Info("devices already match the proposal")
		return result, nil
	}

	idx, err := m.indexPools(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range actions {
		log.Info("applying", "action", a.String())
		if err := m.apply(ctx, idx, a); err != nil {
			return result, fmt.Errorf("failed to %s: %w", a, err)
		}
		switch a.Kind {
		case ActionDeleteLV, ActionDeleteVG, ActionDeletePartition:
			result.Deleted = append(result.Deleted, a.Device)
		case ActionCreatePartition, ActionCreateVG, ActionCreateLV:
			result.Created = append(result.Created, a.Device)
		}
	}
	return result, nil
}

func (m *Manager) apply(ctx context.Context, idx *poolIndex, a Action) error {
	switch a.Kind {
	case ActionDeleteLV:
		pool, err := idx.vg(a.Parent)
		if err != nil {
			return err
		}
		return m.DeleteVolume(ctx, pool, path.Base(a.Device))

	case ActionDeleteVG:
		pool, err := idx.vg(a.Device)
		if err != nil {
			return err
		}
		if err := m.DeletePool(ctx, pool, true); err != nil {
			return err
		}
		delete(idx.vgs, a.Device)
		return nil

	case ActionDeletePartition:
		pool, err := idx.disk(a.Parent)
		if err != nil {
			return err
		}
		return m.DeleteVolume(ctx, pool, path.Base(a.Device))

	case ActionCreateTable:
		pool, err := idx.disk(a.Device)
		if err != nil {
			return err
		}
		return m.LabelDisk(ctx, pool, a.Format)

	case ActionCreatePartition:
		pool, err := idx.disk(a.Parent)
		if err != nil {
			return err
		}
		created, err := m.CreateVolume(ctx, pool, VolumeSpec{
			Name:     path.Base(a.Device),
			Capacity: a.Size,
			Format:   a.Format,
		})
		if err != nil {
			return err
		}
		if created != a.Device {
			// libvirt chooses the slot of a new partition itself.
			logr.FromContextOrDiscard(ctx).Info("partition created under another name",
				"planned", a.Device, "created", created)
		}
		idx.created[a.Device] = created
		return nil

	case ActionCreateVG:
		pvs, err := m.physicalVolumes(ctx, idx, a)
		if err != nil {
			return err
		}
		if err := m.CreateLogicalPool(ctx, a.Device, pvs); err != nil {
			return err
		}
		idx.vgs[a.Device] = a.Device
		return nil

	case ActionCreateLV:
		pool, err := idx.vg(a.Parent)
		if err != nil {
			return err
		}
		_, err = m.CreateVolume(ctx, pool, VolumeSpec{Name: path.Base(a.Device), Capacity: a.Size})
		return err

	default:
		return fmt.Errorf("unknown action %q", a.Kind)
	}
}

// physicalVolumes returns the device paths of the physical volumes of a
// create-vg action. Partitions created by Apply take the path libvirt
// reported; other partitions are looked up in their disk pool.
func (m *Manager) physicalVolumes(ctx context.Context, idx *poolIndex, a Action) ([]string, error) {
	pvs := make([]string, len(a.PVs))
	for i, pv := range a.PVs {
		if created, ok := idx.created[pv]; ok {
			pvs[i] = created
			continue
		}
		pvs[i] = pv
		if i >= len(a.PVDisks) || a.PVDisks[i] == "" {
			continue
		}
		pool, err := idx.disk(a.PVDisks[i])
		if err != nil {
			return nil, err
		}
		if pvs[i], err = m.GetVolumePath(ctx, pool, path.Base(pv)); err != nil {
			return nil, fmt.Errorf("physical volume %s: %w", pv, err)
		}
	}
	return pvs, nil
}
