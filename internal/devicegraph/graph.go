package devicegraph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/naming"
)

// Graph is the in-memory Devicegraph implementation.
//
// The zero value is not usable; create graphs with New.
type Graph struct {
	diskOrder  []string
	disks      map[string]*Disk
	partitions map[string]*Partition

	vgOrder []string
	vgs     map[string]*vgEntry
}

type vgEntry struct {
	vg  VolumeGroup
	lvs []*LogicalVolume
}

var _ Devicegraph = (*Graph)(nil)

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		disks:      make(map[string]*Disk),
		partitions: make(map[string]*Partition),
		vgs:        make(map[string]*vgEntry),
	}
}

// AddDisk registers a disk. Probing code and tests use it to build graphs.
func (g *Graph) AddDisk(d Disk) error {
	if d.Name == "" {
		return fmt.Errorf("%w: disk name is required", ErrInvalid)
	}
	if g.DeviceExists(d.Name) {
		return fmt.Errorf("%w: %s", ErrExists, d.Name)
	}
	if d.Table != nil {
		table := *d.Table
		d.Table = &table
	}
	g.disks[d.Name] = &d
	g.diskOrder = append(g.diskOrder, d.Name)
	return nil
}

// Duplicate returns a deep copy of the graph.
func (g *Graph) Duplicate() Devicegraph {
	return g.clone()
}

func (g *Graph) clone() *Graph {
	out := New()
	out.diskOrder = slices.Clone(g.diskOrder)
	for name, d := range g.disks {
		disk := *d
		if d.Table != nil {
			table := *d.Table
			disk.Table = &table
		}
		out.disks[name] = &disk
	}
	for name, p := range g.partitions {
		part := *p
		out.partitions[name] = &part
	}
	out.vgOrder = slices.Clone(g.vgOrder)
	for name, e := range g.vgs {
		entry := &vgEntry{vg: e.vg}
		entry.vg.PVs = slices.Clone(e.vg.PVs)
		for _, lv := range e.lvs {
			copied := *lv
			entry.lvs = append(entry.lvs, &copied)
		}
		out.vgs[name] = entry
	}
	return out
}

// Disks returns all disks in the order they were added.
func (g *Graph) Disks() []Disk {
	out := make([]Disk, 0, len(g.diskOrder))
	for _, name := range g.diskOrder {
		out = append(out, snapshotDisk(g.disks[name]))
	}
	return out
}

// Disk looks up a disk by name.
func (g *Graph) Disk(name string) (Disk, bool) {
	d, ok := g.disks[name]
	if !ok {
		return Disk{}, false
	}
	return snapshotDisk(d), true
}

func snapshotDisk(d *Disk) Disk {
	out := *d
	if d.Table != nil {
		table := *d.Table
		out.Table = &table
	}
	return out
}

// Partitions returns the partitions accepted by all filters, ordered by
// disk and start offset.
func (g *Graph) Partitions(filters ...PartitionFilter) []Partition {
	var out []Partition
	for _, p := range g.partitions {
		if acceptPartition(*p, filters) {
			out = append(out, *p)
		}
	}
	g.sortPartitions(out)
	return out
}

func acceptPartition(p Partition, filters []PartitionFilter) bool {
	for _, f := range filters {
		if !f(p) {
			return false
		}
	}
	return true
}

func (g *Graph) sortPartitions(parts []Partition) {
	diskIndex := make(map[string]int, len(g.diskOrder))
	for i, name := range g.diskOrder {
		diskIndex[name] = i
	}
	slices.SortFunc(parts, func(a, b Partition) int {
		if diskIndex[a.Disk] != diskIndex[b.Disk] {
			return diskIndex[a.Disk] - diskIndex[b.Disk]
		}
		if c := a.Start.Cmp(b.Start); c != 0 {
			return c
		}
		return int(a.Type) - int(b.Type)
	})
}

// Partition looks up a partition by name.
func (g *Graph) Partition(name string) (Partition, bool) {
	p, ok := g.partitions[name]
	if !ok {
		return Partition{}, false
	}
	return *p, true
}

// PartitionByDevice resolves a partition from its name or the name of its
// encryption layer.
func (g *Graph) PartitionByDevice(device string) (Partition, bool) {
	if p, ok := g.partitions[device]; ok {
		return *p, true
	}
	for _, p := range g.partitions {
		if p.Encryption != "" && p.Encryption == device {
			return *p, true
		}
	}
	return Partition{}, false
}

// VolumeGroups returns the volume groups accepted by all filters.
func (g *Graph) VolumeGroups(filters ...VGFilter) []VolumeGroup {
	var out []VolumeGroup
	for _, name := range g.vgOrder {
		vg := g.snapshotVG(g.vgs[name])
		accepted := true
		for _, f := range filters {
			if !f(vg) {
				accepted = false
				break
			}
		}
		if accepted {
			out = append(out, vg)
		}
	}
	return out
}

// VolumeGroup looks up a volume group by name.
func (g *Graph) VolumeGroup(name string) (VolumeGroup, bool) {
	e, ok := g.vgs[name]
	if !ok {
		return VolumeGroup{}, false
	}
	return g.snapshotVG(e), true
}

func (g *Graph) snapshotVG(e *vgEntry) VolumeGroup {
	vg := e.vg
	vg.PVs = slices.Clone(e.vg.PVs)
	vg.Size = disksize.Zero
	for _, pv := range vg.PVs {
		vg.Size = vg.Size.Add(g.deviceSize(pv).FloorTo(vg.ExtentSize))
	}
	vg.Used = disksize.Zero
	for _, lv := range e.lvs {
		vg.Used = vg.Used.Add(lv.Size)
	}
	return vg
}

func (g *Graph) deviceSize(device string) disksize.Size {
	if p, ok := g.PartitionByDevice(device); ok {
		return p.Size()
	}
	return disksize.Zero
}

// LogicalVolumes returns the logical volumes of a volume group in creation
// order.
func (g *Graph) LogicalVolumes(vg string, filters ...LVFilter) []LogicalVolume {
	e, ok := g.vgs[vg]
	if !ok {
		return nil
	}
	var out []LogicalVolume
	for _, lv := range e.lvs {
		accepted := true
		for _, f := range filters {
			if !f(*lv) {
				accepted = false
				break
			}
		}
		if accepted {
			out = append(out, *lv)
		}
	}
	return out
}

// DeviceExists reports whether a device with the given name exists.
func (g *Graph) DeviceExists(name string) bool {
	if _, ok := g.disks[name]; ok {
		return true
	}
	if _, ok := g.PartitionByDevice(name); ok {
		return true
	}
	if vgName, lvName, ok := naming.SplitLogicalVolumePath(name); ok {
		if e, found := g.vgs[vgName]; found {
			for _, lv := range e.lvs {
				if lv.Name == lvName {
					return true
				}
			}
		}
	}
	return false
}

// CreatePartitionTable creates an empty partition table on a disk. The disk
// must not hold partitions.
func (g *Graph) CreatePartitionTable(disk string, t TableType) error {
	d, ok := g.disks[disk]
	if !ok {
		return fmt.Errorf("%w: disk %s", ErrNotFound, disk)
	}
	if len(g.Partitions(OnDisk(disk))) > 0 {
		return fmt.Errorf("%w: disk %s still has partitions", ErrInvalid, disk)
	}
	if _, known := tableTypeNames[t]; !known {
		return fmt.Errorf("%w: unknown table type %d", ErrInvalid, int(t))
	}
	d.Table = &PartitionTable{Type: t}
	return nil
}

// CreatePartition validates the geometry of spec against the disk and its
// existing partitions and creates the partition.
func (g *Graph) CreatePartition(spec PartitionSpec) (Partition, error) {
	d, ok := g.disks[spec.Disk]
	if !ok {
		return Partition{}, fmt.Errorf("%w: disk %s", ErrNotFound, spec.Disk)
	}
	if d.Table == nil {
		return Partition{}, fmt.Errorf("%w: disk %s has no partition table", ErrInvalid, spec.Disk)
	}
	if spec.End <= spec.Start || spec.End > d.Size {
		return Partition{}, fmt.Errorf("%w: region %s-%s outside disk %s", ErrInvalid, spec.Start, spec.End, spec.Disk)
	}

	onDisk := g.Partitions(OnDisk(spec.Disk))
	var extended *Partition
	primaries := 0
	for i := range onDisk {
		switch onDisk[i].Type {
		case Extended:
			extended = &onDisk[i]
			primaries++
		case Primary:
			primaries++
		}
	}

	number := 0
	switch spec.Type {
	case Primary, Extended:
		if spec.Type == Extended {
			if !d.Table.ExtendedSupported() {
				return Partition{}, fmt.Errorf("%w: %s tables do not support extended partitions", ErrInvalid, d.Table.Type)
			}
			if extended != nil {
				return Partition{}, fmt.Errorf("%w: disk %s already has an extended partition", ErrExists, spec.Disk)
			}
		}
		if primaries >= d.Table.MaxPrimary() {
			return Partition{}, fmt.Errorf("%w: no free primary slot on %s", ErrNoSpace, spec.Disk)
		}
		for _, p := range onDisk {
			if p.Type != Logical && overlaps(spec.Start, spec.End, p.Start, p.End) {
				return Partition{}, fmt.Errorf("%w: region overlaps %s", ErrNoSpace, p.Name)
			}
		}
		number = g.freePrimaryNumber(onDisk, d.Table.MaxPrimary())
	case Logical:
		if extended == nil {
			return Partition{}, fmt.Errorf("%w: logical partition requires an extended partition on %s", ErrInvalid, spec.Disk)
		}
		if spec.Start < extended.Start || spec.End > extended.End {
			return Partition{}, fmt.Errorf("%w: logical partition outside extended %s", ErrInvalid, extended.Name)
		}
		for _, p := range onDisk {
			if p.Type == Logical && overlaps(spec.Start, spec.End, p.Start, p.End) {
				return Partition{}, fmt.Errorf("%w: region overlaps %s", ErrNoSpace, p.Name)
			}
		}
		number = 5
		for _, p := range onDisk {
			if p.Type == Logical && p.Number >= number {
				number = p.Number + 1
			}
		}
	default:
		return Partition{}, fmt.Errorf("%w: unknown partition type %d", ErrInvalid, int(spec.Type))
	}

	if spec.Number != 0 {
		if err := checkNumber(spec, onDisk, d.Table.MaxPrimary()); err != nil {
			return Partition{}, err
		}
		number = spec.Number
	}

	id := spec.ID
	if spec.Type == Extended {
		id = IDExtended
	} else if id == 0 {
		id = IDLinux
	}

	p := &Partition{
		Name:   naming.PartitionName(spec.Disk, number),
		Disk:   spec.Disk,
		Number: number,
		Type:   spec.Type,
		ID:     id,
		Start:  spec.Start,
		End:    spec.End,
	}
	g.partitions[p.Name] = p
	return *p, nil
}

// checkNumber validates a requested partition number: 1 to max for primary
// and extended partitions, 5 or more for logical ones, never taken.
func checkNumber(spec PartitionSpec, onDisk []Partition, max int) error {
	if spec.Type == Logical {
		if spec.Number < 5 {
			return fmt.Errorf("%w: logical partition number %d below 5", ErrInvalid, spec.Number)
		}
	} else if spec.Number < 1 || spec.Number > max {
		return fmt.Errorf("%w: partition number %d outside 1-%d", ErrInvalid, spec.Number, max)
	}
	for _, p := range onDisk {
		if p.Number == spec.Number {
			return fmt.Errorf("%w: partition number %d on %s", ErrExists, spec.Number, spec.Disk)
		}
	}
	return nil
}

func (g *Graph) freePrimaryNumber(onDisk []Partition, max int) int {
	used := make(map[int]bool)
	for _, p := range onDisk {
		used[p.Number] = true
	}
	for n := 1; n <= max; n++ {
		if !used[n] {
			return n
		}
	}
	return max + 1
}

func overlaps(aStart, aEnd, bStart, bEnd disksize.Size) bool {
	return aStart < bEnd && bStart < aEnd
}

// DeletePartition deletes a partition. Deleting an extended partition also
// deletes its logical partitions. Every block device built on a deleted
// partition (encryption layer, PV membership) disappears with it, and a
// volume group left without PVs is deleted with its logical volumes.
//
// The returned names start with the requested partition.
func (g *Graph) DeletePartition(name string) ([]string, error) {
	p, ok := g.partitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: partition %s", ErrNotFound, name)
	}

	victims := []Partition{*p}
	if p.Type == Extended {
		victims = append(victims, g.Partitions(OnDisk(p.Disk), OfType(Logical))...)
	}

	deleted := make([]string, 0, len(victims))
	for _, v := range victims {
		g.detachPhysicalVolume(v.Device())
		delete(g.partitions, v.Name)
		deleted = append(deleted, v.Name)
	}
	return deleted, nil
}

func (g *Graph) detachPhysicalVolume(device string) {
	for _, vgName := range slices.Clone(g.vgOrder) {
		e := g.vgs[vgName]
		idx := slices.Index(e.vg.PVs, device)
		if idx < 0 {
			continue
		}
		e.vg.PVs = slices.Delete(e.vg.PVs, idx, idx+1)
		if len(e.vg.PVs) == 0 {
			delete(g.vgs, vgName)
			g.vgOrder = slices.DeleteFunc(g.vgOrder, func(n string) bool { return n == vgName })
		}
	}
}

// Encrypt adds an encryption layer on top of a partition.
func (g *Graph) Encrypt(partition string) (string, error) {
	p, ok := g.partitions[partition]
	if !ok {
		return "", fmt.Errorf("%w: partition %s", ErrNotFound, partition)
	}
	if p.Encryption != "" {
		return "", fmt.Errorf("%w: %s is already encrypted", ErrExists, partition)
	}
	p.Encryption = naming.EncryptionName(p.Name)
	return p.Encryption, nil
}

// CreateVolumeGroup creates an empty volume group.
func (g *Graph) CreateVolumeGroup(name string, extentSize disksize.Size) (VolumeGroup, error) {
	if name == "" {
		return VolumeGroup{}, fmt.Errorf("%w: volume group name is required", ErrInvalid)
	}
	if _, ok := g.vgs[name]; ok {
		return VolumeGroup{}, fmt.Errorf("%w: volume group %s", ErrExists, name)
	}
	if extentSize.IsZero() {
		extentSize = DefaultExtentSize
	}
	e := &vgEntry{vg: VolumeGroup{
		Name:       name,
		UUID:       uuid.NewString(),
		ExtentSize: extentSize,
	}}
	g.vgs[name] = e
	g.vgOrder = append(g.vgOrder, name)
	return g.snapshotVG(e), nil
}

// AddPhysicalVolume adds a partition or encryption layer to a volume group.
func (g *Graph) AddPhysicalVolume(vg, device string) error {
	e, ok := g.vgs[vg]
	if !ok {
		return fmt.Errorf("%w: volume group %s", ErrNotFound, vg)
	}
	if _, ok := g.PartitionByDevice(device); !ok {
		return fmt.Errorf("%w: block device %s", ErrNotFound, device)
	}
	for _, other := range g.vgs {
		if slices.Contains(other.vg.PVs, device) {
			return fmt.Errorf("%w: %s is already a physical volume of %s", ErrExists, device, other.vg.Name)
		}
	}
	e.vg.PVs = append(e.vg.PVs, device)
	return nil
}

// CreateLogicalVolume creates a logical volume. The size is rounded down to
// the extent size of the group.
func (g *Graph) CreateLogicalVolume(vg, name string, size disksize.Size) (LogicalVolume, error) {
	e, ok := g.vgs[vg]
	if !ok {
		return LogicalVolume{}, fmt.Errorf("%w: volume group %s", ErrNotFound, vg)
	}
	if name == "" {
		return LogicalVolume{}, fmt.Errorf("%w: logical volume name is required", ErrInvalid)
	}
	for _, lv := range e.lvs {
		if lv.Name == name {
			return LogicalVolume{}, fmt.Errorf("%w: logical volume %s/%s", ErrExists, vg, name)
		}
	}
	size = size.FloorTo(e.vg.ExtentSize)
	if size.IsZero() {
		return LogicalVolume{}, fmt.Errorf("%w: logical volume %s/%s smaller than one extent", ErrInvalid, vg, name)
	}
	if available := g.snapshotVG(e).AvailableSpace(); size > available {
		return LogicalVolume{}, fmt.Errorf("%w: %s requested, %s available in %s", ErrNoSpace, size, available, vg)
	}
	lv := &LogicalVolume{
		VG:   vg,
		Name: name,
		UUID: uuid.NewString(),
		Size: size,
	}
	e.lvs = append(e.lvs, lv)
	return *lv, nil
}

// DeleteLogicalVolume deletes a logical volume.
func (g *Graph) DeleteLogicalVolume(vg, name string) error {
	e, ok := g.vgs[vg]
	if !ok {
		return fmt.Errorf("%w: volume group %s", ErrNotFound, vg)
	}
	idx := slices.IndexFunc(e.lvs, func(lv *LogicalVolume) bool { return lv.Name == name })
	if idx < 0 {
		return fmt.Errorf("%w: logical volume %s/%s", ErrNotFound, vg, name)
	}
	e.lvs = slices.Delete(e.lvs, idx, idx+1)
	return nil
}

// Format applies a filesystem to a partition, encryption layer or logical
// volume.
func (g *Graph) Format(device string, fs Filesystem) error {
	if vgName, lvName, ok := naming.SplitLogicalVolumePath(device); ok {
		if e, found := g.vgs[vgName]; found {
			for _, lv := range e.lvs {
				if lv.Name == lvName {
					lv.Filesystem, lv.MountPoint, lv.Label = fs.Type, fs.MountPoint, fs.Label
					return nil
				}
			}
		}
	}
	p, ok := g.PartitionByDevice(device)
	if !ok {
		return fmt.Errorf("%w: block device %s", ErrNotFound, device)
	}
	stored := g.partitions[p.Name]
	stored.Filesystem, stored.MountPoint, stored.Label = fs.Type, fs.MountPoint, fs.Label
	return nil
}
