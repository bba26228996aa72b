package devicegraph

import (
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// FreeRegions returns the aligned free regions of the given disks, or of
// every disk with a partition table when none is given.
//
// The first grain of every disk is reserved for the partition table, and
// the last one too on GPT disks (backup header). Regions start on a grain
// boundary. They end on one too, except the region reaching the end of the
// usable area or of the extended partition, which keeps that end so the
// last partition can take the unaligned tail. Inside an extended
// partition every logical partition is preceded by one grain holding its
// extended boot record; regions inside an extended partition already have
// that grain removed from their start.
func (g *Graph) FreeRegions(disks ...string) []FreeRegion {
	if len(disks) == 0 {
		disks = g.diskOrder
	}

	var out []FreeRegion
	for _, name := range disks {
		d, ok := g.disks[name]
		if !ok || d.Table == nil {
			continue
		}
		out = append(out, g.diskFreeRegions(d)...)
	}
	return out
}

func (g *Graph) diskFreeRegions(d *Disk) []FreeRegion {
	grain := d.Grain()
	onDisk := g.Partitions(OnDisk(d.Name))

	var (
		topLevel []Partition
		logical  []Partition
		extended *Partition
	)
	for i := range onDisk {
		switch onDisk[i].Type {
		case Logical:
			logical = append(logical, onDisk[i])
		case Extended:
			extended = &onDisk[i]
			topLevel = append(topLevel, onDisk[i])
		default:
			topLevel = append(topLevel, onDisk[i])
		}
	}

	slots := d.Table.MaxPrimary() - len(topLevel)
	template := FreeRegion{
		Disk:             d.Name,
		MinGrain:         grain,
		ExtendedPossible: d.Table.ExtendedSupported() && extended == nil && slots > 0,
		PrimarySlots:     slots,
	}

	areaStart := grain
	areaEnd := d.Size
	if d.Table.Type == TableGPT {
		areaEnd = areaEnd.SubFloor(grain)
	}

	var out []FreeRegion
	if slots > 0 {
		for _, gap := range gaps(areaStart, areaEnd, topLevel, disksize.Zero) {
			if r, ok := alignedRegion(template, gap[0], gap[1], areaEnd, grain, disksize.Zero); ok {
				out = append(out, r)
			}
		}
	}

	if extended != nil {
		inner := template
		inner.InsideExtended = true
		for _, gap := range gaps(extended.Start, extended.End, logical, grain) {
			if r, ok := alignedRegion(inner, gap[0], gap[1], extended.End, grain, grain); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// gaps returns the holes of [start, end) not covered by parts. Each part is
// considered to begin overhead bytes before its start.
func gaps(start, end disksize.Size, parts []Partition, overhead disksize.Size) [][2]disksize.Size {
	var out [][2]disksize.Size
	cursor := start
	for _, p := range parts {
		used := p.Start.SubFloor(overhead)
		if used > cursor {
			out = append(out, [2]disksize.Size{cursor, used})
		}
		cursor = disksize.Max(cursor, p.End)
	}
	if end > cursor {
		out = append(out, [2]disksize.Size{cursor, end})
	}
	return out
}

// alignedRegion aligns the gap [start, end) to grain. An end equal to
// limit is kept as is.
func alignedRegion(template FreeRegion, start, end, limit, grain, reserved disksize.Size) (FreeRegion, bool) {
	start = start.CeilTo(grain).Add(reserved)
	if end != limit {
		end = end.FloorTo(grain)
	}
	if end <= start || end.SubFloor(start) < grain {
		return FreeRegion{}, false
	}
	r := template
	r.Start = start
	r.End = end
	return r, true
}
