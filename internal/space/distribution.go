package space

import (
	"slices"
	"strings"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
)

// Distribution is a set of assigned spaces covering all the planned
// partitions of an attempt.
type Distribution struct {
	Spaces []*AssignedSpace
}

// NewDistribution combines spaces into a distribution, deciding how many
// partitions of every space are logical. It returns false when the
// partition table of some disk cannot host the required partitions.
//
// Spaces inside an existing extended partition only host logical
// partitions. The other spaces of a disk host primary partitions as long as
// the free primary slots suffice; otherwise a single space becomes a new
// extended partition whose partitions are all logical, which costs one
// primary slot.
func NewDistribution(spaces []*AssignedSpace) (*Distribution, bool) {
	d := &Distribution{Spaces: slices.Clone(spaces)}

	byDisk := make(map[string][]*AssignedSpace)
	var disks []string
	for _, s := range d.Spaces {
		if _, seen := byDisk[s.Disk()]; !seen {
			disks = append(disks, s.Disk())
		}
		byDisk[s.Disk()] = append(byDisk[s.Disk()], s)
	}
	for _, disk := range disks {
		if !assignLogical(byDisk[disk]) {
			return nil, false
		}
	}
	return d, true
}

func assignLogical(spaces []*AssignedSpace) bool {
	var topLevel []*AssignedSpace
	primaries := 0
	slots := 0
	for _, s := range spaces {
		s.NumLogical = 0
		if s.PartitionType() == devicegraph.Logical {
			s.NumLogical = len(s.Partitions)
			continue
		}
		topLevel = append(topLevel, s)
		primaries += len(s.Partitions)
		slots = s.Region.PrimarySlots
	}
	if len(topLevel) == 0 {
		return true
	}

	var mustBeExtended *AssignedSpace
	for _, s := range topLevel {
		if !s.requires(devicegraph.Logical) {
			continue
		}
		if mustBeExtended != nil || s.PartitionType() == devicegraph.Primary {
			return false
		}
		mustBeExtended = s
	}
	if mustBeExtended == nil && primaries <= slots {
		return true
	}

	candidates := topLevel
	if mustBeExtended != nil {
		candidates = []*AssignedSpace{mustBeExtended}
	}
	var chosen *AssignedSpace
	for _, s := range candidates {
		if s.PartitionType() != 0 || s.requires(devicegraph.Primary) {
			continue
		}
		if primaries-len(s.Partitions)+1 > slots {
			continue
		}
		if chosen == nil || len(s.Partitions) > len(chosen.Partitions) {
			chosen = s
		}
	}
	if chosen == nil {
		return false
	}
	chosen.NumLogical = len(chosen.Partitions)
	return true
}

func (s *AssignedSpace) requires(t devicegraph.PartitionType) bool {
	for _, p := range s.Partitions {
		if p.Type == t {
			return true
		}
	}
	return false
}

// Valid reports whether every space of the distribution is valid.
func (d *Distribution) Valid() bool {
	for _, s := range d.Spaces {
		if !s.Valid() {
			return false
		}
	}
	return true
}

// Unused returns the space left over in all regions if every partition
// grows to its maximum.
func (d *Distribution) Unused() disksize.Size {
	total := disksize.Zero
	for _, s := range d.Spaces {
		total = total.Add(s.Unused())
	}
	return total
}

// SpacesCount returns the number of regions the distribution uses.
func (d *Distribution) SpacesCount() int {
	return len(d.Spaces)
}

// Better reports whether d should be preferred over other: less unused
// space first, then fewer spaces.
func (d *Distribution) Better(other *Distribution) bool {
	if other == nil {
		return true
	}
	if c := d.Unused().Cmp(other.Unused()); c != 0 {
		return c < 0
	}
	return d.SpacesCount() < other.SpacesCount()
}

func (d *Distribution) String() string {
	parts := make([]string, len(d.Spaces))
	for i, s := range d.Spaces {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}
