// Package space decides where planned partitions go: it binds planned
// partitions to free regions (AssignedSpace), combines those bindings into
// distributions, picks the best distribution for a set of regions and
// finally creates the partitions of a distribution on a device graph.
package space

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// AssignedSpace is one free region together with the planned partitions
// assigned to it. It lives for a single allocation attempt.
type AssignedSpace struct {
	Region     devicegraph.FreeRegion
	Partitions []*planned.Partition

	// NumLogical is the number of planned partitions that will be logical.
	NumLogical int

	partitionType devicegraph.PartitionType
	// last is the partition SortPartitions moved to the end.
	last *planned.Partition
}

// NewAssignedSpace binds partitions to region. The partition slice is
// copied; the planned partitions themselves are shared.
func NewAssignedSpace(region devicegraph.FreeRegion, partitions []*planned.Partition) *AssignedSpace {
	s := &AssignedSpace{
		Region:     region,
		Partitions: slices.Clone(partitions),
	}
	switch {
	case region.InsideExtended:
		s.partitionType = devicegraph.Logical
	case !region.ExtendedPossible:
		s.partitionType = devicegraph.Primary
	}
	return s
}

// PartitionType returns the only partition type the region can host, or
// zero when both primary and logical partitions are possible.
func (s *AssignedSpace) PartitionType() devicegraph.PartitionType {
	return s.partitionType
}

// Disk returns the name of the disk holding the region.
func (s *AssignedSpace) Disk() string {
	return s.Region.Disk
}

// MinGrain returns the allocation granularity of the region's disk.
func (s *AssignedSpace) MinGrain() disksize.Size {
	if s.Region.MinGrain.IsZero() {
		return devicegraph.DefaultGrain
	}
	return s.Region.MinGrain
}

// DiskSize returns the raw size of the region.
func (s *AssignedSpace) DiskSize() disksize.Size {
	return s.Region.Size()
}

// OverheadOfLogical returns the space taken by the boot record preceding
// every logical partition.
func (s *AssignedSpace) OverheadOfLogical() disksize.Size {
	return s.MinGrain()
}

// UsableSize returns the region size minus the boot records of the logical
// partitions. Inside an existing extended partition the first boot record
// is already excluded from the region.
func (s *AssignedSpace) UsableSize() disksize.Size {
	logical := s.NumLogical
	if logical == 0 {
		return s.DiskSize()
	}
	if s.partitionType == devicegraph.Logical {
		logical--
	}
	overhead := s.OverheadOfLogical().MulDiv(uint64(logical), 1)
	return s.DiskSize().SubFloor(overhead)
}

// Unused returns the space left over if every partition grows to its
// maximum.
func (s *AssignedSpace) Unused() disksize.Size {
	return s.UsableSize().SubFloor(s.sumMax())
}

// ExtraSize returns the space beyond the partition minima, ignoring the
// boot record overhead.
func (s *AssignedSpace) ExtraSize() disksize.Size {
	return s.DiskSize().SubFloor(s.sumMin(disksize.Zero))
}

// UsableExtraSize returns the space beyond the partition minima once the
// boot record overhead is subtracted.
func (s *AssignedSpace) UsableExtraSize() disksize.Size {
	return s.UsableSize().SubFloor(s.sumMin(disksize.Zero))
}

func (s *AssignedSpace) sumMin(grain disksize.Size) disksize.Size {
	mins := make([]disksize.Size, len(s.Partitions))
	for i, p := range s.Partitions {
		mins[i] = p.Min
	}
	return disksize.Sum(mins, grain)
}

func (s *AssignedSpace) sumMax() disksize.Size {
	maxs := make([]disksize.Size, len(s.Partitions))
	for i, p := range s.Partitions {
		maxs[i] = p.Max
	}
	return disksize.Sum(maxs, disksize.Zero)
}

// Valid reports whether the partitions can fit in the region. It is a
// necessary condition only: creation may still fail for geometric reasons.
//
// Partitions bound to another disk, partitions demanding a type the region
// cannot host and more primary partitions than free slots make the space
// invalid. Otherwise the space is valid when the minima, each rounded up to
// the grain, fit in the usable size, or when EnforcedLast finds a
// partition that makes them fit.
func (s *AssignedSpace) Valid() bool {
	for _, p := range s.Partitions {
		if p.Disk != "" && p.Disk != s.Region.Disk {
			return false
		}
		if p.Type != 0 && s.partitionType != 0 && p.Type != s.partitionType {
			return false
		}
	}
	if !s.slotsSuffice() {
		return false
	}
	if !s.UsableSize().Less(s.sumMin(s.MinGrain())) {
		return true
	}
	return s.EnforcedLast() != nil
}

func (s *AssignedSpace) slotsSuffice() bool {
	if s.partitionType == devicegraph.Logical {
		return true
	}
	primaries := len(s.Partitions) - s.NumLogical
	if s.NumLogical > 0 {
		primaries++
	}
	return primaries <= s.Region.PrimarySlots
}

// EnforcedLast returns the partition that must be placed at the end of the
// region for the minima to fit, or nil.
//
// When the rounded minima exceed the usable size by less than one grain,
// a partition whose minimum is at least that amount below its rounded
// value can take the unaligned tail of the region. Nil is returned when the
// minima already fit or when no such partition exists.
func (s *AssignedSpace) EnforcedLast() *planned.Partition {
	grain := s.MinGrain()
	rounded := s.sumMin(grain)
	usable := s.UsableSize()
	if !usable.Less(rounded) {
		return nil
	}

	missing := rounded.MustSub(usable)
	if !missing.Less(grain) {
		return nil
	}

	for _, p := range s.Partitions {
		if !p.Min.CeilTo(grain).MustSub(p.Min).Less(missing) {
			return p
		}
	}
	return nil
}

// SortPartitions orders the partitions for creation: by disk, then by
// max start offset (unconstrained partitions last), keeping the insertion
// order of equal keys. The partition returned by EnforcedLast, if any, is
// then moved to the end and remembered as the one taking the unaligned tail.
func (s *AssignedSpace) SortPartitions() {
	slices.SortStableFunc(s.Partitions, func(a, b *planned.Partition) int {
		if c := strings.Compare(s.diskOf(a), s.diskOf(b)); c != 0 {
			return c
		}
		return compareOffsets(a.MaxStartOffset, b.MaxStartOffset)
	})

	s.last = s.EnforcedLast()
	if s.last == nil {
		return
	}
	idx := slices.Index(s.Partitions, s.last)
	s.Partitions = append(slices.Delete(s.Partitions, idx, idx+1), s.last)
}

func (s *AssignedSpace) diskOf(p *planned.Partition) string {
	if p.Disk != "" {
		return p.Disk
	}
	return s.Region.Disk
}

func compareOffsets(a, b *disksize.Size) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Cmp(*b)
	}
}

func (s *AssignedSpace) String() string {
	names := make([]string, len(s.Partitions))
	for i, p := range s.Partitions {
		names[i] = p.String()
	}
	return fmt.Sprintf("%s{%s, logical=%d}", s.Region, strings.Join(names, " "), s.NumLogical)
}
