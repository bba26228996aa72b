package space

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// Graph is the part of the device graph the Creator mutates.
type Graph interface {
	CreatePartition(spec devicegraph.PartitionSpec) (devicegraph.Partition, error)
	Encrypt(partition string) (string, error)
	Format(device string, fs devicegraph.Filesystem) error
}

// Created is a partition created for a distribution.
type Created struct {
	// Planned is nil for extended partitions created to hold logical ones.
	Planned *planned.Partition
	// Name is the partition name.
	Name string
	// Device is the top-most block device: the encryption layer of an
	// encrypted partition, the partition itself otherwise.
	Device string
}

// Creator materializes a distribution on a device graph.
type Creator struct{}

// NewCreator creates a Creator.
func NewCreator() *Creator {
	return &Creator{}
}

// Create creates the partitions of every space of d on g, in space order.
//
// The partitions of a space are sorted and laid out back to back from the
// start of the region, logical ones preceded by one grain for their boot
// record. Sizes are distributed by weight between minimum and maximum,
// rounded to the grain; a tail shorter than one grain goes to the last
// partition. Each partition is encrypted and formatted as planned.
func (c *Creator) Create(ctx context.Context, g Graph, d *Distribution) ([]Created, error) {
	var out []Created
	for _, s := range d.Spaces {
		created, err := c.createSpace(ctx, g, s)
		out = append(out, created...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Creator) createSpace(ctx context.Context, g Graph, s *AssignedSpace) ([]Created, error) {
	log := logr.FromContextOrDiscard(ctx)

	s.SortPartitions()
	sizes, err := partitionSizes(s)
	if err != nil {
		return nil, fmt.Errorf("failed to size partitions in %s: %w", s.Region, err)
	}

	var out []Created
	grain := s.MinGrain()
	cursor := s.Region.Start
	ptype := devicegraph.Primary
	if s.NumLogical > 0 {
		ptype = devicegraph.Logical
		if s.PartitionType() != devicegraph.Logical {
			ext, err := g.CreatePartition(devicegraph.PartitionSpec{
				Disk:  s.Region.Disk,
				Type:  devicegraph.Extended,
				Start: s.Region.Start,
				End:   s.Region.End,
			})
			if err != nil {
				return out, fmt.Errorf("failed to create extended partition in %s: %w", s.Region, err)
			}
			log.Info("created extended partition", "partition", ext.Name, "size", ext.Size().String())
			out = append(out, Created{Name: ext.Name, Device: ext.Name})
			cursor = cursor.Add(grain)
		}
	}

	for i, p := range s.Partitions {
		end := cursor.Add(sizes[i])
		part, err := g.CreatePartition(devicegraph.PartitionSpec{
			Disk:  s.Region.Disk,
			Type:  ptype,
			ID:    p.PartitionID(),
			Start: cursor,
			End:   end,
		})
		if err != nil {
			return out, fmt.Errorf("failed to create partition for %s: %w", p, err)
		}

		device := part.Name
		if p.Encrypted() {
			if device, err = g.Encrypt(part.Name); err != nil {
				return out, fmt.Errorf("failed to encrypt %s: %w", part.Name, err)
			}
		}
		if err := p.FormatDirective.Apply(g, device); err != nil {
			return out, err
		}
		log.Info("created partition", "partition", part.Name, "size", part.Size().String(), "mountPoint", p.MountPoint)
		out = append(out, Created{Planned: p, Name: part.Name, Device: device})

		cursor = end
		if ptype == devicegraph.Logical {
			cursor = cursor.Add(grain)
		}
	}
	return out, nil
}

// partitionSizes decides the size of every partition of a sorted space.
// The partition SortPartitions moved to the end only needs its minimum
// floored to the grain, the tail makes up the rest.
func partitionSizes(s *AssignedSpace) ([]disksize.Size, error) {
	grain := s.MinGrain()

	reqs := make([]planned.Request, len(s.Partitions))
	for i, p := range s.Partitions {
		minSize := p.Min
		if p == s.last {
			minSize = minSize.FloorTo(grain)
		}
		reqs[i] = planned.Request{Min: minSize, Max: p.Max, Weight: p.Weight}
	}

	usable := s.UsableSize()
	sizes, err := planned.Distribute(reqs, usable, grain)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return sizes, nil
	}

	i := len(sizes) - 1
	tail := usable.MustSub(disksize.Sum(sizes, disksize.Zero))
	if tail.Less(grain) {
		room := s.Partitions[i].Max.SubFloor(sizes[i])
		sizes[i] = sizes[i].Add(disksize.Min(tail, room))
	}
	for i, p := range s.Partitions {
		if sizes[i].Less(p.Min) {
			return nil, fmt.Errorf("partition %s gets only %s", p, sizes[i])
		}
	}
	return sizes, nil
}
