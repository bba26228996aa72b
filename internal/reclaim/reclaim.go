// Package reclaim deletes existing partitions to make room for planned
// ones, together with every partition that becomes useless without them.
package reclaim

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/analyzer"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
)

// Graph is the part of the device graph the Killer reads and mutates.
type Graph interface {
	analyzer.Graph
	Partition(name string) (devicegraph.Partition, bool)
	DeletePartition(name string) ([]string, error)
}

// Killer deletes partitions from a graph.
type Killer struct {
	graph Graph
}

// NewKiller creates a Killer working on g.
func NewKiller(g Graph) *Killer {
	return &Killer{graph: g}
}

// Delete deletes the named partition and returns the names of every
// partition deleted, in deletion order. A name that does not exist yields
// an empty result.
//
// A partition backing a volume group takes every other partition of that
// group with it. Deleting the only logical partition of a disk deletes the
// extended partition too, and deleting an extended partition deletes its
// logical partitions.
func (k *Killer) Delete(ctx context.Context, name string) ([]string, error) {
	if _, ok := k.graph.Partition(name); !ok {
		return nil, nil
	}

	if vg, ok := analyzer.VolumeGroupOf(k.graph, name); ok {
		return k.deleteVolumeGroupPartitions(ctx, vg)
	}
	return k.deletePartition(ctx, name)
}

func (k *Killer) deleteVolumeGroupPartitions(ctx context.Context, vg string) ([]string, error) {
	log := logr.FromContextOrDiscard(ctx)
	names := analyzer.UsedLVMPartitions(k.graph)[vg]
	log.Info("deleting all physical volumes of volume group", "vg", vg, "partitions", names)

	var deleted []string
	for _, name := range names {
		if _, ok := k.graph.Partition(name); !ok {
			continue
		}
		gone, err := k.deletePartition(ctx, name)
		deleted = append(deleted, gone...)
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (k *Killer) deletePartition(ctx context.Context, name string) ([]string, error) {
	log := logr.FromContextOrDiscard(ctx)

	target := name
	if ext, ok := k.lastLogicalContainer(name); ok {
		log.Info("deleting the only logical partition, extended partition goes too", "partition", name, "extended", ext)
		target = ext
	}

	deleted, err := k.graph.DeletePartition(target)
	if err != nil {
		return nil, fmt.Errorf("failed to delete partition %s: %w", target, err)
	}
	log.Info("deleted partitions", "partitions", deleted)
	return deleted, nil
}

// lastLogicalContainer returns the extended partition holding name when
// name is the only logical partition of its disk.
func (k *Killer) lastLogicalContainer(name string) (string, bool) {
	p, ok := k.graph.Partition(name)
	if !ok || p.Type != devicegraph.Logical {
		return "", false
	}
	if len(k.graph.Partitions(devicegraph.OnDisk(p.Disk), devicegraph.OfType(devicegraph.Logical))) != 1 {
		return "", false
	}
	extended := k.graph.Partitions(devicegraph.OnDisk(p.Disk), devicegraph.OfType(devicegraph.Extended))
	if len(extended) == 0 {
		return "", false
	}
	return extended[0].Name, true
}
