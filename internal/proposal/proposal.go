// Package proposal performs one allocation attempt: it plans the devices
// requested by the settings, deletes existing partitions until the planned
// ones fit, and creates them on a duplicate of the base graph.
//
// An attempt never retries with different settings. Relaxing the settings
// after a failure is the caller's job.
package proposal

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/analyzer"
	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/lvm"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
	"github.com/gilsonsouza/yast-storage-ng/internal/reclaim"
	"github.com/gilsonsouza/yast-storage-ng/internal/space"
)

// DefaultTableType is the partition table created on candidate disks that
// have none.
const DefaultTableType = devicegraph.TableGPT

// Proposer runs allocation attempts.
type Proposer struct {
	calculator *space.Calculator
	creator    *space.Creator
}

// NewProposer creates a Proposer.
func NewProposer() *Proposer {
	return &Proposer{
		calculator: space.NewCalculator(),
		creator:    space.NewCreator(),
	}
}

// Propose runs one attempt with the given settings. base is only read; the
// resulting graph of a successful attempt is a modified duplicate of it.
func (p *Proposer) Propose(ctx context.Context, base devicegraph.Devicegraph, s *config.ProposalSettings) outcome.Outcome {
	log := logr.FromContextOrDiscard(ctx)
	work := base.Duplicate()

	disks, err := prepareDisks(work, s.CandidateDisks)
	if err != nil {
		return outcome.Failure(err)
	}

	devices := PlanDevices(s)
	if err := devices.Validate(); err != nil {
		return outcome.Failure(err)
	}

	dist, deleted, err := p.makeSpace(ctx, work, disks, devices.Partitions, allowFrom(s))
	if err != nil {
		return outcome.Failure(err)
	}
	log.Info("found distribution", "distribution", dist.String(), "deleted", len(deleted))

	return p.build(ctx, work, dist, devices, deleted, nil)
}

// Place creates explicitly planned devices in the free space of base. It
// never deletes partitions. The existing partitions listed in pvs join the
// planned volume group next to the created LVM partitions.
func (p *Proposer) Place(ctx context.Context, base devicegraph.Devicegraph, devices *Devices, pvs []string) outcome.Outcome {
	log := logr.FromContextOrDiscard(ctx)
	work := base.Duplicate()

	if err := devices.Validate(); err != nil {
		return outcome.Failure(err)
	}

	regions := work.FreeRegions()
	dist := p.calculator.Best(ctx, devices.Partitions, regions)
	if dist == nil {
		missing := minSize(devices.Partitions).SubFloor(freeSize(regions))
		return outcome.Failure(fmt.Errorf("failed to place %d partitions: %w",
			len(devices.Partitions), &outcome.NoDiskSpaceError{Missing: missing}))
	}
	log.Info("found distribution", "distribution", dist.String())

	return p.build(ctx, work, dist, devices, nil, pvs)
}

// build creates the partitions of dist on work, then the volume group.
func (p *Proposer) build(ctx context.Context, work devicegraph.Devicegraph, dist *space.Distribution, devices *Devices, deleted, pvs []string) outcome.Outcome {
	parts, err := p.creator.Create(ctx, work, dist)
	if err != nil {
		return outcome.Failure(fmt.Errorf("failed to create partitions: %w", err))
	}
	var created []string
	for _, c := range parts {
		created = append(created, c.Name)
	}

	if devices.VolumeGroup != nil {
		pvs = append(slices.Clone(pvs), physicalVolumes(parts)...)
		res, err := lvm.NewCreator(work).CreateVolumes(ctx, devices.VolumeGroup, pvs)
		if err != nil {
			return outcome.Failure(fmt.Errorf("failed to create volume group: %w", err))
		}
		work = res.Graph
		deleted = append(deleted, res.Deleted...)
		created = append(created, res.Created...)
	}

	return outcome.Success(work, deleted, created)
}

// makeSpace deletes candidates one by one until the planned partitions fit,
// and returns the best distribution together with the deleted names.
func (p *Proposer) makeSpace(ctx context.Context, g devicegraph.Devicegraph, disks []string, parts []*planned.Partition, allow analyzer.Allow) (*space.Distribution, []string, error) {
	log := logr.FromContextOrDiscard(ctx)
	killer := reclaim.NewKiller(g)

	var deleted []string
	for {
		regions := g.FreeRegions(disks...)
		if dist := p.calculator.Best(ctx, parts, regions); dist != nil {
			return dist, deleted, nil
		}

		candidates := analyzer.DeletionCandidates(g, disks, allow)
		if len(candidates) == 0 {
			missing := minSize(parts).SubFloor(freeSize(regions))
			return nil, deleted, fmt.Errorf("failed to make space for %d partitions: %w",
				len(parts), &outcome.NoDiskSpaceError{Missing: missing})
		}

		log.V(1).Info("no distribution fits, deleting a partition", "candidate", candidates[0], "remaining", len(candidates)-1)
		gone, err := killer.Delete(ctx, candidates[0])
		if err != nil {
			return nil, deleted, err
		}
		deleted = append(deleted, gone...)
	}
}

// prepareDisks resolves the candidate disks and creates a partition table
// on those without one. No candidates means every disk of the graph.
func prepareDisks(g devicegraph.Devicegraph, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		for _, d := range g.Disks() {
			candidates = append(candidates, d.Name)
		}
	}

	for _, name := range candidates {
		d, ok := g.Disk(name)
		if !ok {
			return nil, fmt.Errorf("failed to use candidate disk %s: %w", name, devicegraph.ErrNotFound)
		}
		if d.Table != nil {
			continue
		}
		if err := g.CreatePartitionTable(name, DefaultTableType); err != nil {
			return nil, fmt.Errorf("failed to create partition table on %s: %w", name, err)
		}
	}
	return candidates, nil
}

func allowFrom(s *config.ProposalSettings) analyzer.Allow {
	return analyzer.Allow{
		Linux:   s.DeleteLinux,
		Windows: s.DeleteWindows,
		Other:   s.DeleteOther,
	}
}

// physicalVolumes returns the names of the created LVM partitions.
func physicalVolumes(created []space.Created) []string {
	var out []string
	for _, c := range created {
		if c.Planned != nil && c.Planned.PartitionID() == devicegraph.IDLVM {
			out = append(out, c.Name)
		}
	}
	return out
}

func minSize(parts []*planned.Partition) disksize.Size {
	var mins []disksize.Size
	for _, p := range parts {
		if p.Reuse == "" {
			mins = append(mins, p.Min)
		}
	}
	return disksize.Sum(mins, disksize.Zero)
}

func freeSize(regions []devicegraph.FreeRegion) disksize.Size {
	var sizes []disksize.Size
	for _, r := range regions {
		sizes = append(sizes, r.Size())
	}
	return disksize.Sum(sizes, disksize.Zero)
}
