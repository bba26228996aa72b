package space

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
)

// DefaultLimit is the number of complete assignments Best examines before
// settling for the best one found so far.
const DefaultLimit = 50000

// Calculator finds the best distribution of planned partitions over a set
// of free regions.
type Calculator struct {
	// Limit caps the assignments examined. Zero means DefaultLimit.
	Limit int
}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{Limit: DefaultLimit}
}

// Best enumerates every assignment of the planned partitions to regions
// and returns the best valid distribution, or nil when none is valid.
// Partitions that reuse an existing device take no space and are ignored.
//
// Distributions are compared by unused space, then by number of spaces;
// among equals the first one enumerated wins, which favours earlier regions.
// Branches whose minima overflow a region are cut, and the search stops
// after Limit complete assignments.
func (c *Calculator) Best(ctx context.Context, parts []*planned.Partition, regions []devicegraph.FreeRegion) *Distribution {
	log := logr.FromContextOrDiscard(ctx)

	var toPlace []*planned.Partition
	for _, p := range parts {
		if p.Reuse == "" {
			toPlace = append(toPlace, p)
		}
	}
	if len(toPlace) == 0 {
		return &Distribution{}
	}

	candidates := make([][]int, len(toPlace))
	for i, p := range toPlace {
		for j, r := range regions {
			if p.Disk != "" && p.Disk != r.Disk {
				continue
			}
			if r.Size().Less(p.Min) {
				continue
			}
			candidates[i] = append(candidates[i], j)
		}
		if len(candidates[i]) == 0 {
			log.V(1).Info("no region can hold planned partition", "partition", p.String())
			return nil
		}
	}

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		best       *Distribution
		considered int
	)
	assignment := make([]int, len(toPlace))
	load := make([]disksize.Size, len(regions))

	var walk func(i int)
	walk = func(i int) {
		if considered >= limit {
			return
		}
		if i == len(toPlace) {
			considered++
			d, ok := buildDistribution(toPlace, regions, assignment)
			if ok && d.Valid() && d.Better(best) {
				best = d
			}
			return
		}
		for _, j := range candidates[i] {
			next := load[j].Add(toPlace[i].Min)
			if next.Cmp(regions[j].Size()) > 0 {
				continue
			}
			assignment[i] = j
			load[j] = next
			walk(i + 1)
			load[j] = load[j].MustSub(toPlace[i].Min)
		}
	}
	walk(0)

	if considered >= limit {
		log.Info("distribution search truncated", "limit", limit, "partitions", len(toPlace), "regions", len(regions))
	}
	if best == nil {
		log.V(1).Info("no valid distribution", "partitions", len(toPlace), "regions", len(regions), "considered", considered)
		return nil
	}
	log.V(1).Info("chose distribution", "distribution", best.String(), "considered", considered)
	return best
}

func buildDistribution(parts []*planned.Partition, regions []devicegraph.FreeRegion, assignment []int) (*Distribution, bool) {
	byRegion := make([][]*planned.Partition, len(regions))
	for i, j := range assignment {
		byRegion[j] = append(byRegion[j], parts[i])
	}
	var spaces []*AssignedSpace
	for j, ps := range byRegion {
		if len(ps) > 0 {
			spaces = append(spaces, NewAssignedSpace(regions[j], ps))
		}
	}
	return NewDistribution(spaces)
}
