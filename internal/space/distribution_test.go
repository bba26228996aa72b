package space_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/planned"
	"github.com/gilsonsouza/yast-storage-ng/internal/space"
	"github.com/gilsonsouza/yast-storage-ng/internal/testutil"
)

func TestNewDistribution_NumLogical(t *testing.T) {
	tests := []struct {
		name     string
		slots    int
		possible bool
		inside   bool
		count    int
		wantOK   bool
		wantLog  int
	}{
		{name: "enough slots", slots: 4, possible: true, count: 3, wantOK: true, wantLog: 0},
		{name: "overflow goes logical", slots: 1, possible: true, count: 2, wantOK: true, wantLog: 2},
		{name: "no slot for the extended", slots: 0, possible: false, count: 1, wantOK: false},
		{name: "overflow without extended support", slots: 1, possible: false, count: 2, wantOK: false},
		{name: "inside extended", slots: 0, inside: true, count: 3, wantOK: true, wantLog: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := region(MiB, 50*GiB)
			r.PrimarySlots = tt.slots
			r.ExtendedPossible = tt.possible
			r.InsideExtended = tt.inside
			var parts []*planned.Partition
			for i := 0; i < tt.count; i++ {
				parts = append(parts, part("", GiB, GiB))
			}

			d, ok := space.NewDistribution([]*space.AssignedSpace{space.NewAssignedSpace(r, parts)})
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantLog, d.Spaces[0].NumLogical)
			}
		})
	}
}

func TestNewDistribution_ExtendedGoesToTheBusiestSpace(t *testing.T) {
	r1 := region(MiB, 10*GiB)
	r2 := region(20*GiB, 50*GiB)
	for _, r := range []*devicegraph.FreeRegion{&r1, &r2} {
		r.PrimarySlots = 2
		r.ExtendedPossible = true
	}
	s1 := space.NewAssignedSpace(r1, []*planned.Partition{part("a", GiB, GiB)})
	s2 := space.NewAssignedSpace(r2, []*planned.Partition{part("b", GiB, GiB), part("c", GiB, GiB)})

	d, ok := space.NewDistribution([]*space.AssignedSpace{s1, s2})
	require.True(t, ok)
	assert.Equal(t, 0, d.Spaces[0].NumLogical)
	assert.Equal(t, 2, d.Spaces[1].NumLogical)
	assert.True(t, d.Valid())
}

func TestNewDistribution_RequiredTypes(t *testing.T) {
	r := region(MiB, 50*GiB)
	r.ExtendedPossible = true

	logical := part("l", GiB, GiB)
	logical.Type = devicegraph.Logical
	primary := part("p", GiB, GiB)
	primary.Type = devicegraph.Primary

	d, ok := space.NewDistribution([]*space.AssignedSpace{space.NewAssignedSpace(r, []*planned.Partition{logical})})
	require.True(t, ok)
	assert.Equal(t, 1, d.Spaces[0].NumLogical)

	_, ok = space.NewDistribution([]*space.AssignedSpace{space.NewAssignedSpace(r, []*planned.Partition{logical, primary})})
	assert.False(t, ok)
}

func TestCalculator_Best(t *testing.T) {
	g := devicegraph.New()
	testutil.Disk(t, g, "/dev/sda", 100*GiB, devicegraph.TableGPT)
	testutil.Disk(t, g, "/dev/sdb", 100*GiB, devicegraph.TableGPT)
	ctx := context.Background()

	t.Run("earliest region wins ties", func(t *testing.T) {
		d := space.NewCalculator().Best(ctx, []*planned.Partition{part("/", 10*GiB, disksize.Unlimited)}, g.FreeRegions())
		require.NotNil(t, d)
		require.Len(t, d.Spaces, 1)
		assert.Equal(t, "/dev/sda", d.Spaces[0].Disk())
	})

	t.Run("disk affinity", func(t *testing.T) {
		p := part("/", 10*GiB, disksize.Unlimited)
		p.Disk = "/dev/sdb"
		d := space.NewCalculator().Best(ctx, []*planned.Partition{p}, g.FreeRegions())
		require.NotNil(t, d)
		assert.Equal(t, "/dev/sdb", d.Spaces[0].Disk())
	})

	t.Run("fewer spaces wins", func(t *testing.T) {
		d := space.NewCalculator().Best(ctx, []*planned.Partition{
			part("/", 10*GiB, disksize.Unlimited),
			part("/home", 10*GiB, disksize.Unlimited),
		}, g.FreeRegions())
		require.NotNil(t, d)
		assert.Len(t, d.Spaces, 1)
	})

	t.Run("less unused space wins", func(t *testing.T) {
		small := g.Duplicate().(*devicegraph.Graph)
		testutil.Disk(t, small, "/dev/sdc", 3*GiB, devicegraph.TableGPT)

		d := space.NewCalculator().Best(ctx, []*planned.Partition{part("swap", GiB, 2*GiB)}, small.FreeRegions())
		require.NotNil(t, d)
		require.Len(t, d.Spaces, 1)
		assert.Equal(t, "/dev/sdc", d.Spaces[0].Disk())
		assert.Equal(t, GiB-2*MiB, d.Unused())
	})

	t.Run("nothing fits", func(t *testing.T) {
		d := space.NewCalculator().Best(ctx, []*planned.Partition{part("/", 200*GiB, disksize.Unlimited)}, g.FreeRegions())
		assert.Nil(t, d)
	})

	t.Run("search is capped", func(t *testing.T) {
		many := devicegraph.New()
		for _, name := range []string{"/dev/sda", "/dev/sdb", "/dev/sdc", "/dev/sdd", "/dev/sde", "/dev/sdf"} {
			testutil.Disk(t, many, name, 100*GiB, devicegraph.TableGPT)
		}
		var parts []*planned.Partition
		for range 14 {
			parts = append(parts, part("", GiB, GiB))
		}

		d := space.NewCalculator().Best(ctx, parts, many.FreeRegions())
		require.NotNil(t, d)
		assert.True(t, d.Valid())

		d = (&space.Calculator{Limit: 1}).Best(ctx, parts, many.FreeRegions())
		require.NotNil(t, d)
		require.Len(t, d.Spaces, 1)
		assert.Equal(t, "/dev/sda", d.Spaces[0].Disk())
	})

	t.Run("reused partitions take no space", func(t *testing.T) {
		d := space.NewCalculator().Best(ctx, []*planned.Partition{{Reuse: "/dev/sda1"}}, g.FreeRegions())
		require.NotNil(t, d)
		assert.Empty(t, d.Spaces)
	})
}
