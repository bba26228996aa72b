package orchestrator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/disksize"
	"github.com/gilsonsouza/yast-storage-ng/internal/orchestrator"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/testutil"
)

const GiB = disksize.GiB

// fakeAttempter succeeds when accept returns true for the settings.
type fakeAttempter struct {
	mu     sync.Mutex
	graphs []devicegraph.Devicegraph
	accept func(*config.ProposalSettings) bool
}

func (f *fakeAttempter) Propose(_ context.Context, base devicegraph.Devicegraph, s *config.ProposalSettings) outcome.Outcome {
	f.mu.Lock()
	f.graphs = append(f.graphs, base)
	f.mu.Unlock()

	if f.accept(s) {
		return outcome.Success(base.Duplicate(), nil, []string{"/dev/sda1"})
	}
	return outcome.Failure(&outcome.NoDiskSpaceError{Missing: GiB})
}

func (f *fakeAttempter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.graphs)
}

func TestVariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ProposalSettings)
		want   []string
	}{
		{
			name:   "defaults",
			mutate: func(*config.ProposalSettings) {},
			want:   []string{"initial settings", "without snapshots", "without separate home"},
		},
		{
			name: "everything relaxable",
			mutate: func(s *config.ProposalSettings) {
				s.EnlargeSwapForSuspend = true
			},
			want: []string{"initial settings", "without snapshots", "without separate home", "without swap for suspend"},
		},
		{
			name: "nothing to relax",
			mutate: func(s *config.ProposalSettings) {
				s.UseSnapshots = false
				s.UseSeparateHome = false
			},
			want: []string{"initial settings"},
		},
		{
			name: "snapshots need btrfs",
			mutate: func(s *config.ProposalSettings) {
				s.RootFilesystem = "ext4"
			},
			want: []string{"initial settings", "without separate home"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			tt.mutate(&s)

			var got []string
			for _, v := range orchestrator.Variants(s) {
				got = append(got, v.Description)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariants_Accumulate(t *testing.T) {
	s := config.Default()
	s.EnlargeSwapForSuspend = true

	variants := orchestrator.Variants(s)
	require.Len(t, variants, 4)

	last := variants[3].Settings
	assert.False(t, last.UseSnapshots)
	assert.False(t, last.UseSeparateHome)
	assert.False(t, last.EnlargeSwapForSuspend)

	assert.True(t, variants[0].Settings.UseSnapshots, "initial variant is untouched")
	assert.True(t, s.UseSnapshots, "input is untouched")
}

func TestOrchestrator_FirstSuccessWins(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			base := devicegraph.New()
			fake := &fakeAttempter{accept: func(s *config.ProposalSettings) bool { return !s.UseSnapshots }}

			o := orchestrator.NewWithAttempter(fake, orchestrator.Options{Parallel: parallel, MaxConcurrency: 2})
			res := o.Propose(context.Background(), base, config.Default())

			require.NoError(t, res.Err)
			assert.True(t, res.Succeeded())
			assert.Equal(t, "without snapshots", res.Description, "earliest success in relaxation order")

			if parallel {
				assert.Equal(t, 3, fake.calls())
				for _, g := range fake.graphs {
					assert.NotSame(t, base, g, "parallel attempts get their own duplicate")
				}
			} else {
				assert.Equal(t, 2, fake.calls(), "sequential mode stops at the first success")
			}
		})
	}
}

func TestOrchestrator_AllFail(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		fake := &fakeAttempter{accept: func(*config.ProposalSettings) bool { return false }}
		o := orchestrator.NewWithAttempter(fake, orchestrator.Options{Parallel: parallel})

		res := o.Propose(context.Background(), devicegraph.New(), config.Default())
		assert.False(t, res.Succeeded())
		assert.Nil(t, res.Graph)
		require.ErrorIs(t, res.Err, outcome.ErrNoDiskSpace)
		assert.Contains(t, res.Err.Error(), "all 3 proposal attempts failed")
		assert.Equal(t, "without separate home", res.Description)
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeAttempter{accept: func(*config.ProposalSettings) bool { return true }}
	o := orchestrator.NewWithAttempter(fake, orchestrator.Options{Parallel: true})

	res := o.Propose(ctx, devicegraph.New(), config.Default())
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestOrchestrator_RelaxesRealProposal(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		g := devicegraph.New()
		testutil.Disk(t, g, "/dev/sda", 15*GiB, devicegraph.TableGPT)

		res := orchestrator.New(orchestrator.Options{Parallel: parallel}).Propose(context.Background(), g, config.Default())
		require.NoError(t, res.Err)
		assert.Equal(t, "without snapshots", res.Description)
		assert.Len(t, res.Graph.Partitions(), 3)
		assert.Empty(t, g.Partitions())
	}
}
