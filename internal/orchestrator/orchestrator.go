// Package orchestrator turns single allocation attempts into a proposal:
// when an attempt fails it retries with progressively relaxed settings.
//
// Attempts never share a graph. In parallel mode every attempt runs on its
// own duplicate of the base graph and the earliest successful variant in
// relaxation order wins; the others are discarded.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/proposal"
)

// Attempter performs one allocation attempt.
type Attempter interface {
	Propose(ctx context.Context, base devicegraph.Devicegraph, s *config.ProposalSettings) outcome.Outcome
}

// Variant is one set of settings to try.
type Variant struct {
	Description string
	Settings    config.ProposalSettings
}

// Variants returns the relaxation sequence for s: the settings as given,
// then without snapshots, without a separate home and without swap sized
// for suspend. Relaxations accumulate, and a step that changes nothing is
// skipped.
func Variants(s config.ProposalSettings) []Variant {
	out := []Variant{{Description: "initial settings", Settings: s}}

	current := s
	if current.SnapshotsActive() {
		current.UseSnapshots = false
		out = append(out, Variant{Description: "without snapshots", Settings: current})
	}
	if current.UseSeparateHome {
		current.UseSeparateHome = false
		out = append(out, Variant{Description: "without separate home", Settings: current})
	}
	if current.EnlargeSwapForSuspend {
		current.EnlargeSwapForSuspend = false
		out = append(out, Variant{Description: "without swap for suspend", Settings: current})
	}
	return out
}

// Options configures an Orchestrator.
type Options struct {
	// Parallel runs every variant at once instead of one after another.
	Parallel bool
	// MaxConcurrency bounds parallel attempts. Zero means no bound.
	MaxConcurrency int
}

// Orchestrator runs attempts over the relaxation sequence.
type Orchestrator struct {
	attempter Attempter
	opts      Options
}

// New creates an Orchestrator backed by a proposal.Proposer.
func New(opts Options) *Orchestrator {
	return NewWithAttempter(proposal.NewProposer(), opts)
}

// NewWithAttempter creates an Orchestrator with a custom Attempter.
// This is primarily useful for testing.
func NewWithAttempter(a Attempter, opts Options) *Orchestrator {
	return &Orchestrator{attempter: a, opts: opts}
}

// Propose returns the outcome of the first variant that succeeds. When all
// fail, the returned outcome carries the last failure wrapped with the
// number of attempts. base is never modified.
func (o *Orchestrator) Propose(ctx context.Context, base devicegraph.Devicegraph, s config.ProposalSettings) outcome.Outcome {
	variants := Variants(s)

	var results []outcome.Outcome
	if o.opts.Parallel {
		var err error
		if results, err = o.runParallel(ctx, base, variants); err != nil {
			return outcome.Failure(err)
		}
	} else {
		results = o.runSequential(ctx, base, variants)
	}

	for _, r := range results {
		if r.Succeeded() {
			return r
		}
	}
	last := results[len(results)-1]
	return outcome.Outcome{
		Description: last.Description,
		Err:         fmt.Errorf("all %d proposal attempts failed: %w", len(results), last.Err),
	}
}

// runSequential stops at the first success. The returned slice ends with
// the last attempt made.
func (o *Orchestrator) runSequential(ctx context.Context, base devicegraph.Devicegraph, variants []Variant) []outcome.Outcome {
	log := logr.FromContextOrDiscard(ctx)

	results := make([]outcome.Outcome, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		log.Info("trying proposal", "attempt", i+1, "variant", v.Description)

		r := o.attempter.Propose(ctx, base, &v.Settings)
		r.Description = v.Description
		results = append(results, r)
		if r.Succeeded() {
			return results
		}
		log.Info("proposal attempt failed", "variant", v.Description, "reason", r.Err.Error())
	}
	return results
}

func (o *Orchestrator) runParallel(ctx context.Context, base devicegraph.Devicegraph, variants []Variant) ([]outcome.Outcome, error) {
	log := logr.FromContextOrDiscard(ctx)

	// Duplicates are taken up front so no goroutine ever touches base.
	graphs := make([]devicegraph.Devicegraph, len(variants))
	for i := range variants {
		graphs[i] = base.Duplicate()
	}

	results := make([]outcome.Outcome, len(variants))
	group, gctx := errgroup.WithContext(ctx)
	if o.opts.MaxConcurrency > 0 {
		group.SetLimit(o.opts.MaxConcurrency)
	}
	for i := range variants {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := &variants[i]
			r := o.attempter.Propose(gctx, graphs[i], &v.Settings)
			r.Description = v.Description
			results[i] = r
			log.V(1).Info("parallel proposal attempt finished", "variant", v.Description, "succeeded", r.Succeeded())
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to run proposal attempts: %w", err)
	}
	return results, nil
}
