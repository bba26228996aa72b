package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/loader"
	"github.com/gilsonsouza/yast-storage-ng/internal/orchestrator"
	"github.com/gilsonsouza/yast-storage-ng/internal/outcome"
	"github.com/gilsonsouza/yast-storage-ng/internal/proposal"
	"github.com/gilsonsouza/yast-storage-ng/internal/status"
)

var (
	devicegraphPath string
	settingsPath    string
	proposalPath    string
	proposalName    string
	parallel        bool
	saveGraphPath   string
	saveProposal    string
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose a partitioning for a devicegraph",
	Long: `Plan root, swap and home from the proposal settings and place them on the
disks of a Devicegraph document.

When the planned devices do not fit, the proposal is retried without
snapshots, then without a separate home, then without swap for suspend.

Example:
  proposer propose --devicegraph host.yaml --settings settings.yaml --save-graph result.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		g, err := loader.LoadDevicegraph(devicegraphPath)
		if err != nil {
			return fmt.Errorf("failed to load devicegraph: %w", err)
		}
		settings, err := config.Load(settingsPath)
		if err != nil {
			return err
		}

		p, o, err := runProposal(ctx, g, settings)
		if err != nil {
			return err
		}
		return finishProposal(p, o)
	},
}

func init() {
	proposeCmd.Flags().StringVar(&devicegraphPath, "devicegraph", "", "Devicegraph document describing the disks")
	proposeCmd.Flags().StringVar(&settingsPath, "settings", "", "Proposal settings file (defaults apply when omitted)")
	proposeCmd.Flags().StringVar(&proposalName, "name", "proposal", "Name of the resulting proposal")
	proposeCmd.Flags().BoolVar(&parallel, "parallel", false, "Run all relaxation attempts at once")
	proposeCmd.Flags().StringVar(&saveGraphPath, "save-graph", "", "Write the resulting devicegraph to this file")
	proposeCmd.Flags().StringVar(&saveProposal, "save", "", "Write the proposal with its status to this file")
	_ = proposeCmd.MarkFlagRequired("devicegraph")
}

// runProposal plans the devices for settings and runs the relaxation
// sequence on g. The returned proposal is Proposed or Failed.
func runProposal(ctx context.Context, g devicegraph.Devicegraph, settings *config.ProposalSettings) (*v1alpha1.Proposal, outcome.Outcome, error) {
	p := v1alpha1.NewProposal(proposalName)
	devices := proposal.PlanDevices(settings)
	p.Spec.Partitions = devices.Partitions
	p.Spec.VolumeGroup = devices.VolumeGroup

	if err := status.TransitionToProposing(p); err != nil {
		return nil, outcome.Outcome{}, err
	}

	o := orchestrator.New(orchestrator.Options{Parallel: parallel}).Propose(ctx, g, *settings)
	if err := status.RecordOutcome(p, o); err != nil {
		return nil, outcome.Outcome{}, err
	}
	return p, o, nil
}

// finishProposal prints p, saves what was asked for and turns a failed
// outcome into the command error.
func finishProposal(p *v1alpha1.Proposal, o outcome.Outcome) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	result, err := formatter.FormatProposal(p)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(result)

	if saveProposal != "" {
		if err := loader.SaveProposal(p, saveProposal); err != nil {
			return err
		}
		fmt.Printf("✓ Proposal written to %s\n", saveProposal)
	}

	if !o.Succeeded() {
		return fmt.Errorf("proposal failed: %w", o.Err)
	}

	if saveGraphPath != "" {
		if err := loader.SaveDevicegraph(o.Graph, p.Name, saveGraphPath); err != nil {
			return err
		}
		fmt.Printf("✓ Devicegraph written to %s\n", saveGraphPath)
	}
	return nil
}

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Place the devices of a proposal document",
	Long: `Place the planned partitions of a Proposal document in the free space of a
Devicegraph document and build its volume group on top.

Unlike propose, place never deletes existing partitions and never relaxes
anything: the planned devices fit as given or the command fails.

Example:
  proposer place --devicegraph host.yaml --proposal data-vg.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loader.LoadDevicegraph(devicegraphPath)
		if err != nil {
			return fmt.Errorf("failed to load devicegraph: %w", err)
		}
		p, err := loader.LoadProposal(proposalPath)
		if err != nil {
			return fmt.Errorf("failed to load proposal: %w", err)
		}

		if err := status.TransitionToProposing(p); err != nil {
			return err
		}
		devices := &proposal.Devices{
			Partitions:  p.Spec.Partitions,
			VolumeGroup: p.Spec.VolumeGroup,
		}
		o := proposal.NewProposer().Place(cmd.Context(), g, devices, p.Spec.PhysicalVolumes)
		o.Description = "planned devices as given"
		if err := status.RecordOutcome(p, o); err != nil {
			return err
		}
		return finishProposal(p, o)
	},
}

func init() {
	placeCmd.Flags().StringVar(&devicegraphPath, "devicegraph", "", "Devicegraph document describing the disks")
	placeCmd.Flags().StringVar(&proposalPath, "proposal", "", "Proposal document listing the planned devices")
	placeCmd.Flags().StringVar(&saveGraphPath, "save-graph", "", "Write the resulting devicegraph to this file")
	placeCmd.Flags().StringVar(&saveProposal, "save", "", "Write the proposal with its status to this file")
	_ = placeCmd.MarkFlagRequired("devicegraph")
	_ = placeCmd.MarkFlagRequired("proposal")
}
