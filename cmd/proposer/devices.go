package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/devicegraph"
	"github.com/gilsonsouza/yast-storage-ng/internal/loader"
	"github.com/gilsonsouza/yast-storage-ng/internal/lvm"
	"github.com/gilsonsouza/yast-storage-ng/internal/reclaim"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <partition>",
	Short: "Delete a partition from a devicegraph",
	Long: `Delete a partition from a Devicegraph document together with every
partition that becomes useless without it.

This will also delete:
- The extended partition, when the last logical partition goes
- The logical partitions, when the extended partition goes
- The other physical volumes of the partition's volume group

Example:
  proposer delete /dev/sda5 --devicegraph host.yaml --save-graph host.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		g, err := loader.LoadDevicegraph(devicegraphPath)
		if err != nil {
			return fmt.Errorf("failed to load devicegraph: %w", err)
		}

		deleted, err := reclaim.NewKiller(g).Delete(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("failed to delete partition: %w", err)
		}
		if len(deleted) == 0 {
			return fmt.Errorf("partition %s not found", name)
		}

		fmt.Printf("✓ Deleted %s\n", strings.Join(deleted, ", "))
		return printGraph(g, "devicegraph")
	},
}

func init() {
	deleteCmd.Flags().StringVar(&devicegraphPath, "devicegraph", "", "Devicegraph document describing the disks")
	deleteCmd.Flags().StringVar(&saveGraphPath, "save-graph", "", "Write the resulting devicegraph to this file")
	_ = deleteCmd.MarkFlagRequired("devicegraph")
}

var createVGCmd = &cobra.Command{
	Use:   "create-vg",
	Short: "Create the volume group of a proposal on existing partitions",
	Long: `Create or extend the volume group of a Proposal document on the physical
volumes it lists, then create its logical volumes.

Existing logical volumes are deleted or kept according to the group's
makeSpacePolicy. Planned partitions are ignored; use place to create them.

Example:
  proposer create-vg --devicegraph host.yaml --proposal data-vg.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loader.LoadDevicegraph(devicegraphPath)
		if err != nil {
			return fmt.Errorf("failed to load devicegraph: %w", err)
		}
		p, err := loader.LoadProposal(proposalPath)
		if err != nil {
			return fmt.Errorf("failed to load proposal: %w", err)
		}
		if p.Spec.VolumeGroup == nil {
			return fmt.Errorf("proposal %s plans no volume group", p.Name)
		}

		res, err := lvm.NewCreator(g).CreateVolumes(cmd.Context(), p.Spec.VolumeGroup, p.Spec.PhysicalVolumes)
		if err != nil {
			return fmt.Errorf("failed to create volume group: %w", err)
		}

		fmt.Printf("✓ Volume group %s ready\n", res.VG)
		if len(res.Deleted) > 0 {
			fmt.Printf("✓ Deleted %s\n", strings.Join(res.Deleted, ", "))
		}
		if len(res.Created) > 0 {
			fmt.Printf("✓ Created %s\n", strings.Join(res.Created, ", "))
		}
		return printGraph(res.Graph, p.Name)
	},
}

func init() {
	createVGCmd.Flags().StringVar(&devicegraphPath, "devicegraph", "", "Devicegraph document describing the disks")
	createVGCmd.Flags().StringVar(&proposalPath, "proposal", "", "Proposal document planning the volume group")
	createVGCmd.Flags().StringVar(&saveGraphPath, "save-graph", "", "Write the resulting devicegraph to this file")
	_ = createVGCmd.MarkFlagRequired("devicegraph")
	_ = createVGCmd.MarkFlagRequired("proposal")
}

// printGraph prints g in the selected format and saves it when
// --save-graph is set.
func printGraph(g devicegraph.Devicegraph, name string) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	result, err := formatter.FormatDevicegraph(loader.FromGraph(g, name))
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(result)

	if saveGraphPath != "" {
		if err := loader.SaveDevicegraph(g, name, saveGraphPath); err != nil {
			return err
		}
		fmt.Printf("✓ Devicegraph written to %s\n", saveGraphPath)
	}
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show <proposal.yaml>...",
	Short: "Show saved proposals",
	Long: `Show Proposal documents written by propose, place or apply with --save,
one row per proposal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proposals := make([]*v1alpha1.Proposal, 0, len(args))
		for _, path := range args {
			p, err := loader.LoadProposal(path)
			if err != nil {
				return fmt.Errorf("failed to load proposal: %w", err)
			}
			proposals = append(proposals, p)
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}
		result, err := formatter.FormatProposalList(proposals)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Print(result)
		return nil
	},
}
