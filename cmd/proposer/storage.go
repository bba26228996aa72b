package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gilsonsouza/yast-storage-ng/api/v1alpha1"
	"github.com/gilsonsouza/yast-storage-ng/internal/config"
	"github.com/gilsonsouza/yast-storage-ng/internal/libvirt"
	"github.com/gilsonsouza/yast-storage-ng/internal/status"
	"github.com/gilsonsouza/yast-storage-ng/internal/storage"
)

var dryRun bool

func newManager(client *libvirt.Client) *storage.Manager {
	return storage.NewManager(client.Libvirt())
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Read the devicegraph of a libvirt host",
	Long: `Build a Devicegraph from the storage pools of the libvirt host.

Disk pools become disks with their partitions, logical pools become volume
groups with their logical volumes. Other pool types are ignored.

Example:
  proposer probe -o yaml > host.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(client)

		g, err := newManager(client).Probe(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to probe storage pools: %w", err)
		}
		return printGraph(g, "probed")
	},
}

func init() {
	probeCmd.Flags().StringVar(&saveGraphPath, "save-graph", "", "Write the probed devicegraph to this file")
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Propose and write the result to the libvirt host",
	Long: `Probe the libvirt host, run the proposal on the probed devicegraph and
change the storage pools to match the result.

This will:
- Delete logical volumes, volume groups and partitions the proposal dropped
- Write new partition tables
- Create partitions, volume groups and logical volumes

With --dry-run the changes are only listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		settings, err := config.Load(settingsPath)
		if err != nil {
			return err
		}

		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(client)
		mgr := newManager(client)

		before, err := mgr.Probe(ctx)
		if err != nil {
			return fmt.Errorf("failed to probe storage pools: %w", err)
		}
		fmt.Printf("✓ Probed %d disk(s)\n", len(before.Disks()))

		p, o, err := runProposal(ctx, before, settings)
		if err != nil {
			return err
		}
		if !o.Succeeded() {
			return finishProposal(p, o)
		}

		if dryRun {
			actions, err := storage.Plan(before, o.Graph)
			if err != nil {
				return fmt.Errorf("failed to plan changes: %w", err)
			}
			if len(actions) == 0 {
				fmt.Println("Nothing to change")
				return nil
			}
			fmt.Println("Changes:")
			for _, a := range actions {
				fmt.Printf("  %s\n", a)
			}
			fmt.Printf("\nTotal: %d change(s)\n", len(actions))
			return nil
		}

		res, err := mgr.Apply(ctx, before, o.Graph)
		if err != nil {
			status.MarkFailed(p, v1alpha1.ConditionApplied, status.ReasonApplyFailed, err.Error())
			if res != nil && len(res.Deleted)+len(res.Created) > 0 {
				fmt.Printf("Partially applied: deleted [%s], created [%s]\n",
					strings.Join(res.Deleted, ", "), strings.Join(res.Created, ", "))
			}
			if printErr := finishProposal(p, o); printErr != nil {
				return printErr
			}
			return fmt.Errorf("failed to apply proposal: %w", err)
		}
		if err := status.MarkApplied(p); err != nil {
			return err
		}
		fmt.Printf("✓ Applied: %d deleted, %d created\n", len(res.Deleted), len(res.Created))
		return finishProposal(p, o)
	},
}

func init() {
	applyCmd.Flags().StringVar(&settingsPath, "settings", "", "Proposal settings file (defaults apply when omitted)")
	applyCmd.Flags().StringVar(&proposalName, "name", "proposal", "Name of the resulting proposal")
	applyCmd.Flags().BoolVar(&parallel, "parallel", false, "Run all relaxation attempts at once")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the changes without making them")
	applyCmd.Flags().StringVar(&saveProposal, "save", "", "Write the proposal with its status to this file")
}

// Pool commands
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect storage pools",
	Long: `Inspect the libvirt storage pools the devicegraph is probed from.

Disk pools hold the partitions of one disk. Logical pools hold the logical
volumes of one volume group.`,
}

func init() {
	poolCmd.AddCommand(poolListCmd)
	poolCmd.AddCommand(poolInfoCmd)
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all storage pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(client)

		pools, err := newManager(client).ListPools(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list pools: %w", err)
		}

		if len(pools) == 0 {
			fmt.Println("No storage pools found")
			return nil
		}

		if !noHeaders {
			fmt.Printf("%-20s %-8s %-10s %-12s %12s %12s\n",
				"NAME", "TYPE", "STATE", "SOURCE", "CAPACITY", "AVAILABLE")
			fmt.Println(strings.Repeat("-", 80))
		}
		for _, pool := range pools {
			source := pool.Source
			if pool.Type == storage.PoolTypeDisk {
				source = strings.Join(pool.Devices, ",")
			}
			fmt.Printf("%-20s %-8s %-10s %-12s %12s %12s\n",
				pool.Name,
				pool.Type,
				pool.State,
				source,
				pool.Capacity,
				pool.Available,
			)
		}

		fmt.Printf("\nTotal: %d pool(s)\n", len(pools))
		return nil
	},
}

var poolInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show detailed information about a pool",
	Long: `Display a storage pool with its volumes.

Example:
  proposer pool info sda`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(client)
		mgr := newManager(client)

		info, err := mgr.GetPoolInfo(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get pool info: %w", err)
		}
		volumes, err := mgr.ListVolumes(ctx, info.Name)
		if err != nil {
			return fmt.Errorf("failed to list volumes: %w", err)
		}

		fmt.Printf("Pool: %s\n", info.Name)
		fmt.Printf("Type: %s\n", info.Type)
		fmt.Printf("State: %s\n", info.State)
		fmt.Printf("UUID: %s\n", info.UUID)
		fmt.Printf("Path: %s\n", info.Path)
		if info.Source != "" {
			fmt.Printf("Volume group: %s\n", info.Source)
		}
		if info.Format != "" {
			fmt.Printf("Partition table: %s\n", info.Format)
		}
		fmt.Printf("Devices: %s\n", strings.Join(info.Devices, ", "))
		fmt.Printf("Capacity: %s (%d bytes)\n", info.Capacity, uint64(info.Capacity))
		fmt.Printf("Available: %s\n", info.Available)

		if len(volumes) == 0 {
			return nil
		}
		fmt.Println()
		fmt.Printf("%-16s %-10s %12s  %s\n", "VOLUME", "FORMAT", "CAPACITY", "PATH")
		for _, vol := range volumes {
			fmt.Printf("%-16s %-10s %12s  %s\n", vol.Name, vol.Format, vol.Capacity, vol.Path)
		}
		return nil
	},
}
