package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gilsonsouza/yast-storage-ng/internal/libvirt"
	"github.com/gilsonsouza/yast-storage-ng/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose      bool
	outputFormat string
	noHeaders    bool
	socketPath   string

	syncLogger = func() {}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proposer",
	Short: "Proposer - storage proposal tool",
	Long: `Proposer computes where the partitions, volume groups and logical volumes
of a new installation go on the existing disks.

It works offline on Devicegraph documents, or online on the disk and
logical storage pools of a libvirt host.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		cmd.SetContext(logr.NewContext(cmd.Context(), log))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		syncLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every allocation step")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "Output format: table, yaml or json")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false, "Omit table headers")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", libvirt.DefaultSocket, "Libvirt daemon socket")

	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(placeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(createVGCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(testConnCmd)
}

// newLogger builds the zap logger behind logr. Only warnings are shown
// unless verbose is set, which also enables V(1) messages.
func newLogger(verbose bool) (logr.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to build logger: %w", err)
	}
	syncLogger = func() { _ = z.Sync() }
	return zapr.NewLogger(z), nil
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

// connect dials libvirt, giving up when ctx is cancelled.
func connect(ctx context.Context) (*libvirt.Client, error) {
	client, err := libvirt.ConnectWithContext(ctx, socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	return client, nil
}

func closeClient(client *libvirt.Client) {
	if err := client.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", err)
	}
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and count the storage pools it manages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing libvirt connection...")

		client, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer closeClient(client)

		fmt.Println("✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		v, err := client.Version()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Libvirt version: %s\n", v)

		pools, err := newManager(client).ListPools(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list pools: %w", err)
		}
		fmt.Printf("✓ Storage pools: %d\n", len(pools))

		fmt.Println("\nConnection test successful!")
		return nil
	},
}
