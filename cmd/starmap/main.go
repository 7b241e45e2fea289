// Command starmap runs a scatter/gather batch on a worker pool and renders
// the outcome of every task.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/starmap/internal/cpu"
	"github.com/utkarsh5026/starmap/pool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "starmap",
		Short:         "Run scatter/gather batches on a fixed worker pool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pool events at debug level")

	root.AddCommand(newRunCmd(&configFile), newCoresCmd())
	return root
}

func newRunCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Square a range of inputs in parallel, panicking on some of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), *configFile)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			r, err := runDemo(cfg, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), r)
		},
	}
	addRunFlags(cmd.Flags(), newConfig())
	return cmd
}

func newCoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cores",
		Short: "Print the worker count a default pool would use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "physical cores: %d\n", pool.DefaultThreadCount())
			fmt.Fprintf(w, "logical cpus:   %d\n", cpu.LogicalCPUs())
			fmt.Fprintf(w, "platform:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// newLogger returns a development logger when verbose, and a production
// logger that only reports warnings otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
