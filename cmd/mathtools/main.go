package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/mathtools/internal/demo"
	"github.com/copyleftdev/mathtools/internal/logging"
)

var (
	seed     uint64
	trace    bool
	reseed   bool
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd registers the walkthrough commands. The root command runs the
// whole walkthrough when no subcommand is given.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mathtools",
		Short:        "function approximation, optimization and integration walkthrough",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := demo.Run(cmd.OutOrStdout(), options())
			return err
		},
	}

	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", demo.DefaultSeed, "monte carlo seed")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "print every coarse grid evaluation")
	rootCmd.PersistentFlags().BoolVar(&reseed, "reseed", false, "reset the generator before every sample count")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "solver log level (debug, info, warn, error)")

	approxCmd := &cobra.Command{
		Use:   "approx",
		Short: "fit polynomials and a custom basis to x + sin x",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := demo.RunApproximation(cmd.OutOrStdout(), options())
			return err
		},
	}

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "grid search and SQP refinement",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := demo.RunOptimization(cmd.OutOrStdout(), options())
			return err
		},
	}

	integrateCmd := &cobra.Command{
		Use:   "integrate",
		Short: "fixed, adaptive, romberg and monte carlo integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := demo.RunIntegration(cmd.OutOrStdout(), options())
			return err
		},
	}

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "run every section",
		RunE:  rootCmd.RunE,
	}

	rootCmd.AddCommand(approxCmd, optimizeCmd, integrateCmd, allCmd)
	return rootCmd
}

func options() demo.Options {
	return demo.Options{
		Seed:   seed,
		Trace:  trace,
		Reseed: reseed,
		Logger: solverLogger(),
	}
}

// solverLogger routes solver diagnostics to stderr through the service
// logger so they never interleave with the report on stdout.
func solverLogger() *zap.Logger {
	logger, err := logging.NewLogger(&logging.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return zap.NewNop()
	}
	return logging.NewZapLogger(logger)
}
