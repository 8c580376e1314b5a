// Package main provides the studyplan CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
)

var version = "dev"

func main() {
	logger.Init()
	logger.Log.SetOutput(os.Stderr)

	rootCmd := &cobra.Command{
		Use:   "studyplan",
		Short: "Plan real-world evidence studies from the command line",
		Long: `studyplan submits study designs to the RWE planning service, ranks the
recommended sites, and reports on the health of the planner's dependencies.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newPlanCmd(),
		newAssessCmd(),
		newStatusCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
