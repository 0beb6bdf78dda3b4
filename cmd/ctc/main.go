package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "ctc.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctc",
		Short: "CTC: centralized traffic control for a light-rail network",
		Long: "ctc runs the centralized traffic controller: it tracks block occupancy, " +
			"computes movement authority, dispatches scheduled trains and serves the operator API.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newAlertsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctc %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
