package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/ctc/internal/db"
	"golang.org/x/term"
)

const watchInterval = 5 * time.Second

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last saved controller state",
		Long:  "Displays trains, block conditions, pending departures and throughput from the last saved state. Use --watch for auto-refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to controller config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, watch bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	store := db.NewStore(gormDB)

	out := cmd.OutOrStdout()
	clearScreen := watch && isTerminal(out)
	ctx := contextOf(cmd)

	for {
		st, ok, err := store.LoadState(ctx)
		if err != nil {
			return err
		}

		if clearScreen {
			fmt.Fprint(out, "\033[2J\033[H")
		}

		if ok {
			fmt.Fprint(out, formatStatus(st))
		} else {
			fmt.Fprintln(out, "No saved state. Start the controller with 'ctc serve'.")
		}

		if !watch {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchInterval):
		}
	}
}

// isTerminal reports whether w is an interactive terminal. Piped output
// never gets screen-clearing escapes.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
