package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect the configured timetable",
	}

	cmd.AddCommand(newScheduleListCmd())
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	var (
		configPath string
		day        string
		line       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List departures for a service day",
		Long:  "Expands explicit departures and recurring services over 24 hours. The window starts at the configured start time unless --day is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleList(cmd, configPath, day, line)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to controller config file")
	cmd.Flags().StringVar(&day, "day", "", "service day as YYYY-MM-DD")
	cmd.Flags().StringVar(&line, "line", "", "only show departures on this line")
	return cmd
}

func runScheduleList(cmd *cobra.Command, configPath, day, line string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	start, err := serviceDay(cfg, day)
	if err != nil {
		return err
	}
	sched, err := schedule.FromConfig(cfg, start)
	if err != nil {
		return err
	}

	entries := sched.Pending()
	if line != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Line == line {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	fmt.Fprint(cmd.OutOrStdout(), formatSchedule(entries))
	return nil
}

// serviceDay parses --day, falling back to the configured start time so the
// listing matches what serve would load.
func serviceDay(cfg *config.Config, day string) (time.Time, error) {
	if day == "" {
		return cfg.Controller.StartTime, nil
	}
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --day %q: %w", day, err)
	}
	return t, nil
}
