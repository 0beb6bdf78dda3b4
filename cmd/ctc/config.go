package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/schedule"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and validate controller configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example two-line configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
			if err := os.WriteFile(configPath, []byte(config.Example), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", configPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote example config to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration without starting the controller",
		Long:  "Loads the config, parses every service's cron expression, expands the timetable and builds the topology.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigCheck(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to controller config file")
	return cmd
}

func runConfigCheck(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var errs []error
	for _, svc := range cfg.Services {
		if err := schedule.ValidateCron(svc.Cron); err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", svc.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	sched, err := schedule.FromConfig(cfg, cfg.Controller.StartTime)
	if err != nil {
		return err
	}
	if _, err := ctc.New(cfg, ctc.Options{}); err != nil {
		return err
	}

	blocks := 0
	for _, l := range cfg.Lines {
		blocks += len(l.Blocks)
	}
	fmt.Fprintf(out, "Config OK: %d lines, %d blocks, %d collaborators, %d departures in the first 24h\n",
		len(cfg.Lines), blocks, len(cfg.Collaborators), sched.Len())
	return nil
}
