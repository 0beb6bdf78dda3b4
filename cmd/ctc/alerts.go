package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/telegraph"
	discordadapter "github.com/zulandar/ctc/internal/telegraph/discord"
	slackadapter "github.com/zulandar/ctc/internal/telegraph/slack"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Chat alert commands",
	}
	cmd.AddCommand(newAlertsTestCmd())
	return cmd
}

func newAlertsTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Post a test alert to the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsTest(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to controller config file")
	return cmd
}

func runAlertsTest(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Alerts.Enabled() {
		return fmt.Errorf("alerts: no platform configured in %s", configPath)
	}
	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	err = adapter.Send(ctx, telegraph.OutboundMessage{
		Events: []telegraph.FormattedEvent{{
			Title:    "CTC alert test",
			Body:     "Alerts from this controller will appear here.",
			Severity: "info",
			Color:    telegraph.ColorInfo,
		}},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent test alert to %s channel %s\n", cfg.Alerts.Platform, cfg.Alerts.Channel)
	return nil
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (telegraph.Adapter, error) {
	switch cfg.Alerts.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Alerts.Token,
			ChannelID: cfg.Alerts.Channel,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Alerts.Token,
			ChannelID: cfg.Alerts.Channel,
		})
	default:
		return nil, fmt.Errorf("alerts: unsupported platform %q", cfg.Alerts.Platform)
	}
}

// startAlerts builds the fault watcher when alerts are configured. It
// returns nil when they are not.
func startAlerts(cfg *config.Config, source telegraph.Source) (*telegraph.Watcher, telegraph.Adapter, error) {
	if !cfg.Alerts.Enabled() {
		return nil, nil, nil
	}
	adapter, err := createAdapter(cfg)
	if err != nil {
		return nil, nil, err
	}
	w, err := telegraph.NewWatcher(telegraph.WatcherOpts{
		Source:        source,
		Adapter:       adapter,
		ChannelID:     cfg.Alerts.Channel,
		Cooldown:      cfg.Alerts.Cooldown,
		PulseInterval: cfg.Alerts.Pulse,
	})
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return w, adapter, nil
}
