package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/dashboard"
	"github.com/zulandar/ctc/internal/db"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		fresh      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller and its operator API",
		Long: "Starts the tick loop and the HTTP surface. Saved state is restored on start " +
			"and written back periodically and on shutdown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, configPath, port, fresh)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to controller config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides http.port)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore saved state and start from configuration")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, configPath string, port int, fresh bool) error {
	out := &syncWriter{w: cmd.OutOrStdout()}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.HTTP.Port = port
	}

	gormDB, err := db.Init(cfg.Database)
	if err != nil {
		return err
	}
	store := db.NewStore(gormDB)
	fmt.Fprintf(out, "Database %s ready\n", describeDatabase(cfg.Database))

	ctl, err := ctc.New(cfg, ctc.Options{Out: out})
	if err != nil {
		return err
	}
	if !fresh {
		if err := restoreSaved(ctx, ctl, store, out); err != nil {
			return err
		}
	}

	watcher, adapter, err := startAlerts(cfg, ctl)
	if err != nil {
		return err
	}
	if adapter != nil {
		defer adapter.Close()
		fmt.Fprintf(out, "Posting alerts to %s channel %s\n", cfg.Alerts.Platform, cfg.Alerts.Channel)
	}

	var persister ctc.Persister
	if cfg.Controller.SnapshotEvery > 0 {
		persister = store
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := 2
	if watcher != nil {
		workers++
	}
	errCh := make(chan error, workers)
	go func() {
		errCh <- ctl.Run(ctx, ctc.RunOpts{
			Interval:      cfg.Controller.TickInterval,
			Persister:     persister,
			SnapshotEvery: cfg.Controller.SnapshotEvery,
			Out:           out,
		})
	}()
	go func() {
		errCh <- dashboard.Start(ctx, dashboard.StartOpts{
			Controller: ctl,
			Port:       cfg.HTTP.Port,
			Out:        out,
		})
	}()

	if watcher != nil {
		go func() {
			errCh <- watcher.Run(ctx)
		}()
	}

	// Any worker returning stops the rest.
	var firstErr error
	for range workers {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	return firstErr
}

// restoreSaved resumes from the last saved state, if any. Elements the
// current layout no longer has are logged and skipped.
func restoreSaved(ctx context.Context, ctl *ctc.Controller, store *db.Store, out io.Writer) error {
	st, ok, err := store.LoadState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "No saved state; starting from configuration\n")
		return nil
	}
	if err := ctl.Restore(st); err != nil {
		log.Printf("serve: %v", err)
	}
	fmt.Fprintf(out, "Restored state from tick %d (%d trains, %d scheduled)\n",
		st.Tick, len(st.Trains.Trains), len(st.Schedule))
	return nil
}

// syncWriter serializes progress output from the tick loop and the HTTP
// server.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
