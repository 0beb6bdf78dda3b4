package ctc

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

const defaultTickInterval = time.Second

// Persister saves controller state. internal/db provides the gorm-backed
// implementation.
type Persister interface {
	SaveState(ctx context.Context, s State) error
}

// RunOpts holds parameters for the tick loop.
type RunOpts struct {
	Interval      time.Duration // wall time between ticks
	Persister     Persister     // optional
	SnapshotEvery int           // ticks between saves; 0 saves only on shutdown
	Out           io.Writer
}

// Run ticks the controller on a fixed wall-clock interval until ctx is
// cancelled, persisting state periodically and once more on the way out.
func (c *Controller) Run(ctx context.Context, opts RunOpts) error {
	if opts.Interval <= 0 {
		opts.Interval = defaultTickInterval
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	fmt.Fprintf(opts.Out, "Controller running (tick every %s)...\n", opts.Interval)
	defer fmt.Fprintf(opts.Out, "Controller stopped.\n")

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if opts.Persister != nil {
				// ctx is already done; give the final save its own deadline.
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := opts.Persister.SaveState(saveCtx, c.State()); err != nil {
					return fmt.Errorf("ctc: final save: %w", err)
				}
				fmt.Fprintf(opts.Out, "State saved.\n")
			}
			return nil
		case <-ticker.C:
		}

		snap := c.Tick()
		if opts.Persister != nil && opts.SnapshotEvery > 0 && snap.Tick%uint64(opts.SnapshotEvery) == 0 {
			if err := opts.Persister.SaveState(ctx, c.State()); err != nil {
				log.Printf("ctc: save state at tick %d: %v", snap.Tick, err)
			}
		}
	}
}
