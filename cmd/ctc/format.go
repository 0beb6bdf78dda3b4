package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
)

// describeDatabase names the configured database without its password.
func describeDatabase(cfg config.DatabaseConfig) string {
	if cfg.Driver == "mysql" {
		return fmt.Sprintf("mysql://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)
	}
	return "sqlite:" + cfg.Path
}

// formatClock renders simulation time as HH:MM:SS, or "-" for the zero time.
func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("15:04:05")
}

// formatStatus renders saved controller state as a plain-text report.
func formatStatus(st ctc.State) string {
	var b strings.Builder

	state := "stopped"
	if st.Clock.Running {
		state = "running"
	}
	fmt.Fprintf(&b, "CTC status: tick %d, %s %s (%s x%g)\n",
		st.Tick, st.Clock.Now.Format("2006-01-02"), formatClock(st.Clock.Now), state, st.Clock.Speed)

	fmt.Fprintf(&b, "\nTrains: %d active, next id %d\n", len(st.Trains.Trains), st.Trains.Next)
	if len(st.Trains.Trains) > 0 {
		fmt.Fprintf(&b, "  %-5s %-8s %-14s %-14s %9s %9s %9s\n", "ID", "LINE", "BLOCK", "DESTINATION", "AUTH(m)", "SPD(m/s)", "ETA")
		for _, t := range st.Trains.Trains {
			fmt.Fprintf(&b, "  %-5d %-8s %-14s %-14s %9.0f %9.1f %9s\n",
				t.ID, t.Line, t.Block, t.Destination, t.Authority, t.SuggestedSpeed, formatClock(t.ExpectedArrival))
		}
	}

	var occupied, failed, closed int
	for _, blk := range st.Topology.Blocks {
		if blk.Occupied {
			occupied++
		}
		if blk.Failure != track.FailureNone && blk.Failure != "" {
			failed++
		}
		if blk.Status == track.StatusClosed {
			closed++
		}
	}
	fmt.Fprintf(&b, "\nBlocks: %d total, %d occupied, %d failed, %d closed\n",
		len(st.Topology.Blocks), occupied, failed, closed)

	fmt.Fprintf(&b, "\nSchedule: %d pending", len(st.Schedule))
	if len(st.Schedule) > 0 {
		next := st.Schedule[0]
		fmt.Fprintf(&b, ", next #%d %s to %s at %s", next.ID, next.Line, next.Destination, formatClock(next.Departure))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "\nThroughput: %d completed since %s\n", st.Throughput.Completed, formatClock(st.Throughput.Since))
	return b.String()
}

// formatSchedule renders pending departures as a table.
func formatSchedule(entries []schedule.ScheduledTrain) string {
	if len(entries) == 0 {
		return "No departures scheduled.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-8s %-14s %-9s %-9s %s\n", "ID", "LINE", "DESTINATION", "DEPART", "ARRIVE", "SERVICE")
	for _, e := range entries {
		service := e.Service
		if service == "" {
			service = "-"
		}
		fmt.Fprintf(&b, "%-5d %-8s %-14s %-9s %-9s %s\n",
			e.ID, e.Line, e.Destination, formatClock(e.Departure), formatClock(e.Arrival), service)
	}
	return b.String()
}
