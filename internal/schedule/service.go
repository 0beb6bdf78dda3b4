package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/trains"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron reports whether expr is a valid 5-field cron expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("schedule: cron %q: %w", expr, err)
	}
	return nil
}

// Expand turns recurring services into scheduled trains departing in
// [from, to). Each service numbers its trains upward from its first id.
func Expand(services []config.ServiceConfig, from, to time.Time) ([]ScheduledTrain, error) {
	var out []ScheduledTrain
	for _, svc := range services {
		sched, err := cronParser.Parse(svc.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule: service %q: cron %q: %w", svc.Name, svc.Cron, err)
		}
		id := trains.ID(svc.FirstID)
		// Next is strictly after its argument; step back so from itself can fire.
		for dep := sched.Next(from.Add(-time.Nanosecond)); !dep.IsZero() && dep.Before(to); dep = sched.Next(dep) {
			e := ScheduledTrain{
				ID:          id,
				Line:        svc.Line,
				Destination: svc.Destination,
				Departure:   dep,
				Service:     svc.Name,
			}
			if svc.RunTime > 0 {
				e.Arrival = dep.Add(svc.RunTime)
			}
			out = append(out, e)
			id++
		}
	}
	return out, nil
}
