// internal/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Midnight fires once a day when the calendar date changes, which is when
// the "Today" and "Tomorrow" board labels go stale.
const Midnight = "@midnight"

// Handler is the callback invoked when the schedule fires.
type Handler func()

// Scheduler runs a handler on a cron schedule.
type Scheduler struct {
	schedule string
	handler  Handler
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler that calls handler on schedule, evaluated in loc.
// A nil loc means time.Local.
func New(schedule string, loc *time.Location, handler Handler) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
	_, err := c.AddFunc(schedule, func() {
		slog.Debug("scheduled refresh firing", "schedule", schedule)
		handler()
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return &Scheduler{schedule: schedule, handler: handler, cron: c}, nil
}

// Start starts the cron ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Debug("scheduler started", "schedule", s.schedule)
}

// Next returns the next fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops the ticker and waits for a running handler to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
