// Package scheduler triggers the refresh sweep at fixed times of day.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/annfeed/internal/logging"
	"github.com/dmitrijs2005/annfeed/internal/server/services"
)

// DefaultTimes are the daily sweep times in the schedule zone.
var DefaultTimes = []string{"09:00", "11:10", "16:00", "18:00", "22:00"}

// TimeOfDay is an offset from midnight.
type TimeOfDay time.Duration

// Spec is the daily cron expression firing at t.
func (t TimeOfDay) Spec() string {
	d := time.Duration(t)
	return fmt.Sprintf("%d %d * * *", int(d/time.Minute)%60, int(d/time.Hour))
}

// ParseTimes parses "HH:MM" values and returns them sorted and
// deduplicated.
func ParseTimes(values []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		t, err := time.Parse("15:04", v)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: %w", v, err)
		}
		out = append(out, TimeOfDay(time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute))
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

type Refresher interface {
	RefreshAll(ctx context.Context) services.RefreshReport
}

type Scheduler struct {
	refresher Refresher
	specs     []string
	loc       *time.Location
	log       logging.Logger
}

func New(r Refresher, times []TimeOfDay, loc *time.Location, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop{}
	}
	specs := make([]string, 0, len(times))
	for _, t := range times {
		specs = append(specs, t.Spec())
	}
	return &Scheduler{
		refresher: r,
		specs:     specs,
		loc:       loc,
		log:       log.With("module", "scheduler"),
	}
}

// Run blocks until ctx is cancelled, sweeping at every scheduled time.
// A sweep in progress is not interrupted by the next slot; slots that
// fire while it runs are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.specs) == 0 {
		<-ctx.Done()
		return nil
	}

	cl := cronLogger{ctx: ctx, log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, spec := range s.specs {
		if _, err := c.AddFunc(spec, func() { s.sweep(ctx) }); err != nil {
			return fmt.Errorf("schedule %q: %w", spec, err)
		}
	}

	c.Start()
	for _, e := range c.Entries() {
		s.log.Info(ctx, "refresh sweep scheduled", "at", e.Next.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report := s.refresher.RefreshAll(ctx)
	s.log.Info(ctx, "scheduled sweep done",
		"pairs", len(report.Pairs), "failed", report.Failed(),
		"took", report.FinishedAt.Sub(report.StartedAt).String())
}

// cronLogger routes cron's own messages to the service logger.
type cronLogger struct {
	ctx context.Context
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(l.ctx, msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(l.ctx, msg, append(keysAndValues, "error", err)...)
}
