package trigger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TimeOfDay is a wall-clock firing time, e.g. 09:00.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Next returns the first instant strictly after the given time at which
// this time of day occurs in loc.
func (t TimeOfDay) Next(after time.Time, loc *time.Location) time.Time {
	local := after.In(loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, loc)
	if !fire.After(after) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Scheduler fires the runner at fixed times of day, every day.
type Scheduler struct {
	runner *Runner
	times  []TimeOfDay
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time

	stop chan struct{}
	done chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLocation sets the timezone the firing times are interpreted in.
// Defaults to UTC.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSchedulerClock overrides the scheduler's time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler that fires runner at the given times.
func NewScheduler(runner *Runner, times []TimeOfDay, log *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		runner: runner,
		times:  times,
		loc:    time.UTC,
		log:    log,
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextFire returns the earliest upcoming firing instant after t.
func (s *Scheduler) NextFire(t time.Time) time.Time {
	var next time.Time
	for _, tod := range s.times {
		fire := tod.Next(t, s.loc)
		if next.IsZero() || fire.Before(next) {
			next = fire
		}
	}
	return next
}

// Start launches the firing loop. No-op when no times are configured.
func (s *Scheduler) Start() {
	if len(s.times) == 0 {
		close(s.done)
		return
	}
	go s.run()
}

// Stop halts the firing loop.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	for {
		next := s.NextFire(s.now())
		s.log.Info("next scheduled trigger", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.log.Info("scheduled trigger fired", zap.Time("at", next))
			s.runner.notifyScheduled()
		}
	}
}
