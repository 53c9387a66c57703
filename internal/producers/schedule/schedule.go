// Package schedule implements the final pipeline stage: it assigns each
// approved post to the next free publishing slot.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/engine/stages"
	"github.com/jonathan/content-agent/internal/trigger"
	"github.com/jonathan/content-agent/internal/types"
)

// SlotChecker answers whether a publishing slot already has an item
// scheduled near it. The publish queue implements it.
type SlotChecker interface {
	IsSlotTaken(t time.Time, window time.Duration) bool
}

// Config tunes the schedule stage.
type Config struct {
	// PostingTimes are the daily wall-clock slots posts go out at.
	PostingTimes []trigger.TimeOfDay
	// ConflictWindow is the minimum spacing between two posts. A slot
	// within this window of an existing item is taken. Default 30m.
	ConflictWindow time.Duration
	// HorizonDays bounds the slot search. Default 30.
	HorizonDays int
	// Platforms are the distribution targets. Default ["linkedin"].
	Platforms []string
	// Location is the timezone posting times are interpreted in.
	// Defaults to UTC.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if len(c.PostingTimes) == 0 {
		c.PostingTimes = []trigger.TimeOfDay{
			{Hour: 9},
			{Hour: 12},
			{Hour: 17},
		}
	}
	if c.ConflictWindow <= 0 {
		c.ConflictWindow = 30 * time.Minute
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if len(c.Platforms) == 0 {
		c.Platforms = []string{"linkedin"}
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Producer implements the schedule stage.
type Producer struct {
	cfg   Config
	slots SlotChecker
	log   *zap.Logger
	now   func() time.Time
}

// New creates the schedule producer. slots is the publish queue.
func New(cfg Config, slots SlotChecker, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{cfg: cfg.withDefaults(), slots: slots, log: log, now: time.Now}
}

// WithClock overrides the producer's time source, for tests.
func (p *Producer) WithClock(now func() time.Time) *Producer {
	p.now = now
	return p
}

// Invoke assigns each approved review to the next free slot and returns
// []types.PlannedPost. Zero approved drafts is a valid outcome: the run
// completes having scheduled nothing.
func (p *Producer) Invoke(ctx context.Context, in stages.Input) (any, error) {
	payload, ok := in.Payload(stages.StageEdit)
	if !ok {
		return nil, types.Permanent(stages.StageSchedule, "edit artifact missing", nil)
	}
	reviews, ok := payload.([]types.Review)
	if !ok {
		return nil, types.Permanent(stages.StageSchedule,
			fmt.Sprintf("edit artifact has type %T, want []types.Review", payload), nil)
	}

	planned := make([]types.PlannedPost, 0, len(reviews))
	after := p.now()
	for _, review := range reviews {
		if !review.Approved {
			continue
		}
		slot, found := p.nextFreeSlot(after, planned)
		if !found {
			return nil, types.Permanent(stages.StageSchedule,
				fmt.Sprintf("no free publishing slot within %d days", p.cfg.HorizonDays), nil)
		}
		planned = append(planned, types.PlannedPost{
			Post:          review.Draft.Post,
			ScheduledTime: slot,
			Platforms:     append([]string(nil), p.cfg.Platforms...),
		})
		after = slot
	}

	p.log.Info("schedule stage planned posts",
		zap.String("run_id", in.RunID.String()),
		zap.Int("reviews", len(reviews)),
		zap.Int("planned", len(planned)))

	return planned, nil
}

// nextFreeSlot scans forward day by day through the posting times and
// returns the first slot strictly after the given time that is free in
// both the queue and the batch planned so far.
func (p *Producer) nextFreeSlot(after time.Time, batch []types.PlannedPost) (time.Time, bool) {
	local := after.In(p.cfg.Location)
	for day := 0; day <= p.cfg.HorizonDays; day++ {
		base := local.AddDate(0, 0, day)
		for _, tod := range p.cfg.PostingTimes {
			slot := time.Date(base.Year(), base.Month(), base.Day(), tod.Hour, tod.Minute, 0, 0, p.cfg.Location)
			if !slot.After(after) {
				continue
			}
			if p.slots.IsSlotTaken(slot, p.cfg.ConflictWindow) {
				continue
			}
			if batchConflict(slot, batch, p.cfg.ConflictWindow) {
				continue
			}
			return slot, true
		}
	}
	return time.Time{}, false
}

func batchConflict(slot time.Time, batch []types.PlannedPost, window time.Duration) bool {
	for _, planned := range batch {
		d := planned.ScheduledTime.Sub(slot)
		if d < 0 {
			d = -d
		}
		if d < window {
			return true
		}
	}
	return false
}
