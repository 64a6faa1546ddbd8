package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/followup"
	"github.com/spec-kit/condo-scheduler/internal/messaging"
	"github.com/spec-kit/condo-scheduler/internal/repository"
)

// ScheduleClock is the single periodic driver for the follow-up protocol.
// One ticker covers every case regardless of volume; per-case timers would
// leak a timer per entity. Each pass is recomputed from persisted due
// times, so a restart resumes exactly where the previous process stopped.
type ScheduleClock struct {
	engine       *followup.Engine
	cases        repository.CaseRepository
	sender       messaging.Sender
	locks        *CaseLocks
	clock        domain.Clock
	logger       *zap.Logger
	interval     time.Duration
	initialDelay time.Duration
}

// NewScheduleClock creates the driver.
func NewScheduleClock(engine *followup.Engine, cases repository.CaseRepository, sender messaging.Sender, locks *CaseLocks, logger *zap.Logger) *ScheduleClock {
	if locks == nil {
		locks = NewCaseLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleClock{
		engine:       engine,
		cases:        cases,
		sender:       sender,
		locks:        locks,
		clock:        domain.SystemClock(),
		logger:       logger,
		interval:     time.Hour,
		initialDelay: 4 * time.Hour,
	}
}

// WithInterval overrides the tick period.
func (sc *ScheduleClock) WithInterval(d time.Duration) *ScheduleClock {
	if d > 0 {
		sc.interval = d
	}
	return sc
}

// WithInitialDelay overrides the pause between visit completion and the
// first prompt.
func (sc *ScheduleClock) WithInitialDelay(d time.Duration) *ScheduleClock {
	if d >= 0 {
		sc.initialDelay = d
	}
	return sc
}

// WithClock injects a clock for tests.
func (sc *ScheduleClock) WithClock(clock domain.Clock) *ScheduleClock {
	if clock != nil {
		sc.clock = clock
	}
	return sc
}

// Run drives passes until the context is cancelled.
func (sc *ScheduleClock) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	sc.Pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sc.Pass(ctx)
		}
	}
}

// Pass executes one logical tick: start follow-ups for visits past the
// initial delay, then process every due record. Due records are handled
// concurrently; the per-case locks serialize work against inbound replies.
func (sc *ScheduleClock) Pass(ctx context.Context) {
	now := sc.clock.Now()
	sc.startPending(ctx, now)
	sc.processDue(ctx, now)
}

func (sc *ScheduleClock) startPending(ctx context.Context, now time.Time) {
	pending, err := sc.cases.ListAwaitingFollowUp(ctx, now.Add(-sc.initialDelay))
	if err != nil {
		sc.logger.Error("follow-up start scan failed", zap.Error(err))
		return
	}
	for i := range pending {
		c := pending[i]
		sc.locks.Do(c.ID, func() {
			if _, err := sc.engine.StartFollowUp(ctx, &c); err != nil {
				sc.logger.Error("follow-up start failed", zap.String("case_id", c.ID), zap.Error(err))
			}
		})
	}
}

func (sc *ScheduleClock) processDue(ctx context.Context, now time.Time) {
	actions, err := sc.engine.Tick(ctx, now)
	if err != nil {
		sc.logger.Error("tick failed", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, action := range actions {
		wg.Add(1)
		go func(action followup.DueAction) {
			defer wg.Done()
			sc.locks.Do(action.Record.CaseID, func() {
				sc.handle(ctx, action)
			})
		}(action)
	}
	wg.Wait()
}

func (sc *ScheduleClock) handle(ctx context.Context, action followup.DueAction) {
	switch action.Kind {
	case followup.ActionSendReminder:
		c, err := sc.cases.GetByID(ctx, action.Record.CaseID)
		if err != nil {
			sc.logger.Error("load case for reminder failed", zap.String("case_id", action.Record.CaseID), zap.Error(err))
			return
		}
		// A reply may have closed the record between Tick and this lock.
		if c.Status != domain.CaseStatusVisitCompleted {
			return
		}
		if err := sc.sender.SendPrompt(ctx, c.ID, followup.ReminderPrompt(c)); err != nil {
			// Not retried here: the record stays due and the next pass
			// picks it up again.
			sc.logger.Warn("reminder send failed", zap.String("case_id", c.ID), zap.Error(err))
			return
		}
		rec := action.Record
		if err := sc.engine.RecordReminderSent(ctx, &rec); err != nil {
			sc.logger.Error("record reminder failed", zap.String("case_id", c.ID), zap.Error(err))
		}
	case followup.ActionExpire:
		rec := action.Record
		if err := sc.engine.Expire(ctx, &rec); err != nil {
			sc.logger.Error("expire failed", zap.String("case_id", rec.CaseID), zap.Error(err))
		}
	}
}
