package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/events"
	"github.com/spec-kit/condo-scheduler/internal/messaging"
	"github.com/spec-kit/condo-scheduler/internal/observability"
	"github.com/spec-kit/condo-scheduler/internal/repository"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

// Protocol constants. The initial 4h pause after visit completion is owned
// by the ScheduleClock, not the engine, since it hangs off the
// visit-completion event rather than the retry clock.
const (
	DefaultMaxAttempts   = 7
	DefaultRetryInterval = 24 * time.Hour
)

// ReplyIgnored reports a reply that arrived with no active follow-up;
// processing it is a no-op, not an error.
const ReplyIgnored ReplyClass = "IGNORED"

// DueActionKind partitions due records into reminders and expirations.
type DueActionKind string

const (
	ActionSendReminder DueActionKind = "SEND_REMINDER"
	ActionExpire       DueActionKind = "EXPIRE"
)

// DueAction is one unit of work discovered by Tick.
type DueAction struct {
	Record domain.FollowUpRecord
	Kind   DueActionKind
}

// Rescheduler re-enters a reopened case into scheduling. Implemented by
// scheduler.SlotScheduler.
type Rescheduler interface {
	AssignSlot(ctx context.Context, c *domain.Case) (*domain.Appointment, error)
}

// Engine owns the post-visit conversation lifecycle for cases: attempt
// counting, reply classification and closure/reopening decisions. All
// message I/O driven by the retry clock stays in the orchestrator; Tick
// only computes what is due.
type Engine struct {
	cases         repository.CaseRepository
	followUps     repository.FollowUpRepository
	rescheduler   Rescheduler
	sender        messaging.Sender
	dispatcher    events.Dispatcher
	clock         domain.Clock
	logger        *zap.Logger
	metrics       *observability.Metrics
	maxAttempts   int
	retryInterval time.Duration
}

// EngineDependencies bundles collaborator handles.
type EngineDependencies struct {
	CaseRepo     repository.CaseRepository
	FollowUpRepo repository.FollowUpRepository
	Rescheduler  Rescheduler
	Sender       messaging.Sender
	Dispatcher   events.Dispatcher
	Clock        domain.Clock
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewEngine creates the engine with default protocol constants.
func NewEngine(deps EngineDependencies) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cases:         deps.CaseRepo,
		followUps:     deps.FollowUpRepo,
		rescheduler:   deps.Rescheduler,
		sender:        deps.Sender,
		dispatcher:    deps.Dispatcher,
		clock:         clock,
		logger:        logger,
		metrics:       deps.Metrics,
		maxAttempts:   DefaultMaxAttempts,
		retryInterval: DefaultRetryInterval,
	}
}

// WithMaxAttempts overrides the attempt ceiling.
func (e *Engine) WithMaxAttempts(n int) *Engine {
	if n > 0 {
		e.maxAttempts = n
	}
	return e
}

// WithRetryInterval overrides the spacing between attempts.
func (e *Engine) WithRetryInterval(d time.Duration) *Engine {
	if d > 0 {
		e.retryInterval = d
	}
	return e
}

// StartFollowUp opens the verification conversation for a case that just
// entered VISIT_COMPLETED. It creates the single active record (attempt 1),
// sends the initial prompt and schedules the next attempt one retry
// interval out. Called exactly once per visit completion; a second call
// while a record is active is a programmer error.
func (e *Engine) StartFollowUp(ctx context.Context, c *domain.Case) (*domain.FollowUpRecord, error) {
	existing, err := e.followUps.GetActiveByCase(ctx, c.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if existing != nil {
		return nil, apperrors.NewDuplicateFollowUp(c.ID)
	}

	now := e.clock.Now()
	rec := &domain.FollowUpRecord{
		CaseID:        c.ID,
		Attempts:      1,
		LastAttemptAt: &now,
		NextDueAt:     now.Add(e.retryInterval),
		Active:        true,
		Outcome:       domain.FollowUpOutcomeUnset,
	}
	if err := e.followUps.Create(ctx, rec); err != nil {
		return nil, apperrors.MapError(err)
	}

	e.sendPrompt(ctx, c, initialPrompt(c))
	e.metrics.Inc(observability.CounterFollowUpStarted)
	e.publish(ctx, events.EventFollowUpStarted, c.ID, events.FollowUpStartedPayload{
		FollowUpID: rec.ID,
		NextDueAt:  rec.NextDueAt,
	})
	e.logger.Info("follow-up started", zap.String("case_id", c.ID), zap.Time("next_due", rec.NextDueAt))
	return rec, nil
}

// Tick is a pure query: it partitions every active record due at or before
// now into reminder sends and expirations. No messages are sent here.
func (e *Engine) Tick(ctx context.Context, now time.Time) ([]DueAction, error) {
	due, err := e.followUps.ListDue(ctx, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	actions := make([]DueAction, 0, len(due))
	for _, rec := range due {
		kind := ActionSendReminder
		if rec.Attempts >= e.maxAttempts {
			kind = ActionExpire
		}
		actions = append(actions, DueAction{Record: rec, Kind: kind})
	}
	return actions, nil
}

// RecordReminderSent advances the attempt counter after the orchestrator
// delivered a reminder, and pushes the due time one retry interval out.
// Idempotent only if called once per due cycle; the orchestrator guards
// against double-firing.
func (e *Engine) RecordReminderSent(ctx context.Context, rec *domain.FollowUpRecord) error {
	now := e.clock.Now()
	rec.Attempts++
	rec.LastAttemptAt = &now
	rec.NextDueAt = now.Add(e.retryInterval)
	if err := e.followUps.Update(ctx, rec); err != nil {
		return apperrors.MapError(err)
	}
	e.metrics.Inc(observability.CounterReminderSent)
	e.publish(ctx, events.EventReminderSent, rec.CaseID, events.ReminderSentPayload{
		FollowUpID: rec.ID,
		Attempt:    rec.Attempts,
		NextDueAt:  rec.NextDueAt,
	})
	return nil
}

// ProcessReply classifies a free-text reply and applies the resulting case
// transition. Replies for cases with no active follow-up are ignored, which
// makes re-processing a resolution after closure a no-op.
func (e *Engine) ProcessReply(ctx context.Context, c *domain.Case, text string) (ReplyClass, error) {
	rec, err := e.followUps.GetActiveByCase(ctx, c.ID)
	if err != nil {
		return ReplyIgnored, apperrors.MapError(err)
	}
	if rec == nil {
		e.logger.Debug("reply without active follow-up ignored", zap.String("case_id", c.ID))
		return ReplyIgnored, nil
	}

	class := ClassifyReply(text)
	switch class {
	case ReplyResolved:
		if err := e.closeRecord(ctx, rec, domain.FollowUpOutcomeResolved); err != nil {
			return class, err
		}
		if err := e.transitionCase(ctx, c, domain.CaseStatusResolved); err != nil {
			return class, err
		}
		e.metrics.Inc(observability.CounterCaseResolved)
		e.publish(ctx, events.EventCaseResolved, c.ID, events.CaseClosedPayload{
			Outcome:  domain.FollowUpOutcomeResolved,
			Attempts: rec.Attempts,
		})
		e.logger.Info("case resolved by reply", zap.String("case_id", c.ID), zap.Int("attempts", rec.Attempts))
		return class, nil

	case ReplyUnresolved:
		if err := e.closeRecord(ctx, rec, domain.FollowUpOutcomeUnresolved); err != nil {
			return class, err
		}
		if err := e.reopen(ctx, c, rec.Attempts); err != nil {
			return class, err
		}
		return class, nil

	default:
		// The reply is not consumed as a resolution signal: the existing
		// due schedule stays untouched and the customer is asked to clarify.
		e.sendPrompt(ctx, c, clarifyPrompt(c))
		return ReplyAmbiguous, nil
	}
}

// Expire closes the follow-up for a record that exhausted its attempts.
// This is the timeout path that guarantees termination without any reply.
func (e *Engine) Expire(ctx context.Context, rec *domain.FollowUpRecord) error {
	// A reply may have closed the record after it was discovered by Tick;
	// re-check against storage before committing the timeout outcome.
	current, err := e.followUps.GetActiveByCase(ctx, rec.CaseID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if current == nil || current.ID != rec.ID {
		return nil
	}
	if err := e.closeRecord(ctx, rec, domain.FollowUpOutcomeNoResponse); err != nil {
		return err
	}
	c, err := e.cases.GetByID(ctx, rec.CaseID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := e.transitionCase(ctx, c, domain.CaseStatusClosedNoResponse); err != nil {
		return err
	}
	e.metrics.Inc(observability.CounterCaseNoResponse)
	e.publish(ctx, events.EventCaseClosedNoResponse, c.ID, events.CaseClosedPayload{
		Outcome:  domain.FollowUpOutcomeNoResponse,
		Attempts: rec.Attempts,
	})
	e.logger.Info("case closed without response", zap.String("case_id", c.ID), zap.Int("attempts", rec.Attempts))
	return nil
}

// Cancel eagerly deactivates the active follow-up when a case closes
// through another path, so a stale reminder can never fire against it.
func (e *Engine) Cancel(ctx context.Context, caseID string) error {
	rec, err := e.followUps.GetActiveByCase(ctx, caseID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if rec == nil {
		return nil
	}
	rec.Active = false
	if err := e.followUps.Update(ctx, rec); err != nil {
		return apperrors.MapError(err)
	}
	e.logger.Info("follow-up cancelled", zap.String("case_id", caseID))
	return nil
}

func (e *Engine) reopen(ctx context.Context, c *domain.Case, attempts int) error {
	c.Status = domain.CaseStatusReopened
	if err := e.cases.Update(ctx, c); err != nil {
		return apperrors.MapError(err)
	}

	appt, err := e.rescheduler.AssignSlot(ctx, c)
	if err != nil {
		// The case stays REOPENED for manual intervention; the follow-up
		// record is already closed so no further reminders fire.
		e.logger.Error("reopen rescheduling failed", zap.String("case_id", c.ID), zap.Error(err))
		return err
	}

	c.Status = domain.CaseStatusScheduled
	c.TechnicianID = appt.TechnicianID
	c.AwaitingTechnician = appt.TechnicianID == nil
	c.VisitCompletedAt = nil
	if err := e.cases.Update(ctx, c); err != nil {
		return apperrors.MapError(err)
	}

	e.metrics.Inc(observability.CounterCaseReopened)
	e.publish(ctx, events.EventCaseReopened, c.ID, events.CaseReopenedPayload{
		NewAppointmentID: appt.ID,
		Attempts:         attempts,
	})
	e.logger.Info("case reopened and rescheduled",
		zap.String("case_id", c.ID),
		zap.String("appointment_id", appt.ID),
	)
	return nil
}

func (e *Engine) closeRecord(ctx context.Context, rec *domain.FollowUpRecord, outcome domain.FollowUpOutcome) error {
	rec.Active = false
	rec.Outcome = outcome
	if err := e.followUps.Update(ctx, rec); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (e *Engine) transitionCase(ctx context.Context, c *domain.Case, status domain.CaseStatus) error {
	now := e.clock.Now()
	c.Status = status
	if status.Terminal() {
		c.ClosedAt = &now
	}
	if err := e.cases.Update(ctx, c); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (e *Engine) sendPrompt(ctx context.Context, c *domain.Case, text string) {
	if err := e.sender.SendPrompt(ctx, c.ID, text); err != nil {
		e.logger.Warn("prompt send failed", zap.String("case_id", c.ID), zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, eventType events.EventType, caseID string, payload interface{}) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    caseID,
		Timestamp: e.clock.Now(),
		Payload:   payload,
	})
}

func initialPrompt(c *domain.Case) string {
	return fmt.Sprintf("Hola, le escribimos por su reporte %s. ¿Quedó resuelto el problema tras la visita del técnico? Responda sí o no.", c.ExternalKey)
}

// ReminderPrompt is the text the orchestrator sends for each due reminder.
func ReminderPrompt(c *domain.Case) string {
	return fmt.Sprintf("Le recordamos su reporte %s. ¿Quedó resuelto el problema? Responda sí o no.", c.ExternalKey)
}

func clarifyPrompt(c *domain.Case) string {
	return fmt.Sprintf("Disculpe, no entendimos su respuesta sobre el reporte %s. ¿El problema quedó resuelto? Responda sí o no.", c.ExternalKey)
}
