package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/events"
	"github.com/spec-kit/condo-scheduler/internal/followup"
	"github.com/spec-kit/condo-scheduler/internal/repository"
	"github.com/spec-kit/condo-scheduler/internal/scheduler"
	"github.com/spec-kit/condo-scheduler/internal/worker"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

// CaseService drives the case state machine: intake, visit completion,
// manual close and inbound replies. Scheduling errors propagate to the
// caller synchronously; follow-up outcomes never do.
type CaseService struct {
	cases        repository.CaseRepository
	appointments repository.AppointmentRepository
	followUps    repository.FollowUpRepository
	scheduler    *scheduler.SlotScheduler
	engine       *followup.Engine
	locks        *worker.CaseLocks
	dispatcher   events.Dispatcher
	clock        domain.Clock
	logger       *zap.Logger
}

// CaseDependencies bundles collaborator handles.
type CaseDependencies struct {
	CaseRepo        repository.CaseRepository
	AppointmentRepo repository.AppointmentRepository
	FollowUpRepo    repository.FollowUpRepository
	Scheduler       *scheduler.SlotScheduler
	Engine          *followup.Engine
	Locks           *worker.CaseLocks
	Dispatcher      events.Dispatcher
	Clock           domain.Clock
	Logger          *zap.Logger
}

// NewCaseService creates the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = worker.NewCaseLocks()
	}
	return &CaseService{
		cases:        deps.CaseRepo,
		appointments: deps.AppointmentRepo,
		followUps:    deps.FollowUpRepo,
		scheduler:    deps.Scheduler,
		engine:       deps.Engine,
		locks:        locks,
		dispatcher:   deps.Dispatcher,
		clock:        clock,
		logger:       logger,
	}
}

// CaseCreateInput captures intake fields from the chat layer.
type CaseCreateInput struct {
	ResidentID  string
	Category    string
	Description string
	Priority    domain.CasePriority
}

// CaseDetail aggregates a case with its appointments and follow-up state.
type CaseDetail struct {
	Case         *domain.Case
	Appointments []domain.Appointment
	FollowUp     *domain.FollowUpRecord
}

// IntakeCase creates a case and immediately schedules its visit. On
// NoCapacity the case stays NEW and the error surfaces to the caller, who
// retries later or escalates to manual scheduling.
func (s *CaseService) IntakeCase(ctx context.Context, input CaseCreateInput) (*domain.Case, *domain.Appointment, error) {
	if strings.TrimSpace(input.ResidentID) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, nil, apperrors.NewValidationError("resident_id and category required", nil)
	}
	if !input.Priority.Valid() {
		return nil, nil, apperrors.NewValidationError("unknown priority tier", map[string]any{"priority": input.Priority})
	}

	c := &domain.Case{
		ExternalKey: "CASE-" + uuid.NewString(),
		ResidentID:  input.ResidentID,
		Category:    input.Category,
		Description: input.Description,
		Status:      domain.CaseStatusNew,
		Priority:    input.Priority,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	appt, err := s.scheduler.AssignSlot(ctx, c)
	if err != nil {
		return c, nil, err
	}

	c.Status = domain.CaseStatusScheduled
	c.TechnicianID = appt.TechnicianID
	c.AwaitingTechnician = appt.TechnicianID == nil
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventCaseScheduled, c.ID, events.CaseScheduledPayload{
		AppointmentID:      appt.ID,
		Day:                appt.Day,
		Block:              appt.BlockID,
		TechnicianID:       appt.TechnicianID,
		AwaitingTechnician: c.AwaitingTechnician,
	})
	return c, appt, nil
}

// GetCase returns the case with its appointment history and follow-up state.
func (s *CaseService) GetCase(ctx context.Context, id string) (*CaseDetail, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	appts, err := s.appointments.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	rec, err := s.followUps.GetActiveByCase(ctx, c.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CaseDetail{Case: c, Appointments: appts, FollowUp: rec}, nil
}

// CompleteVisit consumes the external visit-finished signal: the pending
// appointment completes and the case enters VISIT_COMPLETED. The follow-up
// itself starts later, once the ScheduleClock sees the initial delay pass.
func (s *CaseService) CompleteVisit(ctx context.Context, caseID string) (*domain.Case, error) {
	var result *domain.Case
	var outerErr error
	s.locks.Do(caseID, func() {
		result, outerErr = s.completeVisitLocked(ctx, caseID)
	})
	return result, outerErr
}

func (s *CaseService) completeVisitLocked(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	if c.Status != domain.CaseStatusScheduled {
		return nil, apperrors.NewConflict("case is not scheduled", map[string]any{
			"case_id": caseID,
			"status":  c.Status,
		})
	}

	appt, err := s.appointments.GetPendingByCase(ctx, c.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if appt != nil {
		appt.Status = domain.AppointmentStatusCompleted
		if err := s.appointments.Update(ctx, appt); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	now := s.clock.Now()
	c.Status = domain.CaseStatusVisitCompleted
	c.VisitCompletedAt = &now
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := events.VisitCompletedPayload{CompletedAt: now}
	if appt != nil {
		payload.AppointmentID = appt.ID
	}
	s.publish(ctx, events.EventVisitCompleted, c.ID, payload)
	s.logger.Info("visit completed", zap.String("case_id", c.ID))
	return c, nil
}

// CloseCase handles a manual operator close: the active follow-up is
// deactivated eagerly (never left for the next tick to discover) and the
// pending appointment is cancelled so its slot capacity is released.
func (s *CaseService) CloseCase(ctx context.Context, caseID string) (*domain.Case, error) {
	var result *domain.Case
	var outerErr error
	s.locks.Do(caseID, func() {
		result, outerErr = s.closeCaseLocked(ctx, caseID)
	})
	return result, outerErr
}

func (s *CaseService) closeCaseLocked(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	if c.Status.Terminal() {
		return c, nil
	}

	if err := s.engine.Cancel(ctx, c.ID); err != nil {
		return nil, err
	}

	appt, err := s.appointments.GetPendingByCase(ctx, c.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if appt != nil {
		appt.Status = domain.AppointmentStatusCancelled
		if err := s.appointments.Update(ctx, appt); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	now := s.clock.Now()
	c.Status = domain.CaseStatusResolved
	c.ClosedAt = &now
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventCaseResolved, c.ID, events.CaseClosedPayload{
		Outcome: domain.FollowUpOutcomeResolved,
	})
	s.logger.Info("case closed manually", zap.String("case_id", c.ID))
	return c, nil
}

// HandleReply routes an inbound chat reply to the follow-up engine under
// the case lock, so it cannot race a reminder discovered by the same tick.
func (s *CaseService) HandleReply(ctx context.Context, caseKey, text string) (followup.ReplyClass, error) {
	c, err := s.cases.GetByExternalKey(ctx, caseKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return followup.ReplyIgnored, apperrors.NewNotFound("case", map[string]any{"case_key": caseKey})
		}
		return followup.ReplyIgnored, apperrors.MapError(err)
	}

	var class followup.ReplyClass
	var replyErr error
	s.locks.Do(c.ID, func() {
		class, replyErr = s.engine.ProcessReply(ctx, c, text)
	})
	return class, replyErr
}

func (s *CaseService) publish(ctx context.Context, eventType events.EventType, caseID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    caseID,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	})
}
