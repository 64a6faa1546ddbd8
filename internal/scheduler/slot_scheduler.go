package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/observability"
	"github.com/spec-kit/condo-scheduler/internal/repository"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

// SlotScheduler finds the earliest compliant appointment slot for a case
// and balances assignments across technicians. It owns no timers and no
// retries; callers re-invoke it when scheduling fails.
type SlotScheduler struct {
	appointments repository.AppointmentRepository
	technicians  repository.TechnicianRepository
	catalog      *Catalog
	locks        SlotLocker
	clock        domain.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics
}

// Dependencies bundles collaborator handles for the scheduler.
type Dependencies struct {
	AppointmentRepo repository.AppointmentRepository
	TechnicianRepo  repository.TechnicianRepository
	Catalog         *Catalog
	Locks           SlotLocker
	Clock           domain.Clock
	Logger          *zap.Logger
	Metrics         *observability.Metrics
}

// NewSlotScheduler creates the scheduler.
func NewSlotScheduler(deps Dependencies) *SlotScheduler {
	locks := deps.Locks
	if locks == nil {
		locks = NewLocalSlotLocker()
	}
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotScheduler{
		appointments: deps.AppointmentRepo,
		technicians:  deps.TechnicianRepo,
		catalog:      deps.Catalog,
		locks:        locks,
		clock:        clock,
		logger:       logger,
		metrics:      deps.Metrics,
	}
}

// AssignSlot selects the first (day, block) slot under capacity within the
// priority's search horizon, skipping weekends and, for today, blocks whose
// start time has already passed. The capacity check and the appointment
// insert run under a per-slot lock so concurrent callers cannot overshoot
// block capacity. Selection is first-fit in forward chronological order,
// which keeps the result deterministic for a given appointment snapshot.
func (s *SlotScheduler) AssignSlot(ctx context.Context, c *domain.Case) (*domain.Appointment, error) {
	if s.catalog.Empty() {
		return nil, apperrors.NewNoCatalog()
	}

	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := c.Priority.SearchHorizonDays()

	for offset := 0; offset < horizon; offset++ {
		day := today.AddDate(0, 0, offset)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, block := range s.catalog.Blocks() {
			if offset == 0 && block.StartOn(day).Before(now) {
				continue
			}
			appt, ok, err := s.tryBlock(ctx, c, day, block)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s.metrics.Inc(observability.CounterSlotAssigned)
			if appt.TechnicianID == nil {
				s.metrics.Inc(observability.CounterAwaitingTechnician)
			}
			s.logger.Info("slot assigned",
				zap.String("case_id", c.ID),
				zap.Time("day", day),
				zap.String("block", block.Label()),
				zap.Stringp("technician_id", appt.TechnicianID),
			)
			return appt, nil
		}
	}

	s.metrics.Inc(observability.CounterNoCapacity)
	return nil, apperrors.NewNoCapacity(map[string]any{
		"case_id":      c.ID,
		"priority":     c.Priority,
		"horizon_days": horizon,
	})
}

// tryBlock runs the capacity check and insert atomically for one slot.
func (s *SlotScheduler) tryBlock(ctx context.Context, c *domain.Case, day time.Time, block domain.TimeBlock) (*domain.Appointment, bool, error) {
	release, err := s.locks.Acquire(ctx, day, block.ID)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	defer release()

	count, err := s.appointments.CountForBlock(ctx, day, block.ID)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if count >= block.Capacity {
		return nil, false, nil
	}

	technicianID, err := s.pickTechnician(ctx, c, day)
	if err != nil {
		return nil, false, err
	}

	appt := &domain.Appointment{
		CaseID:       c.ID,
		TechnicianID: technicianID,
		Day:          day,
		BlockID:      block.ID,
		StartsAt:     block.StartOn(day),
		EndsAt:       block.EndOn(day),
		Status:       domain.AppointmentStatusPending,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, false, apperrors.MapError(err)
	}
	return appt, true, nil
}

// pickTechnician chooses the active technician with the fewest appointments
// on the given day, preferring specialty matches for the case category and
// falling back to any active technician. Ties break by identifier order.
// A nil result means no active technician exists; the appointment is still
// created and the case stays in the awaiting-technician sub-state.
func (s *SlotScheduler) pickTechnician(ctx context.Context, c *domain.Case, day time.Time) (*string, error) {
	active, err := s.technicians.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(active) == 0 {
		s.logger.Warn("no active technician; appointment created unassigned", zap.String("case_id", c.ID))
		return nil, nil
	}

	candidates := make([]domain.Technician, 0, len(active))
	for _, tech := range active {
		if tech.HasSpecialty(c.Category) {
			candidates = append(candidates, tech)
		}
	}
	if len(candidates) == 0 {
		candidates = active
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	var chosen *domain.Technician
	best := 0
	for i := range candidates {
		count, err := s.appointments.CountForTechnicianOnDay(ctx, candidates[i].ID, day)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if chosen == nil || count < best {
			chosen = &candidates[i]
			best = count
		}
	}
	id := chosen.ID
	return &id, nil
}
