package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/followup"
	"github.com/spec-kit/condo-scheduler/internal/observability"
	"github.com/spec-kit/condo-scheduler/internal/repository"
	"github.com/spec-kit/condo-scheduler/internal/scheduler"
	"github.com/spec-kit/condo-scheduler/internal/worker"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type memCaseRepo struct {
	mu    sync.Mutex
	seq   int
	cases map[string]*domain.Case
}

func newMemCaseRepo() *memCaseRepo {
	return &memCaseRepo{cases: make(map[string]*domain.Case)}
}

func (m *memCaseRepo) Create(ctx context.Context, c *domain.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.ID = fmt.Sprintf("case-%d", m.seq)
	clone := *c
	m.cases[c.ID] = &clone
	return nil
}

func (m *memCaseRepo) Update(ctx context.Context, c *domain.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *c
	m.cases[c.ID] = &clone
	return nil
}

func (m *memCaseRepo) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (m *memCaseRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.ExternalKey == key {
			clone := *c
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memCaseRepo) ListWithFilter(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	return nil, nil
}

func (m *memCaseRepo) ListAwaitingFollowUp(ctx context.Context, completedBefore time.Time) ([]domain.Case, error) {
	return nil, nil
}

func (m *memCaseRepo) get(id string) domain.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cases[id]
}

type memAppointmentRepo struct {
	mu           sync.Mutex
	seq          int
	appointments []domain.Appointment
}

func (m *memAppointmentRepo) Create(ctx context.Context, appt *domain.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	appt.ID = fmt.Sprintf("appt-%d", m.seq)
	m.appointments = append(m.appointments, *appt)
	return nil
}

func (m *memAppointmentRepo) Update(ctx context.Context, appt *domain.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.appointments {
		if m.appointments[i].ID == appt.ID {
			m.appointments[i] = *appt
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memAppointmentRepo) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.appointments {
		if m.appointments[i].ID == id {
			clone := m.appointments[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memAppointmentRepo) GetPendingByCase(ctx context.Context, caseID string) (*domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.appointments {
		if m.appointments[i].CaseID == caseID && m.appointments[i].Status == domain.AppointmentStatusPending {
			clone := m.appointments[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memAppointmentRepo) CountForBlock(ctx context.Context, day time.Time, blockID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, appt := range m.appointments {
		if appt.Day.Equal(day) && appt.BlockID == blockID && appt.Status != domain.AppointmentStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (m *memAppointmentRepo) CountForTechnicianOnDay(ctx context.Context, technicianID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, appt := range m.appointments {
		if appt.TechnicianID == nil || *appt.TechnicianID != technicianID {
			continue
		}
		if appt.Day.Equal(day) && appt.Status != domain.AppointmentStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (m *memAppointmentRepo) ListByCase(ctx context.Context, caseID string) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Appointment
	for _, appt := range m.appointments {
		if appt.CaseID == caseID {
			result = append(result, appt)
		}
	}
	return result, nil
}

func (m *memAppointmentRepo) byID(id string) domain.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, appt := range m.appointments {
		if appt.ID == id {
			return appt
		}
	}
	return domain.Appointment{}
}

type memTechnicianRepo struct {
	technicians []domain.Technician
}

func (m *memTechnicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	for i := range m.technicians {
		if m.technicians[i].ID == id {
			clone := m.technicians[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memTechnicianRepo) ListActive(ctx context.Context) ([]domain.Technician, error) {
	var active []domain.Technician
	for _, tech := range m.technicians {
		if tech.Active {
			active = append(active, tech)
		}
	}
	return active, nil
}

type memFollowUpRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]*domain.FollowUpRecord
}

func newMemFollowUpRepo() *memFollowUpRepo {
	return &memFollowUpRepo{records: make(map[string]*domain.FollowUpRecord)}
}

func (m *memFollowUpRepo) Create(ctx context.Context, rec *domain.FollowUpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.ID = fmt.Sprintf("fu-%d", m.seq)
	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *memFollowUpRepo) Update(ctx context.Context, rec *domain.FollowUpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *rec
	m.records[rec.ID] = &clone
	return nil
}

func (m *memFollowUpRepo) GetActiveByCase(ctx context.Context, caseID string) (*domain.FollowUpRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.CaseID == caseID && rec.Active {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memFollowUpRepo) ListDue(ctx context.Context, now time.Time) ([]domain.FollowUpRecord, error) {
	return nil, nil
}

type memSender struct {
	mu      sync.Mutex
	prompts []string
}

func (m *memSender) SendPrompt(ctx context.Context, caseID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, text)
	return nil
}

type serviceFixture struct {
	service      *CaseService
	engine       *followup.Engine
	cases        *memCaseRepo
	appointments *memAppointmentRepo
	technicians  *memTechnicianRepo
	followUps    *memFollowUpRepo
	sender       *memSender
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cases := newMemCaseRepo()
	appointments := &memAppointmentRepo{}
	technicians := &memTechnicianRepo{technicians: []domain.Technician{
		{ID: "tech-a", Name: "Ana", Active: true},
	}}
	followUps := newMemFollowUpRepo()
	sender := &memSender{}
	clock := fixedClock{now: monday.Add(8 * time.Hour)}

	slots := scheduler.NewSlotScheduler(scheduler.Dependencies{
		AppointmentRepo: appointments,
		TechnicianRepo:  technicians,
		Catalog:         scheduler.DefaultCatalog(),
		Clock:           clock,
		Metrics:         observability.NewMetrics(),
	})
	engine := followup.NewEngine(followup.EngineDependencies{
		CaseRepo:     cases,
		FollowUpRepo: followUps,
		Rescheduler:  slots,
		Sender:       sender,
		Clock:        clock,
	})
	svc := NewCaseService(CaseDependencies{
		CaseRepo:        cases,
		AppointmentRepo: appointments,
		FollowUpRepo:    followUps,
		Scheduler:       slots,
		Engine:          engine,
		Locks:           worker.NewCaseLocks(),
		Clock:           clock,
	})
	return &serviceFixture{
		service:      svc,
		engine:       engine,
		cases:        cases,
		appointments: appointments,
		technicians:  technicians,
		followUps:    followUps,
		sender:       sender,
	}
}

func intakeInput() CaseCreateInput {
	return CaseCreateInput{
		ResidentID:  "res-1",
		Category:    "plumbing",
		Description: "fuga de agua en el baño",
		Priority:    domain.CasePriorityMedium,
	}
}

func TestIntakeCaseSchedulesImmediately(t *testing.T) {
	fx := newServiceFixture(t)

	c, appt, err := fx.service.IntakeCase(context.Background(), intakeInput())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(c.ExternalKey, "CASE-"))
	assert.Equal(t, domain.CaseStatusScheduled, c.Status)
	require.NotNil(t, c.TechnicianID)
	assert.False(t, c.AwaitingTechnician)

	require.NotNil(t, appt)
	assert.Equal(t, "B1", appt.BlockID)
	assert.True(t, appt.Day.Equal(monday))

	stored := fx.cases.get(c.ID)
	assert.Equal(t, domain.CaseStatusScheduled, stored.Status)
}

func TestIntakeCaseValidatesInput(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	_, _, err := fx.service.IntakeCase(ctx, CaseCreateInput{Category: "plumbing", Priority: domain.CasePriorityLow})
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	_, _, err = fx.service.IntakeCase(ctx, CaseCreateInput{ResidentID: "res-1", Category: "plumbing", Priority: "URGENTISIMO"})
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestIntakeCaseStaysNewWithoutCapacity(t *testing.T) {
	fx := newServiceFixture(t)

	// Critical cases only search today; exhaust every block.
	for _, blockID := range []string{"B1", "B2", "B3", "B4"} {
		for i := 0; i < 2; i++ {
			require.NoError(t, fx.appointments.Create(context.Background(), &domain.Appointment{
				CaseID:  "seed",
				Day:     monday,
				BlockID: blockID,
				Status:  domain.AppointmentStatusPending,
			}))
		}
	}

	input := intakeInput()
	input.Priority = domain.CasePriorityCritical
	c, appt, err := fx.service.IntakeCase(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoCapacity))
	assert.Nil(t, appt)

	require.NotNil(t, c, "the case record must survive the scheduling failure")
	assert.Equal(t, domain.CaseStatusNew, fx.cases.get(c.ID).Status)
}

func TestIntakeCaseAwaitingTechnician(t *testing.T) {
	fx := newServiceFixture(t)
	fx.technicians.technicians = nil

	c, appt, err := fx.service.IntakeCase(context.Background(), intakeInput())
	require.NoError(t, err)

	assert.Equal(t, domain.CaseStatusScheduled, c.Status)
	assert.Nil(t, c.TechnicianID)
	assert.True(t, c.AwaitingTechnician)
	assert.Nil(t, appt.TechnicianID)
}

func TestCompleteVisitMarksAppointmentAndCase(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, appt, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)

	updated, err := fx.service.CompleteVisit(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.CaseStatusVisitCompleted, updated.Status)
	require.NotNil(t, updated.VisitCompletedAt)
	assert.Equal(t, domain.AppointmentStatusCompleted, fx.appointments.byID(appt.ID).Status)
}

func TestCompleteVisitRejectsUnscheduledCase(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, _, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)

	_, err = fx.service.CompleteVisit(ctx, c.ID)
	require.NoError(t, err)

	_, err = fx.service.CompleteVisit(ctx, c.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONFLICT"))

	_, err = fx.service.CompleteVisit(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestCloseCaseCancelsPendingAppointment(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, appt, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)

	closed, err := fx.service.CloseCase(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.CaseStatusResolved, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, domain.AppointmentStatusCancelled, fx.appointments.byID(appt.ID).Status)

	// The freed slot is available again.
	count, err := fx.appointments.CountForBlock(ctx, monday, "B1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCloseCaseDeactivatesFollowUp(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, _, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)
	_, err = fx.service.CompleteVisit(ctx, c.ID)
	require.NoError(t, err)

	current := fx.cases.get(c.ID)
	_, err = fx.engine.StartFollowUp(ctx, &current)
	require.NoError(t, err)

	_, err = fx.service.CloseCase(ctx, c.ID)
	require.NoError(t, err)

	rec, err := fx.followUps.GetActiveByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, rec, "manual close must deactivate the follow-up eagerly")
}

func TestCloseCaseIsIdempotentOnTerminalCase(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, _, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)

	_, err = fx.service.CloseCase(ctx, c.ID)
	require.NoError(t, err)
	closed, err := fx.service.CloseCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusResolved, closed.Status)
}

func TestHandleReplyResolvesByExternalKey(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, _, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)
	_, err = fx.service.CompleteVisit(ctx, c.ID)
	require.NoError(t, err)

	current := fx.cases.get(c.ID)
	_, err = fx.engine.StartFollowUp(ctx, &current)
	require.NoError(t, err)

	class, err := fx.service.HandleReply(ctx, c.ExternalKey, "sí, quedó resuelto, gracias")
	require.NoError(t, err)
	assert.Equal(t, followup.ReplyResolved, class)
	assert.Equal(t, domain.CaseStatusResolved, fx.cases.get(c.ID).Status)
}

func TestHandleReplyUnknownCaseKey(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.HandleReply(context.Background(), "CASE-missing", "resuelto")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestGetCaseAggregatesDetail(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	c, appt, err := fx.service.IntakeCase(ctx, intakeInput())
	require.NoError(t, err)

	detail, err := fx.service.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, detail.Case.ID)
	require.Len(t, detail.Appointments, 1)
	assert.Equal(t, appt.ID, detail.Appointments[0].ID)
	assert.Nil(t, detail.FollowUp)

	_, err = fx.service.GetCase(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}
