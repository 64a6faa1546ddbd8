package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/condo-scheduler/internal/api/dto"
	"github.com/spec-kit/condo-scheduler/internal/domain"
	"github.com/spec-kit/condo-scheduler/internal/service"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

// CasesHandler manages case intake and lifecycle endpoints.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.CaseCreateInput{
		ResidentID:  req.ResidentID,
		Category:    req.Category,
		Description: req.Description,
		Priority:    req.Priority,
	}
	created, appt, err := h.service.IntakeCase(c.Context(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"case":        caseSummary(created),
		"appointment": appointmentResponse(appt),
	}})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	detail, err := h.service.GetCase(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(detail)})
}

// CompleteVisit POST /cases/:id/visit-completed.
func (h *CasesHandler) CompleteVisit(c *fiber.Ctx) error {
	updated, err := h.service.CompleteVisit(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

// CloseCase POST /cases/:id/close.
func (h *CasesHandler) CloseCase(c *fiber.Ctx) error {
	updated, err := h.service.CloseCase(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

func caseSummary(c *domain.Case) dto.CaseSummary {
	return dto.CaseSummary{
		ID:                 c.ID,
		ExternalKey:        c.ExternalKey,
		ResidentID:         c.ResidentID,
		Category:           c.Category,
		Status:             c.Status,
		Priority:           c.Priority,
		TechnicianID:       c.TechnicianID,
		AwaitingTechnician: c.AwaitingTechnician,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		ClosedAt:           c.ClosedAt,
	}
}

func appointmentResponse(appt *domain.Appointment) *dto.AppointmentResponse {
	if appt == nil {
		return nil
	}
	return &dto.AppointmentResponse{
		ID:           appt.ID,
		TechnicianID: appt.TechnicianID,
		Day:          appt.Day.Format("2006-01-02"),
		Block:        appt.BlockID,
		StartsAt:     appt.StartsAt,
		EndsAt:       appt.EndsAt,
		Status:       appt.Status,
	}
}

func caseDetail(detail *service.CaseDetail) dto.CaseDetailResponse {
	resp := dto.CaseDetailResponse{
		CaseSummary: caseSummary(detail.Case),
		Description: detail.Case.Description,
	}
	resp.Appointments = make([]dto.AppointmentResponse, 0, len(detail.Appointments))
	for i := range detail.Appointments {
		resp.Appointments = append(resp.Appointments, *appointmentResponse(&detail.Appointments[i]))
	}
	if detail.FollowUp != nil {
		resp.FollowUp = &dto.FollowUpResponse{
			ID:        detail.FollowUp.ID,
			Attempts:  detail.FollowUp.Attempts,
			NextDueAt: detail.FollowUp.NextDueAt,
			Active:    detail.FollowUp.Active,
			Outcome:   detail.FollowUp.Outcome,
		}
	}
	return resp
}
