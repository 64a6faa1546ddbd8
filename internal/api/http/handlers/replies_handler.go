package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/condo-scheduler/internal/api/dto"
	"github.com/spec-kit/condo-scheduler/internal/service"
	apperrors "github.com/spec-kit/condo-scheduler/pkg/util"
)

// RepliesHandler receives inbound chat replies from the bridge.
type RepliesHandler struct {
	service *service.CaseService
}

// NewRepliesHandler constructs handler.
func NewRepliesHandler(caseService *service.CaseService) *RepliesHandler {
	return &RepliesHandler{service: caseService}
}

// HandleReply POST /webhooks/replies.
func (h *RepliesHandler) HandleReply(c *fiber.Ctx) error {
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.CaseKey) == "" || strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("case_key and text required", nil)
	}

	class, err := h.service.HandleReply(c.Context(), req.CaseKey, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReplyResponse{
		CaseKey:        req.CaseKey,
		Classification: string(class),
	}})
}
