package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/services"
)

type AppealHandler struct {
	appealService *services.AppealService
}

func NewAppealHandler(appealService *services.AppealService) *AppealHandler {
	return &AppealHandler{appealService: appealService}
}

// Send is public: banned and suspended users hold no token.
func (h *AppealHandler) Send(c *fiber.Ctx) error {
	var req dto.AppealRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	appeal, err := h.appealService.Send(c.UserContext(), &req, c.IP())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(appeal)
}

func (h *AppealHandler) Eligibility(c *fiber.Ctx) error {
	email := c.Query("email")
	appealType := c.Query("type")
	if email == "" || (appealType != models.AppealTypeBan && appealType != models.AppealTypeSuspension) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: "email and type (ban or suspension) are required",
		})
	}

	resp, err := h.appealService.Eligibility(email, appealType)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func (h *AppealHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	appeals, total, err := h.appealService.List(c.Query("status"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(appeals, total, limit, offset))
}

func (h *AppealHandler) Decide(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.AppealDecisionRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	appeal, err := h.appealService.Decide(c.UserContext(), middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(appeal)
}
