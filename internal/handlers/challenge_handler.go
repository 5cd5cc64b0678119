package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

func (h *ChallengeHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	challenges, total, err := h.challengeService.List(middleware.ActorFrom(c), c.Query("status"), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(challenges, total, limit, offset))
}

func (h *ChallengeHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ch, err := h.challengeService.Get(middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ch)
}

func (h *ChallengeHandler) Ideas(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	limit, offset := pageParams(c)
	ideas, total, err := h.challengeService.Ideas(middleware.ActorFrom(c), id, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(ideas, total, limit, offset))
}

func (h *ChallengeHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateChallengeRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}
	ch, err := h.challengeService.Create(middleware.ActorFrom(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

func (h *ChallengeHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.UpdateChallengeRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}
	ch, err := h.challengeService.Update(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ch)
}

func (h *ChallengeHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.ChallengeStatusRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}
	ch, err := h.challengeService.SetStatus(middleware.ActorFrom(c), id, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ch)
}
