package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

type GamificationHandler struct {
	gamificationService *services.GamificationService
}

func NewGamificationHandler(gamificationService *services.GamificationService) *GamificationHandler {
	return &GamificationHandler{gamificationService: gamificationService}
}

func (h *GamificationHandler) MyPoints(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	limit, offset := pageParams(c)

	total, err := h.gamificationService.Total(actor.UserID)
	if err != nil {
		return writeError(c, err)
	}
	history, count, err := h.gamificationService.History(actor.UserID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.PointsResponse{
		Total:   total,
		History: pageResponse(history, count, limit, offset),
	})
}

func (h *GamificationHandler) MyAchievements(c *fiber.Ctx) error {
	achievements, err := h.gamificationService.Achievements(middleware.ActorFrom(c).UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(achievements)
}

// Leaderboard takes ?period=all|month|week and ?limit=N (default 10).
func (h *GamificationHandler) Leaderboard(c *fiber.Ctx) error {
	entries, err := h.gamificationService.Leaderboard(c.UserContext(), c.Query("period", "all"), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(entries)
}
