package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.categoryService.ListActive()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cats)
}

func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var req dto.CategoryRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}
	cat, err := h.categoryService.Create(middleware.ActorFrom(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.CategoryRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}
	cat, err := h.categoryService.Update(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cat)
}
