package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

type IdeaHandler struct {
	ideaService *services.IdeaService
}

func NewIdeaHandler(ideaService *services.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideaService: ideaService}
}

func (h *IdeaHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	f := dto.IdeaFilter{Stage: c.Query("stage"), Limit: limit, Offset: offset}

	var err error
	if f.AuthorID, err = queryUUID(c, "author_id"); err != nil {
		return writeError(c, err)
	}
	if f.CategoryID, err = queryUUID(c, "category_id"); err != nil {
		return writeError(c, err)
	}
	if f.ChallengeID, err = queryUUID(c, "challenge_id"); err != nil {
		return writeError(c, err)
	}

	ideas, total, err := h.ideaService.List(middleware.ActorFrom(c), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(ideas, total, limit, offset))
}

func (h *IdeaHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateIdeaRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	idea, err := h.ideaService.Create(middleware.ActorFrom(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(idea)
}

func (h *IdeaHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	idea, err := h.ideaService.Get(middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(idea)
}

func (h *IdeaHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.UpdateIdeaRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	idea, err := h.ideaService.Update(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(idea)
}

func (h *IdeaHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	if err := h.ideaService.Delete(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Idea deleted"})
}

func (h *IdeaHandler) Submit(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	idea, err := h.ideaService.Submit(middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(idea)
}

func (h *IdeaHandler) Review(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	review, idea, err := h.ideaService.Review(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"review": review, "idea": idea})
}

func (h *IdeaHandler) Archive(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.ArchiveRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return writeError(c, err)
		}
	}

	idea, err := h.ideaService.Archive(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(idea)
}

// Advance is the admin override that moves an idea to a later stage.
func (h *IdeaHandler) Advance(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.AdvanceRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	idea, err := h.ideaService.Advance(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(idea)
}

func (h *IdeaHandler) ReviewQueue(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	ideas, total, err := h.ideaService.ReviewQueue(middleware.ActorFrom(c), limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(ideas, total, limit, offset))
}

func (h *IdeaHandler) AddCollaboration(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.CollaborationRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	collab, err := h.ideaService.AddCollaboration(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(collab)
}

func (h *IdeaHandler) ListCollaborations(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	collabs, err := h.ideaService.ListCollaborations(middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(collabs)
}

// UploadAttachment takes a multipart "file" field.
func (h *IdeaHandler) UploadAttachment(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "A file field is required",
		})
	}
	if fh.Size > services.MaxAttachmentSize {
		return writeError(c, services.ErrAttachmentTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return writeError(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer f.Close()

	att, err := h.ideaService.AddAttachment(c.UserContext(), middleware.ActorFrom(c), id,
		fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}

func (h *IdeaHandler) ListAttachments(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	atts, err := h.ideaService.ListAttachments(middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(atts)
}

func (h *IdeaHandler) DownloadAttachment(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	attID, err := paramUUID(c, "attachment_id")
	if err != nil {
		return writeError(c, err)
	}

	att, rc, err := h.ideaService.OpenAttachment(c.UserContext(), middleware.ActorFrom(c), id, attID)
	if err != nil {
		return writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, att.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", att.Filename))
	// fasthttp closes rc once the body is written.
	return c.SendStream(rc, int(att.Size))
}
