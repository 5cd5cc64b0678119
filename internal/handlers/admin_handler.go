package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

// AdminHandler serves user, role and audit administration.
type AdminHandler struct {
	userService  *services.UserService
	roleService  *services.RoleService
	auditService *services.AuditService
}

func NewAdminHandler(userService *services.UserService, roleService *services.RoleService, auditService *services.AuditService) *AdminHandler {
	return &AdminHandler{userService: userService, roleService: roleService, auditService: auditService}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	users, total, err := h.userService.List(services.UserFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Role:   c.Query("role"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return writeError(c, err)
	}

	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = services.ToUserResponse(&users[i])
	}
	return c.JSON(pageResponse(out, total, limit, offset))
}

func (h *AdminHandler) SetUserStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.UserStatusRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := h.userService.SetStatus(middleware.ActorFrom(c), id, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}

func (h *AdminHandler) AssignRole(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.AssignRoleRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := h.userService.AssignRole(middleware.ActorFrom(c), id, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}

func (h *AdminHandler) RemoveRole(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	user, err := h.userService.RemoveRole(middleware.ActorFrom(c), id, c.Params("role"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}

func (h *AdminHandler) SetPrimaryRole(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dto.AssignRoleRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := h.userService.SetPrimaryRole(middleware.ActorFrom(c), id, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(services.ToUserResponse(user))
}

func (h *AdminHandler) ListRoles(c *fiber.Ctx) error {
	roles, err := h.roleService.List()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(roles)
}

func (h *AdminHandler) CreateRole(c *fiber.Ctx) error {
	var req dto.CreateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	role, err := h.roleService.Create(middleware.ActorFrom(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(role)
}

func (h *AdminHandler) DeleteRole(c *fiber.Ctx) error {
	if err := h.roleService.Delete(middleware.ActorFrom(c), c.Params("name")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Role deleted"})
}

func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	actorID, err := queryUUID(c, "actor_id")
	if err != nil {
		return writeError(c, err)
	}

	logs, total, err := h.auditService.List(services.AuditFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		ActorID:    actorID,
		Action:     c.Query("action"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(pageResponse(logs, total, limit, offset))
}
