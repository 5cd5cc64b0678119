package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.authService.Register(c.UserContext(), &req, c.IP())
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.authService.VerifyOTP(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req dto.ResendOTPRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.authService.ResendOTP(c.UserContext(), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	resp, err := h.authService.Refresh(&req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	if err := h.authService.Logout(&req); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// Me returns the caller's profile and the dashboard their primary role
// lands on.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	return c.JSON(services.ToUserResponse(user))
}
