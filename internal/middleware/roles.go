package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
)

// RequireRoles lets the request through when the current user carries any
// of the given roles. Must run after ActiveAccount.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		for _, r := range roles {
			if user.HasRole(r) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "You do not have permission to access this resource",
		})
	}
}

// AdminRequired admits developers and administrators.
func AdminRequired() fiber.Handler {
	return RequireRoles(models.RoleDeveloper, models.RoleAdministrator)
}
