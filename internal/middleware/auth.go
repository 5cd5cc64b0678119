package middleware

import (
	"errors"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/services"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// ActiveAccount reloads the token's user on every request and refuses
// accounts that have been banned or suspended since the token was issued.
// Must run after JWTProtected.
func ActiveAccount(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		user, err := authService.LoadActiveUser(userID)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		case errors.Is(err, services.ErrAccountBanned), errors.Is(err, services.ErrAccountSuspended):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error() + ". You can appeal at POST /api/appeals.",
			})
		default:
			return err
		}

		c.Locals(currentUserKey, user)
		return c.Next()
	}
}
