package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/services"
)

const currentUserKey = "current_user"

// GetUserID reads the sub claim of the verified token.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// CurrentUser is the account loaded by ActiveAccount, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(currentUserKey).(*models.User)
	return u
}

// SetCurrentUser is used by tests to stand in for ActiveAccount.
func SetCurrentUser(c *fiber.Ctx, u *models.User) {
	c.Locals(currentUserKey, u)
}

// ActorFrom describes the caller to the service layer. Anonymous callers
// get an actor carrying only their IP.
func ActorFrom(c *fiber.Ctx) services.Actor {
	if u := CurrentUser(c); u != nil {
		return services.ActorFromUser(u, c.IP())
	}
	return services.Actor{IP: c.IP()}
}
