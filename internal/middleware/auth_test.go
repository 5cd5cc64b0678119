package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/database"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "middleware-test-secret"

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedRoles(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{JWTSecret: testSecret}
	auth := services.NewAuthService(db, cfg, services.NewLogMailer("noreply@kenha.co.ke"), nil, services.NewAuditService(db))

	app := fiber.New()
	app.Get("/me", JWTProtected(cfg), ActiveAccount(auth), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).Email)
	})
	app.Get("/admin", JWTProtected(cfg), ActiveAccount(auth), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/review", JWTProtected(cfg), ActiveAccount(auth), RequireRoles(models.RoleManager, models.RoleSME), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, db
}

func createUser(t *testing.T, db *gorm.DB, email, status string, roles ...string) *models.User {
	t.Helper()
	var rows []models.Role
	require.NoError(t, db.Where("name IN ?", roles).Find(&rows).Error)
	u := &models.User{
		ID:            uuid.New(),
		Name:          email,
		Email:         email,
		Password:      "x",
		Role:          roles[0],
		Roles:         rows,
		AccountStatus: status,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func tokenFor(t *testing.T, id uuid.UUID, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestActiveAccount(t *testing.T) {
	app, db := setupApp(t)
	active := createUser(t, db, "amina@kenha.co.ke", models.AccountActive, models.RoleUser)
	banned := createUser(t, db, "brian@kenha.co.ke", models.AccountBanned, models.RoleUser)

	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/me", tokenFor(t, active.ID, "wrong-secret")))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, "/me", tokenFor(t, uuid.New(), testSecret)))
	assert.Equal(t, fiber.StatusOK, get(t, app, "/me", tokenFor(t, active.ID, testSecret)))
	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/me", tokenFor(t, banned.ID, testSecret)))
}

func TestRoleGuards(t *testing.T) {
	app, db := setupApp(t)
	staff := createUser(t, db, "amina@kenha.co.ke", models.AccountActive, models.RoleUser)
	sme := createUser(t, db, "wanjiru@kenha.co.ke", models.AccountActive, models.RoleUser, models.RoleSME)
	admin := createUser(t, db, "chief@kenha.co.ke", models.AccountActive, models.RoleAdministrator)

	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/admin", tokenFor(t, staff.ID, testSecret)))
	assert.Equal(t, fiber.StatusNoContent, get(t, app, "/admin", tokenFor(t, admin.ID, testSecret)))

	assert.Equal(t, fiber.StatusForbidden, get(t, app, "/review", tokenFor(t, staff.ID, testSecret)))
	assert.Equal(t, fiber.StatusNoContent, get(t, app, "/review", tokenFor(t, sme.ID, testSecret)))
}
