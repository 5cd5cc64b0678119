package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleDeveloper         = "developer"
	RoleAdministrator     = "administrator"
	RoleBoardMember       = "board_member"
	RoleManager           = "manager"
	RoleSME               = "sme"
	RoleChallengeReviewer = "challenge_reviewer"
	RoleUser              = "user"
)

// BuiltinRoles are seeded on startup.
var BuiltinRoles = []string{
	RoleDeveloper,
	RoleAdministrator,
	RoleBoardMember,
	RoleManager,
	RoleSME,
	RoleChallengeReviewer,
	RoleUser,
}

// SystemRoles can never be deleted.
var SystemRoles = map[string]bool{
	RoleDeveloper:     true,
	RoleAdministrator: true,
	RoleUser:          true,
}

var RoleDescriptions = map[string]string{
	RoleDeveloper:         "Platform developer with full access",
	RoleAdministrator:     "Portal administrator",
	RoleBoardMember:       "Innovation board member",
	RoleManager:           "Department manager and first-line reviewer",
	RoleSME:               "Subject matter expert reviewer",
	RoleChallengeReviewer: "Reviews challenge submissions",
	RoleUser:              "Staff member",
}

var roleDashboards = map[string]string{
	RoleDeveloper:         "admin",
	RoleAdministrator:     "admin",
	RoleBoardMember:       "board",
	RoleManager:           "manager",
	RoleSME:               "sme",
	RoleChallengeReviewer: "challenge_review",
	RoleUser:              "user",
}

// DashboardFor names the dashboard a primary role lands on. Custom roles use
// the staff dashboard.
func DashboardFor(role string) string {
	if d, ok := roleDashboards[role]; ok {
		return d
	}
	return "user"
}

type Role struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Name        string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r Role) IsSystem() bool {
	return SystemRoles[r.Name]
}
