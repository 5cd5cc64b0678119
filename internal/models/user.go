package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
	AccountBanned    = "banned"
)

// User is a portal account. Role is the primary role that drives dashboard
// routing; Roles holds every role the user carries, primary included.
type User struct {
	ID              uuid.UUID      `gorm:"size:36;primaryKey" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Email           string         `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password        string         `gorm:"size:255;not null" json:"-"`
	Role            string         `gorm:"size:50;not null;default:'user';index" json:"role"`
	Roles           []Role         `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	AccountStatus   string         `gorm:"size:20;not null;default:'active';index" json:"account_status"`
	StatusReason    string         `gorm:"size:500" json:"status_reason,omitempty"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	LastLoginAt     *time.Time     `json:"last_login_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RoleNames returns every role name the user carries. The primary role is
// always first.
func (u *User) RoleNames() []string {
	names := []string{u.Role}
	for _, r := range u.Roles {
		if r.Name != u.Role {
			names = append(names, r.Name)
		}
	}
	return names
}

func (u *User) HasRole(name string) bool {
	for _, r := range u.RoleNames() {
		if r == name {
			return true
		}
	}
	return false
}
