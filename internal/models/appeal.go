package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AppealTypeBan        = "ban"
	AppealTypeSuspension = "suspension"

	AppealPending  = "pending"
	AppealApproved = "approved"
	AppealRejected = "rejected"
)

// AppealMessage is a request to lift a ban or suspension.
type AppealMessage struct {
	ID            uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"size:36;not null;index:idx_appeal_user_type,priority:1" json:"user_id"`
	AppealType    string     `gorm:"size:20;not null;index:idx_appeal_user_type,priority:2" json:"appeal_type"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	Status        string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AdminResponse string     `gorm:"type:text" json:"admin_response,omitempty"`
	ReviewedBy    *uuid.UUID `gorm:"size:36" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	LastSentAt    time.Time  `gorm:"not null;index" json:"last_sent_at"`
	// WindowKey is user:type:cooldown slot; it backs the cooldown under races.
	WindowKey     *string    `gorm:"size:96;uniqueIndex" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (a *AppealMessage) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
