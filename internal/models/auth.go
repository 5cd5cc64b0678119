package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OTPPurposeRegistration = "registration"
	OTPPurposeLogin        = "login"
)

// OTP is a one-time code mailed to the user. Only its hash is stored.
type OTP struct {
	ID        uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	Email     string     `gorm:"size:255;not null;index:idx_otp_email_purpose,priority:1" json:"email"`
	Purpose   string     `gorm:"size:20;not null;index:idx_otp_email_purpose,priority:2" json:"purpose"`
	CodeHash  string     `gorm:"size:64;not null" json:"-"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (o *OTP) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"size:36;not null;index" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}
