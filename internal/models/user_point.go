package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAppendOnly is returned when code tries to change a ledger or audit row.
var ErrAppendOnly = errors.New("append-only record cannot be modified")

// UserPoint is one row of the gamification ledger. A user's total is the sum
// of their rows.
type UserPoint struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"size:36;not null;index" json:"user_id"`
	Action      string    `gorm:"size:50;not null;index" json:"action"`
	Category    string    `gorm:"size:50;not null;index" json:"category"`
	Points      int       `gorm:"not null" json:"points"`
	Description string    `gorm:"size:255" json:"description"`
	DedupKey    string    `gorm:"size:191;not null;uniqueIndex" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (p *UserPoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *UserPoint) BeforeUpdate(tx *gorm.DB) error { return ErrAppendOnly }
func (p *UserPoint) BeforeDelete(tx *gorm.DB) error { return ErrAppendOnly }

type UserAchievement struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	Code       string    `gorm:"size:50;not null;uniqueIndex:idx_user_achievement,priority:2" json:"code"`
	Name       string    `gorm:"size:100" json:"name"`
	Category   string    `gorm:"size:50" json:"category"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

func (a *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
