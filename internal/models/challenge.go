package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChallengeDraft     = "draft"
	ChallengeActive    = "active"
	ChallengeJudging   = "judging"
	ChallengeCompleted = "completed"
	ChallengeCancelled = "cancelled"
)

// Challenge is a themed call for ideas.
type Challenge struct {
	ID               uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text;not null" json:"description"`
	ProblemStatement string     `gorm:"type:text" json:"problem_statement"`
	CategoryID       *uuid.UUID `gorm:"size:36;index" json:"category_id,omitempty"`
	CreatedBy        uuid.UUID  `gorm:"size:36;not null;index" json:"created_by"`
	Status           string     `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Deadline         time.Time  `gorm:"not null" json:"deadline"`
	PrizeDescription string     `gorm:"size:500" json:"prize_description"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
