package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Idea is an innovation proposal moving through the review pipeline.
type Idea struct {
	ID                   uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	Title                string     `gorm:"size:255;not null" json:"title"`
	Description          string     `gorm:"type:text;not null" json:"description"`
	CategoryID           uuid.UUID  `gorm:"size:36;not null;index" json:"category_id"`
	ChallengeID          *uuid.UUID `gorm:"size:36;index" json:"challenge_id,omitempty"`
	AuthorID             uuid.UUID  `gorm:"size:36;not null;index" json:"author_id"`
	CurrentStage         string     `gorm:"size:30;not null;default:'draft';index" json:"current_stage"`
	CollaborationEnabled bool       `gorm:"default:false" json:"collaboration_enabled"`
	BusinessCase         string     `gorm:"type:text" json:"business_case"`
	ExpectedImpact       string     `gorm:"type:text" json:"expected_impact"`
	Timeline             string     `gorm:"size:255" json:"timeline"`
	ResourceRequirements string     `gorm:"type:text" json:"resource_requirements"`
	SubmittedAt          *time.Time `json:"submitted_at"`
	StageEnteredAt       time.Time  `json:"stage_entered_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Reviews  []Review  `gorm:"foreignKey:IdeaID" json:"reviews,omitempty"`
}

func (i *Idea) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type Category struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Review is one reviewer's decision on an idea at one stage.
type Review struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	IdeaID     uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_reviews_idea_reviewer_stage,priority:1" json:"idea_id"`
	ReviewerID uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_reviews_idea_reviewer_stage,priority:2;index" json:"reviewer_id"`
	Stage      string    `gorm:"size:30;not null;uniqueIndex:idx_reviews_idea_reviewer_stage,priority:3" json:"stage"`
	Decision   string    `gorm:"size:20;not null" json:"decision"`
	Comments   string    `gorm:"type:text" json:"comments"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type Collaboration struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	IdeaID    uuid.UUID `gorm:"size:36;not null;index" json:"idea_id"`
	UserID    uuid.UUID `gorm:"size:36;not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Collaboration) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type IdeaAttachment struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	IdeaID      uuid.UUID `gorm:"size:36;not null;index" json:"idea_id"`
	UploaderID  uuid.UUID `gorm:"size:36;not null" json:"uploader_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	ObjectKey   string    `gorm:"size:255;not null" json:"-"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a *IdeaAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
