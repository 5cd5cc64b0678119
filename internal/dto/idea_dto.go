package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateIdeaRequest struct {
	Title                string     `json:"title" validate:"required,min=5,max=255"`
	Description          string     `json:"description" validate:"required,min=20"`
	CategoryID           uuid.UUID  `json:"category_id" validate:"required"`
	ChallengeID          *uuid.UUID `json:"challenge_id"`
	CollaborationEnabled bool       `json:"collaboration_enabled"`
	BusinessCase         string     `json:"business_case" validate:"max=10000"`
	ExpectedImpact       string     `json:"expected_impact" validate:"max=10000"`
	Timeline             string     `json:"timeline" validate:"max=255"`
	ResourceRequirements string     `json:"resource_requirements" validate:"max=10000"`
}

// UpdateIdeaRequest carries only the fields being changed.
type UpdateIdeaRequest struct {
	Title                *string    `json:"title" validate:"omitempty,min=5,max=255"`
	Description          *string    `json:"description" validate:"omitempty,min=20"`
	CategoryID           *uuid.UUID `json:"category_id"`
	CollaborationEnabled *bool      `json:"collaboration_enabled"`
	BusinessCase         *string    `json:"business_case" validate:"omitempty,max=10000"`
	ExpectedImpact       *string    `json:"expected_impact" validate:"omitempty,max=10000"`
	Timeline             *string    `json:"timeline" validate:"omitempty,max=255"`
	ResourceRequirements *string    `json:"resource_requirements" validate:"omitempty,max=10000"`
}

type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Comments string `json:"comments" validate:"max=5000"`
	Score    int    `json:"score" validate:"min=0,max=10"`
}

type ArchiveRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type AdvanceRequest struct {
	Stage  string `json:"stage" validate:"required"`
	Reason string `json:"reason" validate:"max=1000"`
}

type CollaborationRequest struct {
	Content string `json:"content" validate:"required,min=2,max=5000"`
}

type IdeaFilter struct {
	Stage       string
	AuthorID    *uuid.UUID
	CategoryID  *uuid.UUID
	ChallengeID *uuid.UUID
	Limit       int
	Offset      int
}

type CreateChallengeRequest struct {
	Title            string     `json:"title" validate:"required,min=5,max=255"`
	Description      string     `json:"description" validate:"required,min=20"`
	ProblemStatement string     `json:"problem_statement" validate:"max=10000"`
	CategoryID       *uuid.UUID `json:"category_id"`
	Deadline         time.Time  `json:"deadline" validate:"required"`
	PrizeDescription string     `json:"prize_description" validate:"max=500"`
}

type UpdateChallengeRequest struct {
	Title            *string    `json:"title" validate:"omitempty,min=5,max=255"`
	Description      *string    `json:"description" validate:"omitempty,min=20"`
	ProblemStatement *string    `json:"problem_statement" validate:"omitempty,max=10000"`
	Deadline         *time.Time `json:"deadline"`
	PrizeDescription *string    `json:"prize_description" validate:"omitempty,max=500"`
}

type ChallengeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active judging completed cancelled"`
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}
