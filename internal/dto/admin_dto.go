package dto

import "time"

type UserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended banned"`
	Reason string `json:"reason" validate:"max=500"`
}

type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,max=50"`
}

type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=50,alphanum_underscore"`
	Description string `json:"description" validate:"max=255"`
}

type AppealRequest struct {
	Email      string `json:"email" validate:"required,email"`
	AppealType string `json:"appeal_type" validate:"required,oneof=ban suspension"`
	Message    string `json:"message" validate:"required,min=20,max=5000"`
}

type AppealDecisionRequest struct {
	Status   string `json:"status" validate:"required,oneof=approved rejected"`
	Response string `json:"response" validate:"max=5000"`
}

type AppealEligibilityResponse struct {
	CanSend     bool       `json:"can_send"`
	NextAllowed *time.Time `json:"next_allowed_at,omitempty"`
}

type PointsResponse struct {
	Total   int64       `json:"total"`
	History interface{} `json:"history"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

type PageResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
