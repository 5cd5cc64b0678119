package services

import (
	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/workflow"
)

// Actor is whoever is performing an operation, as seen by the services.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
	IP     string
}

// ActorFromUser builds an Actor from a loaded account.
func ActorFromUser(u *models.User, ip string) Actor {
	return Actor{UserID: u.ID, Roles: u.RoleNames(), IP: ip}
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	for _, r := range a.Roles {
		if workflow.IsAdminRole(r) {
			return true
		}
	}
	return false
}

// IDPtr returns nil for the zero actor so audit rows store NULL.
func (a Actor) IDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
