package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records one state-changing action with before/after snapshots.
// Rows are never updated or deleted.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"size:36;primaryKey" json:"id"`
	Action     string         `gorm:"size:100;not null;index" json:"action"`
	EntityType string         `gorm:"size:50;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   string         `gorm:"size:36;index:idx_audit_entity,priority:2" json:"entity_id"`
	OldValues  datatypes.JSON `json:"old_values"`
	NewValues  datatypes.JSON `json:"new_values"`
	ActorID    *uuid.UUID     `gorm:"size:36;index" json:"actor_id"`
	IPAddress  string         `gorm:"size:45" json:"ip_address"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error { return ErrAppendOnly }
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error { return ErrAppendOnly }
