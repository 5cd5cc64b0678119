package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EntityUser      = "user"
	EntityRole      = "role"
	EntityIdea      = "idea"
	EntityChallenge = "challenge"
	EntityCategory  = "category"
	EntityAppeal    = "appeal"
)

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    *uuid.UUID
	Action     string
	Limit      int
	Offset     int
}

// AuditService appends audit rows. It exposes no way to change or remove them.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes one audit row. Pass the open transaction as tx so the row
// commits or rolls back with the change it describes; nil uses the service DB.
func (s *AuditService) Record(tx *gorm.DB, actor Actor, action, entityType, entityID string, before, after interface{}) error {
	if tx == nil {
		tx = s.db
	}

	oldValues, err := snapshot(before)
	if err != nil {
		return fmt.Errorf("failed to snapshot old values: %w", err)
	}
	newValues, err := snapshot(after)
	if err != nil {
		return fmt.Errorf("failed to snapshot new values: %w", err)
	}

	entry := models.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  oldValues,
		NewValues:  newValues,
		ActorID:    actor.IDPtr(),
		IPAddress:  actor.IP,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *AuditService) List(f AuditFilter) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64
	limit, offset := page(f.Limit, f.Offset)

	query := s.db.Model(&models.AuditLog{})
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		query = query.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorID != nil {
		query = query.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func snapshot(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
