package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"gorm.io/gorm"
)

var (
	ErrRoleNotFound = errors.New("role not found")
	ErrRoleExists   = errors.New("role already exists")
	ErrSystemRole   = errors.New("system roles cannot be deleted")
	ErrRoleInUse    = errors.New("role is the primary role of at least one user")
)

type RoleService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewRoleService(db *gorm.DB, audit *AuditService) *RoleService {
	return &RoleService{db: db, audit: audit}
}

func (s *RoleService) List() ([]models.Role, error) {
	var roles []models.Role
	err := s.db.Order("name ASC").Find(&roles).Error
	return roles, err
}

func (s *RoleService) Create(actor Actor, req *dto.CreateRoleRequest) (*models.Role, error) {
	role := models.Role{
		ID:          uuid.New(),
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		Description: strings.TrimSpace(req.Description),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Role{}).Where("name = ?", role.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRoleExists
		}
		if err := tx.Create(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRoleExists
			}
			return fmt.Errorf("failed to create role: %w", err)
		}
		return s.audit.Record(tx, actor, "role.created", EntityRole, role.Name, nil, role)
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Delete removes a custom role and unassigns it from everyone. developer,
// administrator and user can never be deleted.
func (s *RoleService) Delete(actor Actor, name string) error {
	if models.SystemRoles[name] {
		return ErrSystemRole
	}
	role, err := findRole(s.db, name)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var primaries int64
		if err := tx.Model(&models.User{}).Where("role = ?", role.Name).Count(&primaries).Error; err != nil {
			return err
		}
		if primaries > 0 {
			return ErrRoleInUse
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", role.ID).Error; err != nil {
			return fmt.Errorf("failed to unassign role: %w", err)
		}
		if err := tx.Delete(role).Error; err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return s.audit.Record(tx, actor, "role.deleted", EntityRole, role.Name, role, nil)
	})
}

func findRole(db *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	if err := db.Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}
