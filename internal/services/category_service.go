package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInactive = errors.New("category not found or inactive")
	ErrCategoryExists   = errors.New("a category with this name already exists")
)

type CategoryService struct {
	db      *gorm.DB
	audit   *AuditService
	content *ContentService
}

func NewCategoryService(db *gorm.DB, audit *AuditService, content *ContentService) *CategoryService {
	return &CategoryService{db: db, audit: audit, content: content}
}

// ListActive returns the categories ideas can be filed under.
func (s *CategoryService) ListActive() ([]models.Category, error) {
	var out []models.Category
	err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&out).Error
	return out, err
}

func (s *CategoryService) Create(actor Actor, req *dto.CategoryRequest) (*models.Category, error) {
	cat := models.Category{
		ID:          uuid.New(),
		Name:        s.content.PlainText(req.Name),
		Description: s.content.PlainText(req.Description),
		IsActive:    true,
	}
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCategoryExists
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
		// GORM skips zero-valued fields with a default tag on create.
		if !cat.IsActive {
			if err := tx.Model(&cat).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return s.audit.Record(tx, actor, "category.created", EntityCategory, cat.ID.String(), nil, cat)
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// Update renames, redescribes or (de)activates a category.
func (s *CategoryService) Update(actor Actor, id uuid.UUID, req *dto.CategoryRequest) (*models.Category, error) {
	var cat models.Category
	if err := s.db.First(&cat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	before := cat

	cat.Name = s.content.PlainText(req.Name)
	cat.Description = s.content.PlainText(req.Description)
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&cat).Updates(map[string]interface{}{
			"name":        cat.Name,
			"description": cat.Description,
			"is_active":   cat.IsActive,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrCategoryExists
			}
			return fmt.Errorf("failed to update category: %w", err)
		}
		return s.audit.Record(tx, actor, "category.updated", EntityCategory, cat.ID.String(), before, cat)
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func activeCategory(db *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Category{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCategoryInactive
	}
	return nil
}
