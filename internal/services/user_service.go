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
	ErrPrimaryRole  = errors.New("the primary role cannot be removed, set another primary role first")
	ErrSelfDemotion = errors.New("you cannot change your own account status")
)

// UserFilter narrows the admin user list.
type UserFilter struct {
	Search string
	Status string
	Role   string
	Limit  int
	Offset int
}

type UserService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewUserService(db *gorm.DB, audit *AuditService) *UserService {
	return &UserService{db: db, audit: audit}
}

func (s *UserService) List(f UserFilter) ([]models.User, int64, error) {
	var users []models.User
	var total int64
	limit, offset := page(f.Limit, f.Offset)

	query := s.db.Model(&models.User{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.Status != "" {
		query = query.Where("account_status = ?", f.Status)
	}
	if f.Role != "" {
		query = query.Where("role = ? OR id IN (?)", f.Role,
			s.db.Table("user_roles").Select("user_roles.user_id").
				Joins("JOIN roles ON roles.id = user_roles.role_id").
				Where("roles.name = ?", f.Role))
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Roles").Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// SetStatus bans, suspends or reactivates an account. Leaving the active
// state revokes every refresh token the user holds.
func (s *UserService) SetStatus(actor Actor, id uuid.UUID, req *dto.UserStatusRequest) (*models.User, error) {
	if id == actor.UserID {
		return nil, ErrSelfDemotion
	}
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if user.HasRole(models.RoleDeveloper) && !actor.HasRole(models.RoleDeveloper) {
		return nil, ErrForbidden
	}
	before := ToUserResponse(user)

	reason := strings.TrimSpace(req.Reason)
	if req.Status == models.AccountActive {
		reason = ""
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(map[string]interface{}{
			"account_status": req.Status,
			"status_reason":  reason,
		}).Error; err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if req.Status != models.AccountActive {
			if err := tx.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Update("revoked", true).Error; err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
		}
		user.AccountStatus = req.Status
		user.StatusReason = reason
		return s.audit.Record(tx, actor, "user.status_changed", EntityUser, user.ID.String(), before,
			map[string]interface{}{"user": ToUserResponse(user), "reason": reason})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) AssignRole(actor Actor, id uuid.UUID, roleName string) (*models.User, error) {
	user, role, err := s.loadWithRole(actor, id, roleName)
	if err != nil {
		return nil, err
	}
	if user.HasRole(role.Name) {
		return user, nil
	}
	before := ToUserResponse(user)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Association("Roles").Append(role); err != nil {
			return fmt.Errorf("failed to assign role: %w", err)
		}
		return s.audit.Record(tx, actor, "user.role_assigned", EntityUser, user.ID.String(), before, ToUserResponse(user))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) RemoveRole(actor Actor, id uuid.UUID, roleName string) (*models.User, error) {
	user, role, err := s.loadWithRole(actor, id, roleName)
	if err != nil {
		return nil, err
	}
	if user.Role == role.Name {
		return nil, ErrPrimaryRole
	}
	before := ToUserResponse(user)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Association("Roles").Delete(role); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}
		return s.audit.Record(tx, actor, "user.role_removed", EntityUser, user.ID.String(), before, ToUserResponse(user))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetPrimaryRole changes the role that drives dashboard routing, assigning
// it first if the user does not carry it yet.
func (s *UserService) SetPrimaryRole(actor Actor, id uuid.UUID, roleName string) (*models.User, error) {
	user, role, err := s.loadWithRole(actor, id, roleName)
	if err != nil {
		return nil, err
	}
	before := ToUserResponse(user)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if !user.HasRole(role.Name) {
			if err := tx.Model(user).Association("Roles").Append(role); err != nil {
				return fmt.Errorf("failed to assign role: %w", err)
			}
		}
		if err := tx.Model(user).Update("role", role.Name).Error; err != nil {
			return fmt.Errorf("failed to set primary role: %w", err)
		}
		user.Role = role.Name
		return s.audit.Record(tx, actor, "user.primary_role_changed", EntityUser, user.ID.String(), before, ToUserResponse(user))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// loadWithRole loads both sides of a role change. Only developers may hand
// out or take away the developer role.
func (s *UserService) loadWithRole(actor Actor, id uuid.UUID, roleName string) (*models.User, *models.Role, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, nil, err
	}
	role, err := findRole(s.db, roleName)
	if err != nil {
		return nil, nil, err
	}
	if role.Name == models.RoleDeveloper && !actor.HasRole(models.RoleDeveloper) {
		return nil, nil, ErrForbidden
	}
	return user, role, nil
}

func (s *UserService) load(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Roles").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
