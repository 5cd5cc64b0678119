package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/metrics"
	"github.com/kenha/kenhavate/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAppealCooldown   = errors.New("an appeal of this type was sent recently, please wait before sending another")
	ErrAppealNotAllowed = errors.New("no account with this email can send this type of appeal")
	ErrAppealNotFound   = errors.New("appeal not found")
	ErrAppealDecided    = errors.New("appeal has already been decided")
)

// appealStatus is the account status each appeal type contests.
var appealStatus = map[string]string{
	models.AppealTypeBan:        models.AccountBanned,
	models.AppealTypeSuspension: models.AccountSuspended,
}

type AppealService struct {
	db       *gorm.DB
	audit    *AuditService
	content  *ContentService
	mailer   Mailer
	cooldown time.Duration
	now      func() time.Time
}

func NewAppealService(db *gorm.DB, audit *AuditService, content *ContentService, mailer Mailer, cooldown time.Duration) *AppealService {
	return &AppealService{db: db, audit: audit, content: content, mailer: mailer, cooldown: cooldown, now: time.Now}
}

// windowKey buckets sends into cooldown-wide slots. Two sends a full
// cooldown apart never share a slot.
func (s *AppealService) windowKey(userID uuid.UUID, appealType string, at time.Time) *string {
	if s.cooldown <= 0 {
		return nil
	}
	key := fmt.Sprintf("%s:%s:%d", userID, appealType, at.Truncate(s.cooldown).Unix())
	return &key
}

// CanSendAppeal reports whether the user may send an appeal of this type
// now. An earlier appeal of the same type inside the cooldown blocks it.
func (s *AppealService) CanSendAppeal(userID uuid.UUID, appealType string) (bool, error) {
	next, err := s.nextAllowed(s.db, userID, appealType)
	if err != nil {
		return false, err
	}
	return next == nil, nil
}

// nextAllowed returns when the cooldown ends, or nil if it is not running.
func (s *AppealService) nextAllowed(db *gorm.DB, userID uuid.UUID, appealType string) (*time.Time, error) {
	var last models.AppealMessage
	err := db.Where("user_id = ? AND appeal_type = ?", userID, appealType).
		Order("last_sent_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last appeal: %w", err)
	}
	next := last.LastSentAt.Add(s.cooldown)
	if s.now().Before(next) {
		return &next, nil
	}
	return nil, nil
}

// Eligibility is the public pre-check behind the appeal form. Unknown
// emails and accounts the appeal type does not apply to get the same
// answer.
func (s *AppealService) Eligibility(email, appealType string) (*dto.AppealEligibilityResponse, error) {
	user, err := s.userByEmail(email)
	if errors.Is(err, ErrUserNotFound) {
		return &dto.AppealEligibilityResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	if user.AccountStatus != appealStatus[appealType] {
		return &dto.AppealEligibilityResponse{}, nil
	}
	next, err := s.nextAllowed(s.db, user.ID, appealType)
	if err != nil {
		return nil, err
	}
	return &dto.AppealEligibilityResponse{CanSend: next == nil, NextAllowed: next}, nil
}

// Send records an appeal from a banned or suspended user.
func (s *AppealService) Send(ctx context.Context, req *dto.AppealRequest, ip string) (*models.AppealMessage, error) {
	user, err := s.userByEmail(req.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	want, ok := appealStatus[req.AppealType]
	if user == nil || !ok || user.AccountStatus != want {
		metrics.AppealsTotal.WithLabelValues(req.AppealType, "not_allowed").Inc()
		return nil, ErrAppealNotAllowed
	}
	message := s.content.PlainText(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: appeal message has no readable text", ErrInappropriateContent)
	}

	now := s.now()
	appeal := models.AppealMessage{
		ID:         uuid.New(),
		UserID:     user.ID,
		AppealType: req.AppealType,
		Message:    message,
		Status:     models.AppealPending,
		LastSentAt: now,
		WindowKey:  s.windowKey(user.ID, req.AppealType, now),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		next, err := s.nextAllowed(tx, user.ID, req.AppealType)
		if err != nil {
			return err
		}
		if next != nil {
			return ErrAppealCooldown
		}
		if err := tx.Create(&appeal).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAppealCooldown
			}
			return fmt.Errorf("failed to save appeal: %w", err)
		}
		return s.audit.Record(tx, Actor{UserID: user.ID, IP: ip}, "appeal.sent", EntityAppeal, appeal.ID.String(), nil, appeal)
	})
	if err != nil {
		if errors.Is(err, ErrAppealCooldown) {
			metrics.AppealsTotal.WithLabelValues(req.AppealType, "cooldown").Inc()
		}
		return nil, err
	}
	metrics.AppealsTotal.WithLabelValues(req.AppealType, "accepted").Inc()

	body := fmt.Sprintf("Hello %s,\n\nWe received your %s appeal and an administrator will review it.", user.Name, req.AppealType)
	if err := s.mailer.Send(ctx, user.Email, "Your KeNHAVATE appeal was received", body); err != nil {
		slog.Warn("failed to send appeal receipt", "appeal_id", appeal.ID.String(), "error", err)
	}
	return &appeal, nil
}

func (s *AppealService) List(status string, limit, offset int) ([]models.AppealMessage, int64, error) {
	var out []models.AppealMessage
	var total int64
	limit, offset = page(limit, offset)

	query := s.db.Model(&models.AppealMessage{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("User").Order("last_sent_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Decide approves or rejects a pending appeal. Approval reactivates the
// account.
func (s *AppealService) Decide(ctx context.Context, actor Actor, id uuid.UUID, req *dto.AppealDecisionRequest) (*models.AppealMessage, error) {
	var appeal models.AppealMessage
	if err := s.db.Preload("User").First(&appeal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		return nil, err
	}
	if appeal.Status != models.AppealPending {
		return nil, ErrAppealDecided
	}
	before := appeal
	before.User = nil

	now := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AppealMessage{}).
			Where("id = ? AND status = ?", appeal.ID, models.AppealPending).
			Updates(map[string]interface{}{
				"status":         req.Status,
				"admin_response": req.Response,
				"reviewed_by":    actor.UserID,
				"reviewed_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to decide appeal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAppealDecided
		}
		appeal.Status = req.Status
		appeal.AdminResponse = req.Response
		appeal.ReviewedBy = actor.IDPtr()
		appeal.ReviewedAt = &now

		after := appeal
		after.User = nil
		if err := s.audit.Record(tx, actor, "appeal.decided", EntityAppeal, appeal.ID.String(), before, after); err != nil {
			return err
		}

		if req.Status != models.AppealApproved || appeal.User == nil {
			return nil
		}
		prev := map[string]string{"account_status": appeal.User.AccountStatus, "status_reason": appeal.User.StatusReason}
		if err := tx.Model(&models.User{}).Where("id = ?", appeal.UserID).Updates(map[string]interface{}{
			"account_status": models.AccountActive,
			"status_reason":  "",
		}).Error; err != nil {
			return fmt.Errorf("failed to reactivate user: %w", err)
		}
		appeal.User.AccountStatus = models.AccountActive
		appeal.User.StatusReason = ""
		return s.audit.Record(tx, actor, "user.status_changed", EntityUser, appeal.UserID.String(), prev,
			map[string]string{"account_status": models.AccountActive, "via_appeal": appeal.ID.String()})
	})
	if err != nil {
		return nil, err
	}

	if appeal.User != nil {
		body := fmt.Sprintf("Hello %s,\n\nYour %s appeal was %s.", appeal.User.Name, appeal.AppealType, req.Status)
		if req.Response != "" {
			body += "\n\n" + req.Response
		}
		if err := s.mailer.Send(ctx, appeal.User.Email, "Your KeNHAVATE appeal was reviewed", body); err != nil {
			slog.Warn("failed to send appeal decision", "appeal_id", appeal.ID.String(), "error", err)
		}
	}
	return &appeal, nil
}

func (s *AppealService) userByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
