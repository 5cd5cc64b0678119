package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrChallengeClosed     = errors.New("challenge is not accepting ideas")
	ErrChallengeTransition = errors.New("invalid challenge status change")
	ErrDeadlinePassed      = errors.New("deadline must be in the future")
)

// challengeMoves lists the statuses each status may move to.
var challengeMoves = map[string][]string{
	models.ChallengeDraft:   {models.ChallengeActive, models.ChallengeCancelled},
	models.ChallengeActive:  {models.ChallengeJudging, models.ChallengeCancelled},
	models.ChallengeJudging: {models.ChallengeCompleted},
}

func canMoveChallenge(from, to string) bool {
	for _, s := range challengeMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ChallengeService struct {
	db      *gorm.DB
	audit   *AuditService
	content *ContentService
	now     func() time.Time
}

func NewChallengeService(db *gorm.DB, audit *AuditService, content *ContentService) *ChallengeService {
	return &ChallengeService{db: db, audit: audit, content: content, now: time.Now}
}

func canManageChallenges(actor Actor) bool {
	return actor.IsAdmin() || actor.HasRole(models.RoleManager)
}

func (s *ChallengeService) Create(actor Actor, req *dto.CreateChallengeRequest) (*models.Challenge, error) {
	if !canManageChallenges(actor) {
		return nil, ErrForbidden
	}
	if !req.Deadline.After(s.now()) {
		return nil, ErrDeadlinePassed
	}
	if err := s.content.Screen(req.Title + " " + req.Description); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		if err := activeCategory(s.db, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	ch := models.Challenge{
		ID:               uuid.New(),
		Title:            s.content.PlainText(req.Title),
		Description:      s.content.RichText(req.Description),
		ProblemStatement: s.content.RichText(req.ProblemStatement),
		CategoryID:       req.CategoryID,
		CreatedBy:        actor.UserID,
		Status:           models.ChallengeDraft,
		Deadline:         req.Deadline,
		PrizeDescription: s.content.PlainText(req.PrizeDescription),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ch).Error; err != nil {
			return fmt.Errorf("failed to create challenge: %w", err)
		}
		return s.audit.Record(tx, actor, "challenge.created", EntityChallenge, ch.ID.String(), nil, ch)
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChallengeService) Update(actor Actor, id uuid.UUID, req *dto.UpdateChallengeRequest) (*models.Challenge, error) {
	if !canManageChallenges(actor) {
		return nil, ErrForbidden
	}
	ch, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if ch.Status == models.ChallengeCompleted || ch.Status == models.ChallengeCancelled {
		return nil, ErrChallengeTransition
	}
	before := *ch

	if req.Title != nil {
		ch.Title = s.content.PlainText(*req.Title)
	}
	if req.Description != nil {
		ch.Description = s.content.RichText(*req.Description)
	}
	if req.ProblemStatement != nil {
		ch.ProblemStatement = s.content.RichText(*req.ProblemStatement)
	}
	if req.PrizeDescription != nil {
		ch.PrizeDescription = s.content.PlainText(*req.PrizeDescription)
	}
	if req.Deadline != nil {
		if !req.Deadline.After(s.now()) {
			return nil, ErrDeadlinePassed
		}
		ch.Deadline = *req.Deadline
	}
	if err := s.content.Screen(ch.Title + " " + ch.Description); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(ch).Error; err != nil {
			return fmt.Errorf("failed to update challenge: %w", err)
		}
		return s.audit.Record(tx, actor, "challenge.updated", EntityChallenge, ch.ID.String(), before, ch)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// SetStatus moves a challenge through draft, active, judging and completed.
// Draft and active challenges may also be cancelled.
func (s *ChallengeService) SetStatus(actor Actor, id uuid.UUID, status string) (*models.Challenge, error) {
	if !canManageChallenges(actor) {
		return nil, ErrForbidden
	}
	ch, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !canMoveChallenge(ch.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrChallengeTransition, ch.Status, status)
	}
	before := *ch

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).Where("id = ? AND status = ?", ch.ID, ch.Status).Update("status", status)
		if res.Error != nil {
			return fmt.Errorf("failed to change challenge status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrChallengeTransition
		}
		ch.Status = status
		return s.audit.Record(tx, actor, "challenge.status_changed", EntityChallenge, ch.ID.String(), before, ch)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Get hides drafts from everyone who cannot manage challenges.
func (s *ChallengeService) Get(actor Actor, id uuid.UUID) (*models.Challenge, error) {
	ch, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if ch.Status == models.ChallengeDraft && !canManageChallenges(actor) {
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

func (s *ChallengeService) List(actor Actor, status string, limit, offset int) ([]models.Challenge, int64, error) {
	var out []models.Challenge
	var total int64
	limit, offset = page(limit, offset)

	query := s.db.Model(&models.Challenge{})
	if !canManageChallenges(actor) {
		query = query.Where("status <> ?", models.ChallengeDraft)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("deadline ASC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Ideas lists the ideas entered into a challenge.
func (s *ChallengeService) Ideas(actor Actor, id uuid.UUID, limit, offset int) ([]models.Idea, int64, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, 0, err
	}
	var ideas []models.Idea
	var total int64
	limit, offset = page(limit, offset)

	query := s.db.Model(&models.Idea{}).Where("challenge_id = ?", id)
	if !actor.IsAdmin() {
		query = query.Where("current_stage <> ? OR author_id = ?", string(workflow.StageDraft), actor.UserID)
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at ASC").Limit(limit).Offset(offset).Find(&ideas).Error; err != nil {
		return nil, 0, err
	}
	return ideas, total, nil
}

func (s *ChallengeService) load(id uuid.UUID) (*models.Challenge, error) {
	var ch models.Challenge
	if err := s.db.First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// openChallenge checks that a challenge is taking entries at the given time.
func openChallenge(db *gorm.DB, id uuid.UUID, at time.Time) error {
	var ch models.Challenge
	if err := db.First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}
	if ch.Status != models.ChallengeActive || !at.Before(ch.Deadline) {
		return ErrChallengeClosed
	}
	return nil
}
