package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/cache"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/gamification"
	"github.com/kenha/kenhavate/internal/metrics"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrDuplicateAward = errors.New("points already awarded for this action")
	ErrInvalidPeriod  = errors.New("invalid leaderboard period: must be all, month or week")
)

type AwardResult struct {
	Point    *models.UserPoint
	Unlocked []models.UserAchievement
}

type GamificationService struct {
	db          *gorm.DB
	policy      *gamification.Policy
	leaderboard *cache.Leaderboard
	now         func() time.Time
}

func NewGamificationService(db *gorm.DB, policy *gamification.Policy, leaderboard *cache.Leaderboard) *GamificationService {
	return &GamificationService{
		db:          db,
		policy:      policy,
		leaderboard: leaderboard,
		now:         time.Now,
	}
}

func (s *GamificationService) Policy() *gamification.Policy { return s.policy }

// Subscribe hooks the point engine up to the events that earn points.
func (s *GamificationService) Subscribe(d *Dispatcher) {
	d.Subscribe(EventUserRegistered, s.onUserRegistered)
	d.Subscribe(EventUserLoggedIn, s.onUserLoggedIn)
	d.Subscribe(EventIdeaSubmitted, s.onIdeaSubmitted)
	d.Subscribe(EventReviewCompleted, s.onReviewCompleted)
	d.Subscribe(EventIdeaStageChanged, s.onIdeaStageChanged)
	d.Subscribe(EventCollaborationAdded, s.onCollaborationAdded)
	d.Subscribe(EventChallengeJoined, s.onChallengeJoined)
}

func (s *GamificationService) onUserRegistered(e Event) error {
	_, err := s.Award(e.UserID, gamification.ActionAccountCreation, gamification.Context{})
	return err
}

func (s *GamificationService) onUserLoggedIn(e Event) error {
	_, err := s.Award(e.UserID, gamification.ActionDailyLogin, gamification.Context{At: e.At})
	return err
}

func (s *GamificationService) onIdeaSubmitted(e Event) error {
	_, err := s.Award(e.UserID, gamification.ActionIdeaSubmission, gamification.Context{IdeaID: e.IdeaID})
	return err
}

func (s *GamificationService) onReviewCompleted(e Event) error {
	ctx := gamification.Context{IdeaID: e.IdeaID, Stage: e.Stage}
	if _, err := s.Award(e.UserID, gamification.ActionReviewCompleted, ctx); err != nil {
		return err
	}
	if s.policy.InFirstHalf(e.StageEnteredAt, e.At) {
		if _, err := s.Award(e.UserID, gamification.ActionFirstHalfReviewerBonus, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *GamificationService) onIdeaStageChanged(e Event) error {
	var action gamification.Action
	switch workflow.Stage(e.Stage) {
	case workflow.StageImplementation:
		action = gamification.ActionIdeaApproved
	case workflow.StageCompleted:
		action = gamification.ActionIdeaImplemented
	default:
		return nil
	}
	_, err := s.Award(e.UserID, action, gamification.Context{IdeaID: e.IdeaID})
	return err
}

func (s *GamificationService) onCollaborationAdded(e Event) error {
	_, err := s.Award(e.UserID, gamification.ActionCollaborationContribution, gamification.Context{RefID: e.RefID})
	return err
}

func (s *GamificationService) onChallengeJoined(e Event) error {
	_, err := s.Award(e.UserID, gamification.ActionChallengeParticipation, gamification.Context{ChallengeID: e.ChallengeID})
	return err
}

// Award writes one ledger row unless a row with the same dedup key exists,
// then re-derives the user's achievements from their category totals.
func (s *GamificationService) Award(userID uuid.UUID, action gamification.Action, actx gamification.Context) (*AwardResult, error) {
	award, err := s.policy.Resolve(userID, action, actx)
	if err != nil {
		return nil, err
	}

	result := &AwardResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.UserPoint{}).Where("dedup_key = ?", award.DedupKey).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check ledger: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateAward
		}

		point := models.UserPoint{
			ID:          uuid.New(),
			UserID:      userID,
			Action:      string(action),
			Category:    award.Category,
			Points:      award.Points,
			Description: award.Description,
			DedupKey:    award.DedupKey,
			CreatedAt:   s.now(),
		}
		if err := tx.Create(&point).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAward
			}
			return fmt.Errorf("failed to write ledger: %w", err)
		}
		result.Point = &point

		unlocked, err := s.unlockAchievements(tx, userID)
		if err != nil {
			return err
		}
		result.Unlocked = unlocked
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsAwardedTotal.WithLabelValues(string(action)).Add(float64(award.Points))
	if err := s.leaderboard.Invalidate(context.Background()); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
	for _, a := range result.Unlocked {
		slog.Info("achievement unlocked", "user_id", userID.String(), "code", a.Code)
	}
	return result, nil
}

func (s *GamificationService) unlockAchievements(tx *gorm.DB, userID uuid.UUID) ([]models.UserAchievement, error) {
	totals, err := categoryTotals(tx, userID)
	if err != nil {
		return nil, err
	}

	var codes []string
	if err := tx.Model(&models.UserAchievement{}).Where("user_id = ?", userID).Pluck("code", &codes).Error; err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	have := make(map[string]bool, len(codes))
	for _, c := range codes {
		have[c] = true
	}

	var unlocked []models.UserAchievement
	for _, a := range s.policy.Unlocked(totals, have) {
		ua := models.UserAchievement{
			ID:         uuid.New(),
			UserID:     userID,
			Code:       a.Code,
			Name:       a.Name,
			Category:   a.Category,
			UnlockedAt: s.now(),
		}
		if err := tx.Create(&ua).Error; err != nil {
			return nil, fmt.Errorf("failed to unlock achievement %s: %w", a.Code, err)
		}
		unlocked = append(unlocked, ua)
	}
	return unlocked, nil
}

func categoryTotals(db *gorm.DB, userID uuid.UUID) (map[string]int, error) {
	var rows []struct {
		Category string
		Total    int
	}
	err := db.Model(&models.UserPoint{}).
		Select("category, SUM(points) AS total").
		Where("user_id = ?", userID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.Category] = r.Total
	}
	return totals, nil
}

func (s *GamificationService) Total(userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.Model(&models.UserPoint{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

func (s *GamificationService) History(userID uuid.UUID, limit, offset int) ([]models.UserPoint, int64, error) {
	var points []models.UserPoint
	var total int64
	limit, offset = page(limit, offset)

	query := s.db.Model(&models.UserPoint{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&points).Error; err != nil {
		return nil, 0, err
	}
	return points, total, nil
}

func (s *GamificationService) Achievements(userID uuid.UUID) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	err := s.db.Where("user_id = ?", userID).Order("unlocked_at ASC").Find(&out).Error
	return out, err
}

// Leaderboard ranks users by points earned in the period: all, month or week.
func (s *GamificationService) Leaderboard(ctx context.Context, period string, limit int) ([]dto.LeaderboardEntry, error) {
	var since time.Time
	switch period {
	case "", "all":
		period = "all"
	case "month":
		since = s.now().AddDate(0, -1, 0)
	case "week":
		since = s.now().AddDate(0, 0, -7)
	default:
		return nil, ErrInvalidPeriod
	}

	if limit <= 0 || limit > maxPageSize {
		limit = 10
	}
	key := fmt.Sprintf("%s:%d", period, limit)
	var cached []dto.LeaderboardEntry
	if found, err := s.leaderboard.Get(ctx, key, &cached); err != nil {
		slog.Warn("leaderboard cache read failed", "error", err)
	} else if found {
		return cached, nil
	}

	var rows []struct {
		UserID string
		Name   string
		Points int64
	}
	query := s.db.Table("user_points").
		Select("user_points.user_id AS user_id, users.name AS name, SUM(user_points.points) AS points").
		Joins("JOIN users ON users.id = user_points.user_id").
		Where("users.deleted_at IS NULL")
	if !since.IsZero() {
		query = query.Where("user_points.created_at >= ?", since)
	}
	err := query.Group("user_points.user_id, users.name").
		Order("points DESC, users.name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}

	entries := make([]dto.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = dto.LeaderboardEntry{Rank: i + 1, UserID: r.UserID, Name: r.Name, Points: r.Points}
	}

	if err := s.leaderboard.Set(ctx, key, entries); err != nil {
		slog.Warn("leaderboard cache write failed", "error", err)
	}
	return entries, nil
}
