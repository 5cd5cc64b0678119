package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/metrics"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/storage"
	"github.com/kenha/kenhavate/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrIdeaNotFound         = errors.New("idea not found")
	ErrNotIdeaAuthor        = errors.New("only the author can change this idea")
	ErrIdeaNotEditable      = errors.New("idea can only be changed while it is a draft")
	ErrNotUnderReview       = errors.New("idea is not awaiting review")
	ErrReviewerRoleMismatch = errors.New("your role cannot act on ideas at this stage")
	ErrSelfReview           = errors.New("authors cannot review their own ideas")
	ErrAlreadyReviewed      = errors.New("you have already reviewed this idea at this stage")
	ErrStageChanged         = errors.New("idea moved to another stage, reload and try again")
	ErrForbidden            = errors.New("you are not allowed to perform this action")
	ErrCollaborationClosed  = errors.New("idea is not open for collaboration")
	ErrAttachmentTooLarge   = errors.New("attachment exceeds the 10MB limit")
	ErrAttachmentType       = errors.New("attachment type is not allowed")
	ErrAttachmentNotFound   = errors.New("attachment not found")
)

const MaxAttachmentSize = 10 << 20

var allowedAttachmentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"text/plain":         true,
	"text/csv":           true,

	"application/vnd.ms-excel":      true,
	"application/vnd.ms-powerpoint": true,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,

	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type IdeaService struct {
	db      *gorm.DB
	audit   *AuditService
	events  *Dispatcher
	content *ContentService
	store   storage.Store
	now     func() time.Time
}

func NewIdeaService(db *gorm.DB, audit *AuditService, events *Dispatcher, content *ContentService, store storage.Store) *IdeaService {
	return &IdeaService{
		db:      db,
		audit:   audit,
		events:  events,
		content: content,
		store:   store,
		now:     time.Now,
	}
}

// stageChange is a committed move, reported once the transaction is done.
type stageChange struct {
	idea      models.Idea
	from, to  workflow.Stage
	enteredAt time.Time
}

func (s *IdeaService) Create(actor Actor, req *dto.CreateIdeaRequest) (*models.Idea, error) {
	if err := s.content.Screen(req.Title + " " + req.Description); err != nil {
		return nil, err
	}

	if err := activeCategory(s.db, req.CategoryID); err != nil {
		return nil, err
	}
	now := s.now()
	if req.ChallengeID != nil {
		if err := openChallenge(s.db, *req.ChallengeID, now); err != nil {
			return nil, err
		}
	}

	idea := models.Idea{
		ID:                   uuid.New(),
		Title:                s.content.PlainText(req.Title),
		Description:          s.content.RichText(req.Description),
		CategoryID:           req.CategoryID,
		ChallengeID:          req.ChallengeID,
		AuthorID:             actor.UserID,
		CurrentStage:         string(workflow.StageDraft),
		CollaborationEnabled: req.CollaborationEnabled,
		BusinessCase:         s.content.RichText(req.BusinessCase),
		ExpectedImpact:       s.content.RichText(req.ExpectedImpact),
		Timeline:             s.content.PlainText(req.Timeline),
		ResourceRequirements: s.content.RichText(req.ResourceRequirements),
		StageEnteredAt:       now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&idea).Error; err != nil {
			return fmt.Errorf("failed to create idea: %w", err)
		}
		return s.audit.Record(tx, actor, "idea.created", EntityIdea, idea.ID.String(), nil, idea)
	})
	if err != nil {
		return nil, err
	}

	if idea.ChallengeID != nil {
		s.events.Dispatch(Event{Type: EventChallengeJoined, UserID: actor.UserID, IdeaID: idea.ID, ChallengeID: *idea.ChallengeID, At: now})
	}
	return &idea, nil
}

// Get returns an idea with its reviews. Drafts are only visible to their
// author and to admins.
func (s *IdeaService) Get(actor Actor, id uuid.UUID) (*models.Idea, error) {
	var idea models.Idea
	err := s.db.Preload("Category").
		Preload("Author").
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&idea, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdeaNotFound
		}
		return nil, err
	}
	if !canSee(actor, &idea) {
		return nil, ErrIdeaNotFound
	}
	return &idea, nil
}

func (s *IdeaService) List(actor Actor, f dto.IdeaFilter) ([]models.Idea, int64, error) {
	var ideas []models.Idea
	var total int64
	limit, offset := page(f.Limit, f.Offset)

	query := s.db.Model(&models.Idea{})
	if !actor.IsAdmin() {
		query = query.Where("current_stage <> ? OR author_id = ?", string(workflow.StageDraft), actor.UserID)
	}
	if f.Stage != "" {
		stage, err := workflow.Parse(f.Stage)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("current_stage = ?", string(stage))
	}
	if f.AuthorID != nil {
		query = query.Where("author_id = ?", *f.AuthorID)
	}
	if f.CategoryID != nil {
		query = query.Where("category_id = ?", *f.CategoryID)
	}
	if f.ChallengeID != nil {
		query = query.Where("challenge_id = ?", *f.ChallengeID)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Category").Order("updated_at DESC").Limit(limit).Offset(offset).Find(&ideas).Error; err != nil {
		return nil, 0, err
	}
	return ideas, total, nil
}

func (s *IdeaService) Update(actor Actor, id uuid.UUID, req *dto.UpdateIdeaRequest) (*models.Idea, error) {
	idea, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorDraft(actor, idea); err != nil {
		return nil, err
	}
	before := *idea

	if req.Title != nil {
		idea.Title = s.content.PlainText(*req.Title)
	}
	if req.Description != nil {
		idea.Description = s.content.RichText(*req.Description)
	}
	if req.CategoryID != nil {
		if err := activeCategory(s.db, *req.CategoryID); err != nil {
			return nil, err
		}
		idea.CategoryID = *req.CategoryID
	}
	if req.CollaborationEnabled != nil {
		idea.CollaborationEnabled = *req.CollaborationEnabled
	}
	if req.BusinessCase != nil {
		idea.BusinessCase = s.content.RichText(*req.BusinessCase)
	}
	if req.ExpectedImpact != nil {
		idea.ExpectedImpact = s.content.RichText(*req.ExpectedImpact)
	}
	if req.Timeline != nil {
		idea.Timeline = s.content.PlainText(*req.Timeline)
	}
	if req.ResourceRequirements != nil {
		idea.ResourceRequirements = s.content.RichText(*req.ResourceRequirements)
	}
	if err := s.content.Screen(idea.Title + " " + idea.Description); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Idea{}).
			Where("id = ? AND current_stage = ?", idea.ID, string(workflow.StageDraft)).
			Updates(map[string]interface{}{
				"title":                 idea.Title,
				"description":           idea.Description,
				"category_id":           idea.CategoryID,
				"collaboration_enabled": idea.CollaborationEnabled,
				"business_case":         idea.BusinessCase,
				"expected_impact":       idea.ExpectedImpact,
				"timeline":              idea.Timeline,
				"resource_requirements": idea.ResourceRequirements,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update idea: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrIdeaNotEditable
		}
		return s.audit.Record(tx, actor, "idea.updated", EntityIdea, idea.ID.String(), before, idea)
	})
	if err != nil {
		return nil, err
	}
	return idea, nil
}

// Delete removes a draft and its attachments.
func (s *IdeaService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	idea, err := s.load(s.db, id)
	if err != nil {
		return err
	}
	if err := authorDraft(actor, idea); err != nil {
		return err
	}

	var attachments []models.IdeaAttachment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("idea_id = ?", idea.ID).Find(&attachments).Error; err != nil {
			return err
		}
		if err := tx.Where("idea_id = ?", idea.ID).Delete(&models.IdeaAttachment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND current_stage = ?", idea.ID, string(workflow.StageDraft)).Delete(&models.Idea{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete idea: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrIdeaNotEditable
		}
		return s.audit.Record(tx, actor, "idea.deleted", EntityIdea, idea.ID.String(), idea, nil)
	})
	if err != nil {
		return err
	}

	for _, a := range attachments {
		if err := s.store.Delete(ctx, a.ObjectKey); err != nil {
			slog.Warn("failed to delete attachment object", "key", a.ObjectKey, "error", err)
		}
	}
	return nil
}

// Submit hands a draft over to the review pipeline.
func (s *IdeaService) Submit(actor Actor, id uuid.UUID) (*models.Idea, error) {
	var change stageChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		idea, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := authorDraft(actor, idea); err != nil {
			return err
		}
		before := *idea
		now := s.now()
		if idea.ChallengeID != nil {
			if err := openChallenge(tx, *idea.ChallengeID, now); err != nil {
				return err
			}
		}
		change, err = s.moveStage(tx, idea, workflow.StageSubmitted, map[string]interface{}{"submitted_at": now})
		if err != nil {
			return err
		}
		idea.SubmittedAt = &now
		change.idea = *idea
		return s.audit.Record(tx, actor, "idea.submitted", EntityIdea, idea.ID.String(), before, idea)
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(Event{Type: EventIdeaSubmitted, UserID: actor.UserID, IdeaID: change.idea.ID, At: s.now()})
	s.announce(change)
	return &change.idea, nil
}

// Review records a reviewer's decision. Approval moves the idea one step
// forward; rejection archives it.
func (s *IdeaService) Review(actor Actor, id uuid.UUID, req *dto.ReviewRequest) (*models.Review, *models.Idea, error) {
	var review models.Review
	var change stageChange
	var reviewedStage workflow.Stage

	err := s.db.Transaction(func(tx *gorm.DB) error {
		idea, err := s.load(tx, id)
		if err != nil {
			return err
		}
		stage := workflow.Stage(idea.CurrentStage)
		if stage.Terminal() {
			return workflow.ErrTerminalStage
		}
		if !stage.IsReview() {
			return ErrNotUnderReview
		}
		if idea.AuthorID == actor.UserID {
			return ErrSelfReview
		}
		if !workflow.CanReview(stage, actor.Roles) {
			return ErrReviewerRoleMismatch
		}
		reviewedStage = stage
		before := *idea

		review = models.Review{
			ID:         uuid.New(),
			IdeaID:     idea.ID,
			ReviewerID: actor.UserID,
			Stage:      string(stage),
			Decision:   req.Decision,
			Comments:   s.content.RichText(req.Comments),
			Score:      req.Score,
			CreatedAt:  s.now(),
		}
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReviewed
			}
			return fmt.Errorf("failed to record review: %w", err)
		}

		target := workflow.StageArchived
		if req.Decision == models.DecisionApprove {
			target, err = workflow.Next(stage, idea.CollaborationEnabled)
			if err != nil {
				return err
			}
		}
		change, err = s.moveStage(tx, idea, target, nil)
		if err != nil {
			return err
		}
		change.idea = *idea

		return s.audit.Record(tx, actor, "idea.reviewed", EntityIdea, idea.ID.String(), before, map[string]interface{}{
			"review": review,
			"idea":   idea,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.events.Dispatch(Event{
		Type:           EventReviewCompleted,
		UserID:         actor.UserID,
		IdeaID:         change.idea.ID,
		Stage:          string(reviewedStage),
		StageEnteredAt: change.enteredAt,
		At:             review.CreatedAt,
	})
	s.announce(change)
	return &review, &change.idea, nil
}

// Archive retires an idea. The stage's reviewer or an admin may archive any
// live idea; the author may only archive their own draft.
func (s *IdeaService) Archive(actor Actor, id uuid.UUID, req *dto.ArchiveRequest) (*models.Idea, error) {
	var change stageChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		idea, err := s.load(tx, id)
		if err != nil {
			return err
		}
		stage := workflow.Stage(idea.CurrentStage)
		if stage.Terminal() {
			return workflow.ErrTerminalStage
		}
		ownDraft := stage == workflow.StageDraft && idea.AuthorID == actor.UserID
		if !ownDraft && !actor.IsAdmin() && !workflow.CanReview(stage, actor.Roles) {
			return ErrForbidden
		}
		before := *idea
		change, err = s.moveStage(tx, idea, workflow.StageArchived, nil)
		if err != nil {
			return err
		}
		change.idea = *idea
		return s.audit.Record(tx, actor, "idea.archived", EntityIdea, idea.ID.String(), before, map[string]interface{}{
			"idea":   idea,
			"reason": req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.announce(change)
	return &change.idea, nil
}

// Advance is the admin override: it moves a submitted idea forward to any
// later stage. It never moves backwards and never leaves draft.
func (s *IdeaService) Advance(actor Actor, id uuid.UUID, req *dto.AdvanceRequest) (*models.Idea, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	target, err := workflow.Parse(req.Stage)
	if err != nil {
		return nil, err
	}
	if target == workflow.StageArchived {
		return nil, fmt.Errorf("%w: use archive to retire an idea", workflow.ErrInvalidTransition)
	}

	var change stageChange
	err = s.db.Transaction(func(tx *gorm.DB) error {
		idea, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if workflow.Stage(idea.CurrentStage) == workflow.StageDraft {
			return fmt.Errorf("%w: drafts are submitted by their author", workflow.ErrInvalidTransition)
		}
		if target == workflow.StageCollaboration && !idea.CollaborationEnabled {
			return fmt.Errorf("%w: collaboration is disabled for this idea", workflow.ErrInvalidTransition)
		}
		before := *idea
		change, err = s.moveStage(tx, idea, target, nil)
		if err != nil {
			return err
		}
		change.idea = *idea
		return s.audit.Record(tx, actor, "idea.advanced", EntityIdea, idea.ID.String(), before, map[string]interface{}{
			"idea":   idea,
			"reason": req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.announce(change)
	return &change.idea, nil
}

// ReviewQueue lists ideas waiting on any of the actor's roles, oldest first.
func (s *IdeaService) ReviewQueue(actor Actor, limit, offset int) ([]models.Idea, int64, error) {
	seen := map[workflow.Stage]bool{}
	var stages []string
	for _, role := range actor.Roles {
		for _, st := range workflow.StagesForRole(role) {
			if !seen[st] {
				seen[st] = true
				stages = append(stages, string(st))
			}
		}
	}
	if len(stages) == 0 {
		return []models.Idea{}, 0, nil
	}

	var ideas []models.Idea
	var total int64
	limit, offset = page(limit, offset)
	query := s.db.Model(&models.Idea{}).
		Where("current_stage IN ?", stages).
		Where("author_id <> ?", actor.UserID).
		Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Category").Order("stage_entered_at ASC").Limit(limit).Offset(offset).Find(&ideas).Error; err != nil {
		return nil, 0, err
	}
	return ideas, total, nil
}

func (s *IdeaService) AddCollaboration(actor Actor, id uuid.UUID, req *dto.CollaborationRequest) (*models.Collaboration, error) {
	if err := s.content.Screen(req.Content); err != nil {
		return nil, err
	}
	idea, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	if idea.CurrentStage != string(workflow.StageCollaboration) || !idea.CollaborationEnabled {
		return nil, ErrCollaborationClosed
	}
	if idea.AuthorID == actor.UserID {
		return nil, ErrForbidden
	}

	collab := models.Collaboration{
		ID:        uuid.New(),
		IdeaID:    idea.ID,
		UserID:    actor.UserID,
		Content:   s.content.RichText(req.Content),
		CreatedAt: s.now(),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&collab).Error; err != nil {
			return fmt.Errorf("failed to save contribution: %w", err)
		}
		return s.audit.Record(tx, actor, "idea.collaboration_added", EntityIdea, idea.ID.String(), nil, collab)
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(Event{Type: EventCollaborationAdded, UserID: actor.UserID, IdeaID: idea.ID, RefID: collab.ID, At: collab.CreatedAt})
	return &collab, nil
}

func (s *IdeaService) ListCollaborations(actor Actor, id uuid.UUID) ([]models.Collaboration, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	var out []models.Collaboration
	err := s.db.Where("idea_id = ?", id).Order("created_at ASC").Find(&out).Error
	return out, err
}

// AddAttachment stores a file against a draft. Only the author may upload.
func (s *IdeaService) AddAttachment(ctx context.Context, actor Actor, id uuid.UUID, filename, contentType string, size int64, r io.Reader) (*models.IdeaAttachment, error) {
	idea, err := s.load(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := authorDraft(actor, idea); err != nil {
		return nil, err
	}
	if size > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedAttachmentTypes[contentType] {
		return nil, ErrAttachmentType
	}

	att := models.IdeaAttachment{
		ID:          uuid.New(),
		IdeaID:      idea.ID,
		UploaderID:  actor.UserID,
		Filename:    s.content.PlainText(filepath.Base(filename)),
		ContentType: contentType,
		Size:        size,
	}
	att.ObjectKey = fmt.Sprintf("ideas/%s/%s%s", idea.ID, att.ID, strings.ToLower(filepath.Ext(filename)))

	if err := s.store.Put(ctx, att.ObjectKey, io.LimitReader(r, MaxAttachmentSize), size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&att).Error; err != nil {
			return fmt.Errorf("failed to save attachment: %w", err)
		}
		return s.audit.Record(tx, actor, "idea.attachment_added", EntityIdea, idea.ID.String(), nil, att)
	})
	if err != nil {
		if derr := s.store.Delete(ctx, att.ObjectKey); derr != nil {
			slog.Warn("failed to remove orphaned attachment", "key", att.ObjectKey, "error", derr)
		}
		return nil, err
	}
	return &att, nil
}

// OpenAttachment returns the attachment row and a reader for its bytes. The
// caller closes the reader.
func (s *IdeaService) OpenAttachment(ctx context.Context, actor Actor, ideaID, attachmentID uuid.UUID) (*models.IdeaAttachment, io.ReadCloser, error) {
	if _, err := s.Get(actor, ideaID); err != nil {
		return nil, nil, err
	}
	var att models.IdeaAttachment
	if err := s.db.Where("id = ? AND idea_id = ?", attachmentID, ideaID).First(&att).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	rc, err := s.store.Get(ctx, att.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return &att, rc, nil
}

func (s *IdeaService) ListAttachments(actor Actor, ideaID uuid.UUID) ([]models.IdeaAttachment, error) {
	if _, err := s.Get(actor, ideaID); err != nil {
		return nil, err
	}
	var out []models.IdeaAttachment
	err := s.db.Where("idea_id = ?", ideaID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (s *IdeaService) load(db *gorm.DB, id uuid.UUID) (*models.Idea, error) {
	var idea models.Idea
	if err := db.First(&idea, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdeaNotFound
		}
		return nil, err
	}
	return &idea, nil
}

// moveStage applies a stage change guarded on the stage the idea was read
// in, so two reviewers racing on one stage cannot both move it.
func (s *IdeaService) moveStage(tx *gorm.DB, idea *models.Idea, to workflow.Stage, extra map[string]interface{}) (stageChange, error) {
	from := workflow.Stage(idea.CurrentStage)
	if err := workflow.CanTransition(from, to); err != nil {
		return stageChange{}, err
	}

	now := s.now()
	updates := map[string]interface{}{
		"current_stage":    string(to),
		"stage_entered_at": now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Idea{}).Where("id = ? AND current_stage = ?", idea.ID, string(from)).Updates(updates)
	if res.Error != nil {
		return stageChange{}, fmt.Errorf("failed to move idea: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stageChange{}, ErrStageChanged
	}

	change := stageChange{from: from, to: to, enteredAt: idea.StageEnteredAt}
	idea.CurrentStage = string(to)
	idea.StageEnteredAt = now
	return change, nil
}

func (s *IdeaService) announce(c stageChange) {
	if c.to == "" {
		return
	}
	metrics.StageTransitionsTotal.WithLabelValues(string(c.from), string(c.to)).Inc()
	slog.Info("idea stage changed", "idea_id", c.idea.ID.String(), "from", c.from, "to", c.to)
	s.events.Dispatch(Event{
		Type:      EventIdeaStageChanged,
		UserID:    c.idea.AuthorID,
		IdeaID:    c.idea.ID,
		Stage:     string(c.to),
		FromStage: string(c.from),
		At:        c.idea.StageEnteredAt,
	})
}

func authorDraft(actor Actor, idea *models.Idea) error {
	if idea.AuthorID != actor.UserID {
		return ErrNotIdeaAuthor
	}
	if idea.CurrentStage != string(workflow.StageDraft) {
		return ErrIdeaNotEditable
	}
	return nil
}

func canSee(actor Actor, idea *models.Idea) bool {
	return idea.CurrentStage != string(workflow.StageDraft) || idea.AuthorID == actor.UserID || actor.IsAdmin()
}
