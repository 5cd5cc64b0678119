package services

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdeaFullPipeline(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)
	sme := f.user(t, "wanjiru", models.RoleSME)
	board := f.user(t, "kamau", models.RoleBoardMember)

	idea := f.draft(t, author, true)
	assert.Equal(t, string(workflow.StageDraft), idea.CurrentStage)

	submitted, err := f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageSubmitted), submitted.CurrentStage)
	require.NotNil(t, submitted.SubmittedAt)

	steps := []struct {
		reviewer Actor
		want     workflow.Stage
	}{
		{manager, workflow.StageManagerReview},
		{manager, workflow.StageSMEReview},
		{sme, workflow.StageCollaboration},
		{manager, workflow.StageBoardReview},
		{board, workflow.StageImplementation},
		{manager, workflow.StageCompleted},
	}
	for _, step := range steps {
		f.clock.Advance(time.Hour)
		got := f.approve(t, step.reviewer, idea.ID)
		assert.Equal(t, string(step.want), got.CurrentStage)
	}

	// submission 50, approved for implementation 100, implemented 200
	assert.Equal(t, int64(350), f.total(t, author))

	stored, err := f.ideas.Get(author, idea.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Reviews, 6)

	_, _, err = f.ideas.Review(manager, idea.ID, &dto.ReviewRequest{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, workflow.ErrTerminalStage)
}

func TestIdeaSkipsCollaborationWhenDisabled(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)
	sme := f.user(t, "wanjiru", models.RoleSME)

	idea := f.draft(t, author, false)
	_, err := f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)
	f.approve(t, manager, idea.ID)
	f.approve(t, manager, idea.ID)
	got := f.approve(t, sme, idea.ID)
	assert.Equal(t, string(workflow.StageBoardReview), got.CurrentStage)
}

func TestReviewGuards(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina", models.RoleUser, models.RoleManager)
	sme := f.user(t, "wanjiru", models.RoleSME)
	manager := f.user(t, "otieno", models.RoleManager)

	idea := f.draft(t, author, false)

	_, _, err := f.ideas.Review(manager, idea.ID, &dto.ReviewRequest{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrNotUnderReview)

	_, err = f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	_, _, err = f.ideas.Review(sme, idea.ID, &dto.ReviewRequest{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrReviewerRoleMismatch)

	_, _, err = f.ideas.Review(author, idea.ID, &dto.ReviewRequest{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrSelfReview)

	got := f.approve(t, manager, idea.ID)
	assert.Equal(t, string(workflow.StageManagerReview), got.CurrentStage)
}

func TestRejectArchivesIdea(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)

	idea := f.draft(t, author, false)
	_, err := f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	_, got, err := f.ideas.Review(manager, idea.ID, &dto.ReviewRequest{Decision: models.DecisionReject, Comments: "Out of scope"})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageArchived), got.CurrentStage)

	_, err = f.ideas.Archive(manager, idea.ID, &dto.ArchiveRequest{})
	assert.ErrorIs(t, err, workflow.ErrTerminalStage)

	admin := f.user(t, "chief", models.RoleAdministrator)
	_, err = f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageBoardReview)})
	assert.ErrorIs(t, err, workflow.ErrTerminalStage)
}

func TestOnlyAuthorEditsDraft(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	other := f.user(t, "brian")

	idea := f.draft(t, author, false)
	title := "Solar road studs, revised"

	_, err := f.ideas.Update(other, idea.ID, &dto.UpdateIdeaRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotIdeaAuthor)

	updated, err := f.ideas.Update(author, idea.ID, &dto.UpdateIdeaRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	_, err = f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	_, err = f.ideas.Update(author, idea.ID, &dto.UpdateIdeaRequest{Title: &title})
	assert.ErrorIs(t, err, ErrIdeaNotEditable)

	err = f.ideas.Delete(context.Background(), author, idea.ID)
	assert.ErrorIs(t, err, ErrIdeaNotEditable)
}

func TestDraftVisibility(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	other := f.user(t, "brian")
	admin := f.user(t, "chief", models.RoleAdministrator)

	idea := f.draft(t, author, false)

	_, err := f.ideas.Get(other, idea.ID)
	assert.ErrorIs(t, err, ErrIdeaNotFound)
	_, err = f.ideas.Get(admin, idea.ID)
	assert.NoError(t, err)

	list, total, err := f.ideas.List(other, dto.IdeaFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	list, total, err = f.ideas.List(author, dto.IdeaFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	_, err = f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	_, total, err = f.ideas.List(other, dto.IdeaFilter{Stage: string(workflow.StageSubmitted)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = f.ideas.List(other, dto.IdeaFilter{Stage: "rejected"})
	assert.ErrorIs(t, err, workflow.ErrUnknownStage)
}

func TestAdvanceIsAdminOnlyAndForward(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)
	admin := f.user(t, "chief", models.RoleAdministrator)

	idea := f.draft(t, author, false)

	_, err := f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageBoardReview)})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	_, err = f.ideas.Advance(manager, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageBoardReview)})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageBoardReview), Reason: "Fast-tracked"})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageBoardReview), got.CurrentStage)

	_, err = f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageSMEReview)})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageArchived)})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	got, err = f.ideas.Advance(admin, idea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageImplementation)})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageImplementation), got.CurrentStage)
	assert.Equal(t, int64(150), f.total(t, author))
}

func TestArchivePermissions(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	other := f.user(t, "brian")
	manager := f.user(t, "otieno", models.RoleManager)

	own := f.draft(t, author, false)
	_, err := f.ideas.Archive(other, own.ID, &dto.ArchiveRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := f.ideas.Archive(author, own.ID, &dto.ArchiveRequest{Reason: "Duplicate"})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageArchived), got.CurrentStage)

	submitted := f.draft(t, author, false)
	_, err = f.ideas.Submit(author, submitted.ID)
	require.NoError(t, err)
	_, err = f.ideas.Archive(author, submitted.ID, &dto.ArchiveRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.ideas.Archive(manager, submitted.ID, &dto.ArchiveRequest{})
	assert.NoError(t, err)
}

func TestCollaborationRules(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	helper := f.user(t, "brian")
	manager := f.user(t, "otieno", models.RoleManager)
	sme := f.user(t, "wanjiru", models.RoleSME)

	idea := f.draft(t, author, true)
	req := &dto.CollaborationRequest{Content: "Pilot it on the Thika superhighway first."}

	_, err := f.ideas.AddCollaboration(helper, idea.ID, req)
	assert.ErrorIs(t, err, ErrCollaborationClosed)

	_, err = f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)
	f.approve(t, manager, idea.ID)
	f.approve(t, manager, idea.ID)
	f.approve(t, sme, idea.ID)

	_, err = f.ideas.AddCollaboration(author, idea.ID, req)
	assert.ErrorIs(t, err, ErrForbidden)

	c1, err := f.ideas.AddCollaboration(helper, idea.ID, req)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.ideas.AddCollaboration(helper, idea.ID, req)
	require.NoError(t, err)

	list, err := f.ideas.ListCollaborations(helper, idea.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, c1.ID, list[0].ID)

	// each contribution earns 20 points on its own key
	assert.Equal(t, int64(40), f.total(t, helper))
}

func TestReviewerFirstHalfBonus(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	fast := f.user(t, "otieno", models.RoleManager)
	slow := f.user(t, "njeri", models.RoleManager)

	idea := f.draft(t, author, false)
	_, err := f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.approve(t, fast, idea.ID)
	assert.Equal(t, int64(35), f.total(t, fast))

	f.clock.Advance(40 * time.Hour)
	f.approve(t, slow, idea.ID)
	assert.Equal(t, int64(25), f.total(t, slow))
}

func TestSecondReviewAtSameStageRefused(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)

	idea := f.draft(t, author, false)
	_, err := f.ideas.Submit(author, idea.ID)
	require.NoError(t, err)

	// submitted and manager_review share a reviewer role, so rewind the
	// stage to replay a review at the same stage
	f.approve(t, manager, idea.ID)
	require.NoError(t, f.db.Model(&models.Idea{}).Where("id = ?", idea.ID).
		Update("current_stage", string(workflow.StageSubmitted)).Error)

	_, _, err = f.ideas.Review(manager, idea.ID, &dto.ReviewRequest{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestReviewQueue(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)
	sme := f.user(t, "wanjiru", models.RoleSME)

	first := f.draft(t, author, false)
	second := f.draft(t, author, false)
	f.draft(t, author, false)

	_, err := f.ideas.Submit(author, first.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.ideas.Submit(author, second.ID)
	require.NoError(t, err)

	queue, total, err := f.ideas.ReviewQueue(manager, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)

	queue, total, err = f.ideas.ReviewQueue(sme, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, queue)

	queue, _, err = f.ideas.ReviewQueue(author, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "amina")
	other := f.user(t, "brian")

	idea := f.draft(t, author, false)
	body := []byte("%PDF-1.4 stud layout")

	_, err := f.ideas.AddAttachment(ctx, author, idea.ID, "layout.exe", "application/x-msdownload", 10, bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrAttachmentType)

	_, err = f.ideas.AddAttachment(ctx, author, idea.ID, "big.pdf", "application/pdf", MaxAttachmentSize+1, bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	_, err = f.ideas.AddAttachment(ctx, other, idea.ID, "layout.pdf", "application/pdf", int64(len(body)), bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrNotIdeaAuthor)

	att, err := f.ideas.AddAttachment(ctx, author, idea.ID, "../layout.PDF", "application/pdf; charset=binary", int64(len(body)), bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "layout.PDF", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)

	list, err := f.ideas.ListAttachments(author, idea.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, _, err = f.ideas.OpenAttachment(ctx, other, idea.ID, att.ID)
	assert.ErrorIs(t, err, ErrIdeaNotFound)

	got, rc, err := f.ideas.OpenAttachment(ctx, author, idea.ID, att.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, att.ID, got.ID)

	_, _, err = f.ideas.OpenAttachment(ctx, author, idea.ID, uuid.New())
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	require.NoError(t, f.ideas.Delete(ctx, author, idea.ID))
	_, err = f.ideas.Get(author, idea.ID)
	assert.ErrorIs(t, err, ErrIdeaNotFound)
}

func TestIdeaRequiresActiveCategory(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	inactive := models.Category{ID: uuid.New(), Name: "Retired"}
	require.NoError(t, f.db.Create(&inactive).Error)
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	_, err := f.ideas.Create(author, &dto.CreateIdeaRequest{
		Title:       "Weigh-in-motion sensors",
		Description: "Install weigh-in-motion sensors at the Athi River weighbridge.",
		CategoryID:  inactive.ID,
	})
	assert.ErrorIs(t, err, ErrCategoryInactive)

	_, err = f.ideas.Create(author, &dto.CreateIdeaRequest{
		Title:       "Weigh-in-motion sensors",
		Description: "Install weigh-in-motion sensors at the Athi River weighbridge.",
		CategoryID:  uuid.New(),
	})
	assert.ErrorIs(t, err, ErrCategoryInactive)
}

func TestChallengeParticipation(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)

	ch, err := f.challenges.Create(manager, &dto.CreateChallengeRequest{
		Title:       "Cheaper pothole repair",
		Description: "Ideas that cut the cost of pothole repair on rural roads.",
		Deadline:    f.clock.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	req := &dto.CreateIdeaRequest{
		Title:       "Cold mix asphalt kits",
		Description: "Pre-packed cold mix kits that county crews can apply by hand.",
		CategoryID:  f.category.ID,
		ChallengeID: &ch.ID,
	}
	_, err = f.ideas.Create(author, req)
	assert.ErrorIs(t, err, ErrChallengeClosed)

	_, err = f.challenges.SetStatus(manager, ch.ID, models.ChallengeActive)
	require.NoError(t, err)

	_, err = f.ideas.Create(author, req)
	require.NoError(t, err)
	assert.Equal(t, int64(30), f.total(t, author))

	ideas, total, err := f.challenges.Ideas(author, ch.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, ideas, 1)

	f.clock.Advance(72 * time.Hour)
	_, err = f.ideas.Create(author, req)
	assert.ErrorIs(t, err, ErrChallengeClosed)
}

func TestSubmitRequiresOpenChallenge(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	manager := f.user(t, "otieno", models.RoleManager)

	open := func(title string) *models.Challenge {
		ch, err := f.challenges.Create(manager, &dto.CreateChallengeRequest{
			Title:       title,
			Description: "Ideas that reduce axle overloading at weighbridges.",
			Deadline:    f.clock.Now().Add(48 * time.Hour),
		})
		require.NoError(t, err)
		_, err = f.challenges.SetStatus(manager, ch.ID, models.ChallengeActive)
		require.NoError(t, err)
		return ch
	}
	draftFor := func(ch *models.Challenge) *models.Idea {
		idea, err := f.ideas.Create(author, &dto.CreateIdeaRequest{
			Title:       "Weigh-in-motion sensors",
			Description: "Sensors in the carriageway that flag overloaded trucks before the weighbridge.",
			CategoryID:  f.category.ID,
			ChallengeID: &ch.ID,
		})
		require.NoError(t, err)
		return idea
	}

	judged := open("Axle load compliance")
	judgedIdea := draftFor(judged)
	expired := open("Weighbridge queues")
	expiredIdea := draftFor(expired)
	before := f.total(t, author)

	_, err := f.challenges.SetStatus(manager, judged.ID, models.ChallengeJudging)
	require.NoError(t, err)
	_, err = f.ideas.Submit(author, judgedIdea.ID)
	assert.ErrorIs(t, err, ErrChallengeClosed)

	f.clock.Advance(72 * time.Hour)
	_, err = f.ideas.Submit(author, expiredIdea.ID)
	assert.ErrorIs(t, err, ErrChallengeClosed)

	got, err := f.ideas.Get(author, expiredIdea.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageDraft), got.CurrentStage)
	assert.Nil(t, got.SubmittedAt)
	assert.Equal(t, before, f.total(t, author))
}

func TestAdvanceRespectsDisabledCollaboration(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "amina")
	admin := f.user(t, "chief", models.RoleAdministrator)

	closed := f.draft(t, author, false)
	_, err := f.ideas.Submit(author, closed.ID)
	require.NoError(t, err)
	_, err = f.ideas.Advance(admin, closed.ID, &dto.AdvanceRequest{Stage: string(workflow.StageCollaboration)})
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	got, err := f.ideas.Get(admin, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageSubmitted), got.CurrentStage)

	openIdea := f.draft(t, author, true)
	_, err = f.ideas.Submit(author, openIdea.ID)
	require.NoError(t, err)
	got, err = f.ideas.Advance(admin, openIdea.ID, &dto.AdvanceRequest{Stage: string(workflow.StageCollaboration)})
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageCollaboration), got.CurrentStage)
}
