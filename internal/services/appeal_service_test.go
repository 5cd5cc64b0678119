package services

import (
	"context"
	"testing"
	"time"

	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) setStatus(t *testing.T, a Actor, status string) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", a.UserID).Update("account_status", status).Error)
}

func appealFrom(email, appealType string) *dto.AppealRequest {
	return &dto.AppealRequest{
		Email:      email,
		AppealType: appealType,
		Message:    "I believe my account was suspended by mistake, please review.",
	}
}

func TestAppealCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina")
	f.setStatus(t, u, models.AccountSuspended)
	email := "amina@kenha.co.ke"

	ok, err := f.appeals.CanSendAppeal(u.UserID, models.AppealTypeSuspension)
	require.NoError(t, err)
	assert.True(t, ok)

	appeal, err := f.appeals.Send(ctx, appealFrom(email, models.AppealTypeSuspension), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, appeal.Status)
	assert.Equal(t, 1, f.mailer.count(email))

	f.clock.Advance(23 * time.Hour)
	_, err = f.appeals.Send(ctx, appealFrom(email, models.AppealTypeSuspension), "10.0.0.1")
	assert.ErrorIs(t, err, ErrAppealCooldown)

	elig, err := f.appeals.Eligibility(email, models.AppealTypeSuspension)
	require.NoError(t, err)
	assert.False(t, elig.CanSend)
	require.NotNil(t, elig.NextAllowed)
	assert.True(t, elig.NextAllowed.Equal(appeal.LastSentAt.Add(24*time.Hour)))

	f.clock.Advance(2 * time.Hour)
	ok, err = f.appeals.CanSendAppeal(u.UserID, models.AppealTypeSuspension)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = f.appeals.Send(ctx, appealFrom(email, models.AppealTypeSuspension), "10.0.0.1")
	require.NoError(t, err)
}

func TestAppealTypeMustMatchStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina")
	email := "amina@kenha.co.ke"

	_, err := f.appeals.Send(ctx, appealFrom(email, models.AppealTypeBan), "")
	assert.ErrorIs(t, err, ErrAppealNotAllowed)

	f.setStatus(t, u, models.AccountBanned)
	_, err = f.appeals.Send(ctx, appealFrom(email, models.AppealTypeSuspension), "")
	assert.ErrorIs(t, err, ErrAppealNotAllowed)
	_, err = f.appeals.Send(ctx, appealFrom(email, models.AppealTypeBan), "")
	assert.NoError(t, err)

	_, err = f.appeals.Send(ctx, appealFrom("ghost@kenha.co.ke", models.AppealTypeBan), "")
	assert.ErrorIs(t, err, ErrAppealNotAllowed)
}

func TestEligibilityDoesNotRevealAccounts(t *testing.T) {
	f := newFixture(t)
	f.user(t, "amina")

	unknown, err := f.appeals.Eligibility("ghost@kenha.co.ke", models.AppealTypeBan)
	require.NoError(t, err)
	active, err := f.appeals.Eligibility("amina@kenha.co.ke", models.AppealTypeBan)
	require.NoError(t, err)

	assert.Equal(t, unknown, active)
	assert.False(t, active.CanSend)
	assert.Nil(t, active.NextAllowed)
}

func TestAppealMessageIsSanitised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina")
	f.setStatus(t, u, models.AccountBanned)

	req := appealFrom("amina@kenha.co.ke", models.AppealTypeBan)
	req.Message = `<script>alert(1)</script><b>Please</b> lift the ban on my account`
	appeal, err := f.appeals.Send(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, "Please lift the ban on my account", appeal.Message)

	var stored models.AppealMessage
	require.NoError(t, f.db.First(&stored, "id = ?", appeal.ID).Error)
	assert.NotContains(t, stored.Message, "<")

	f.clock.Advance(25 * time.Hour)
	req.Message = `<script>alert("only markup here")</script>`
	_, err = f.appeals.Send(ctx, req, "")
	assert.ErrorIs(t, err, ErrInappropriateContent)
}

func TestAppealWindowKeyBlocksConcurrentSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina")
	f.setStatus(t, u, models.AccountSuspended)

	// a row committed by a concurrent request that the cooldown check
	// did not see
	require.NoError(t, f.db.Create(&models.AppealMessage{
		UserID:     u.UserID,
		AppealType: models.AppealTypeSuspension,
		Message:    "Sent from another tab at the same moment.",
		Status:     models.AppealPending,
		LastSentAt: f.clock.Now().Add(-25 * time.Hour),
		WindowKey:  f.appeals.windowKey(u.UserID, models.AppealTypeSuspension, f.clock.Now()),
	}).Error)

	_, err := f.appeals.Send(ctx, appealFrom("amina@kenha.co.ke", models.AppealTypeSuspension), "")
	assert.ErrorIs(t, err, ErrAppealCooldown)

	var count int64
	require.NoError(t, f.db.Model(&models.AppealMessage{}).Where("user_id = ?", u.UserID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDecideAppeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "amina")
	admin := f.user(t, "chief", models.RoleAdministrator)
	f.setStatus(t, u, models.AccountBanned)

	appeal, err := f.appeals.Send(ctx, appealFrom("amina@kenha.co.ke", models.AppealTypeBan), "")
	require.NoError(t, err)

	pending, total, err := f.appeals.List(models.AppealPending, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].User)

	decided, err := f.appeals.Decide(ctx, admin, appeal.ID, &dto.AppealDecisionRequest{Status: models.AppealApproved, Response: "Ban lifted."})
	require.NoError(t, err)
	assert.Equal(t, models.AppealApproved, decided.Status)
	require.NotNil(t, decided.ReviewedBy)
	assert.Equal(t, admin.UserID, *decided.ReviewedBy)

	_, err = f.auth.LoadActiveUser(u.UserID)
	assert.NoError(t, err)

	_, err = f.appeals.Decide(ctx, admin, appeal.ID, &dto.AppealDecisionRequest{Status: models.AppealRejected})
	assert.ErrorIs(t, err, ErrAppealDecided)

	logs, _, err := f.audit.List(AuditFilter{EntityType: EntityUser, EntityID: u.UserID.String()})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "user.status_changed", logs[0].Action)
}
