package services

import (
	"context"
	"testing"

	"github.com/kenha/kenhavate/internal/dto"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRolesCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	dev := f.user(t, "dev", models.RoleDeveloper)

	for _, name := range []string{models.RoleDeveloper, models.RoleAdministrator, models.RoleUser} {
		assert.ErrorIs(t, f.roles.Delete(dev, name), ErrSystemRole, name)
	}
	assert.ErrorIs(t, f.roles.Delete(dev, "ghost"), ErrRoleNotFound)
}

func TestCustomRoleLifecycle(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "chief", models.RoleAdministrator)
	staff := f.user(t, "amina")

	role, err := f.roles.Create(admin, &dto.CreateRoleRequest{Name: "Safety_Auditor", Description: "Audits road safety ideas"})
	require.NoError(t, err)
	assert.Equal(t, "safety_auditor", role.Name)

	_, err = f.roles.Create(admin, &dto.CreateRoleRequest{Name: "safety_auditor"})
	assert.ErrorIs(t, err, ErrRoleExists)

	_, err = f.users.SetPrimaryRole(admin, staff.UserID, role.Name)
	require.NoError(t, err)
	assert.ErrorIs(t, f.roles.Delete(admin, role.Name), ErrRoleInUse)

	u, err := f.users.SetPrimaryRole(admin, staff.UserID, models.RoleUser)
	require.NoError(t, err)
	assert.Contains(t, u.RoleNames(), role.Name)

	require.NoError(t, f.roles.Delete(admin, role.Name))
	reloaded, err := f.auth.LoadUser(idLookup(staff.UserID))
	require.NoError(t, err)
	assert.NotContains(t, reloaded.RoleNames(), role.Name)
}

func TestRoleAssignment(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "chief", models.RoleAdministrator)
	dev := f.user(t, "dev", models.RoleDeveloper)
	staff := f.user(t, "amina")

	u, err := f.users.AssignRole(admin, staff.UserID, models.RoleSME)
	require.NoError(t, err)
	assert.True(t, u.HasRole(models.RoleSME))

	// assigning twice is a no-op
	_, err = f.users.AssignRole(admin, staff.UserID, models.RoleSME)
	require.NoError(t, err)
	reloaded, err := f.auth.LoadUser(idLookup(staff.UserID))
	require.NoError(t, err)
	assert.Len(t, reloaded.Roles, 2)

	_, err = f.users.RemoveRole(admin, staff.UserID, models.RoleUser)
	assert.ErrorIs(t, err, ErrPrimaryRole)

	u, err = f.users.RemoveRole(admin, staff.UserID, models.RoleSME)
	require.NoError(t, err)
	assert.False(t, u.HasRole(models.RoleSME))

	_, err = f.users.AssignRole(admin, staff.UserID, models.RoleDeveloper)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.users.AssignRole(dev, staff.UserID, models.RoleDeveloper)
	assert.NoError(t, err)

	_, err = f.users.AssignRole(admin, staff.UserID, "ghost")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestSetStatusRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "chief", models.RoleAdministrator)
	dev := f.user(t, "dev", models.RoleDeveloper)

	email := "amina@kenha.co.ke"
	register(t, f, email)
	resp, err := verify(f, email, f.mailer.lastCode(t, email), models.OTPPurposeRegistration)
	require.NoError(t, err)

	_, err = f.users.SetStatus(admin, admin.UserID, &dto.UserStatusRequest{Status: models.AccountBanned})
	assert.ErrorIs(t, err, ErrSelfDemotion)
	_, err = f.users.SetStatus(admin, dev.UserID, &dto.UserStatusRequest{Status: models.AccountBanned})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := f.users.SetStatus(admin, resp.User.ID, &dto.UserStatusRequest{Status: models.AccountSuspended, Reason: "Spam"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountSuspended, u.AccountStatus)

	_, err = f.auth.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.auth.Login(ctx, &dto.LoginRequest{Email: email, Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrAccountSuspended)

	users, total, err := f.users.List(UserFilter{Status: models.AccountSuspended})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Spam", users[0].StatusReason)

	u, err = f.users.SetStatus(admin, resp.User.ID, &dto.UserStatusRequest{Status: models.AccountActive, Reason: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, u.StatusReason)
}

func TestListUsersByRole(t *testing.T) {
	f := newFixture(t)
	f.user(t, "amina")
	f.user(t, "otieno", models.RoleUser, models.RoleManager)
	f.user(t, "njeri", models.RoleManager)

	users, total, err := f.users.List(UserFilter{Role: models.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)

	_, total, err = f.users.List(UserFilter{Search: "AMI"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
