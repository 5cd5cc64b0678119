package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	fields := Validate(&RegisterRequest{Name: "A", Email: "not-an-email", Password: "short"})
	assert.Equal(t, "Must be at least 2 characters.", fields["name"])
	assert.Equal(t, "Must be a valid email address.", fields["email"])
	assert.Equal(t, "Must be at least 8 characters.", fields["password"])
}

func TestValidatePasses(t *testing.T) {
	assert.Nil(t, Validate(&LoginRequest{Email: "eng@kenha.co.ke", Password: "x"}))
}

func TestValidateReviewScore(t *testing.T) {
	fields := Validate(&ReviewRequest{Decision: "maybe", Score: 11})
	assert.Equal(t, "Must be one of: approve reject.", fields["decision"])
	assert.Equal(t, "Must be at most 10.", fields["score"])
}

func TestValidateRoleName(t *testing.T) {
	assert.Nil(t, Validate(&CreateRoleRequest{Name: "innovation_champion"}))
	fields := Validate(&CreateRoleRequest{Name: "Bad Role"})
	assert.Contains(t, fields, "name")
}
