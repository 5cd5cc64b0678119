// Package workflow holds the idea review pipeline: the stage sequence, which
// moves between stages are legal and which role reviews each stage.
package workflow

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageDraft          Stage = "draft"
	StageSubmitted      Stage = "submitted"
	StageManagerReview  Stage = "manager_review"
	StageSMEReview      Stage = "sme_review"
	StageCollaboration  Stage = "collaboration"
	StageBoardReview    Stage = "board_review"
	StageImplementation Stage = "implementation"
	StageCompleted      Stage = "completed"
	StageArchived       Stage = "archived"
)

// Role names used by the reviewer guard. They match the seeded roles.
const (
	RoleDeveloper     = "developer"
	RoleAdministrator = "administrator"
	RoleBoardMember   = "board_member"
	RoleManager       = "manager"
	RoleSME           = "sme"
	RoleUser          = "user"
)

var (
	ErrUnknownStage      = errors.New("unknown stage")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrTerminalStage     = errors.New("idea is in a terminal stage")
)

// sequence is the forward pipeline. archived sits outside it.
var sequence = []Stage{
	StageDraft,
	StageSubmitted,
	StageManagerReview,
	StageSMEReview,
	StageCollaboration,
	StageBoardReview,
	StageImplementation,
	StageCompleted,
}

var reviewerRoles = map[Stage]string{
	StageSubmitted:      RoleManager,
	StageManagerReview:  RoleManager,
	StageSMEReview:      RoleSME,
	StageCollaboration:  RoleManager,
	StageBoardReview:    RoleBoardMember,
	StageImplementation: RoleManager,
}

// Stages returns the forward pipeline followed by archived.
func Stages() []Stage {
	out := make([]Stage, 0, len(sequence)+1)
	out = append(out, sequence...)
	return append(out, StageArchived)
}

func Parse(s string) (Stage, error) {
	st := Stage(s)
	if st == StageArchived || st.position() >= 0 {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

func (s Stage) String() string { return string(s) }

func (s Stage) position() int {
	for i, st := range sequence {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s == StageArchived || s.position() >= 0
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageArchived
}

// IsReview reports whether the stage is worked by a designated reviewer.
func (s Stage) IsReview() bool {
	_, ok := reviewerRoles[s]
	return ok
}

// ReviewerRole is the role allowed to act on an idea in this stage, or "" for
// stages no reviewer acts on.
func (s Stage) ReviewerRole() string {
	return reviewerRoles[s]
}

// StagesForRole lists the review stages a role may act on.
func StagesForRole(role string) []Stage {
	if IsAdminRole(role) {
		out := make([]Stage, 0, len(reviewerRoles))
		for _, st := range sequence {
			if st.IsReview() {
				out = append(out, st)
			}
		}
		return out
	}
	var out []Stage
	for _, st := range sequence {
		if reviewerRoles[st] == role {
			out = append(out, st)
		}
	}
	return out
}

// Next returns the stage an approval moves to. When collaboration is
// disabled on the idea, sme_review skips over the collaboration stage.
func Next(from Stage, collaborationEnabled bool) (Stage, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, from)
	}
	if from.Terminal() {
		return "", ErrTerminalStage
	}
	next := sequence[from.position()+1]
	if next == StageCollaboration && !collaborationEnabled {
		next = StageBoardReview
	}
	return next, nil
}

// CanTransition reports whether moving from one stage to another keeps the
// pipeline moving forward. archived is reachable from any non-terminal stage.
func CanTransition(from, to Stage) error {
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStage, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStage, to)
	}
	if from.Terminal() {
		return ErrTerminalStage
	}
	if to == StageArchived {
		return nil
	}
	if to.position() <= from.position() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func IsAdminRole(role string) bool {
	return role == RoleAdministrator || role == RoleDeveloper
}

// CanReview reports whether any of the given roles may act on an idea in the
// given stage.
func CanReview(stage Stage, roles []string) bool {
	want := stage.ReviewerRole()
	if want == "" {
		return false
	}
	for _, r := range roles {
		if r == want || IsAdminRole(r) {
			return true
		}
	}
	return false
}
