package gamification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context carries the facts an award key is built from. Only the fields an
// action needs are read.
type Context struct {
	IdeaID      uuid.UUID
	ChallengeID uuid.UUID
	Stage       string
	RefID       uuid.UUID
	At          time.Time
}

// Award is a resolved ledger entry, ready to be written.
type Award struct {
	UserID      uuid.UUID
	Action      Action
	Points      int
	Category    string
	Description string
	DedupKey    string
}

// Resolve maps (user, action, context) to points and a dedup key.
func (p *Policy) Resolve(userID uuid.UUID, action Action, ctx Context) (Award, error) {
	rule, err := p.Rule(action)
	if err != nil {
		return Award{}, err
	}
	key, err := DedupKey(userID, action, ctx)
	if err != nil {
		return Award{}, err
	}
	return Award{
		UserID:      userID,
		Action:      action,
		Points:      rule.Points,
		Category:    rule.Category,
		Description: rule.Description,
		DedupKey:    key,
	}, nil
}

// DedupKey builds the idempotence key for an award. Two awards with the same
// key are the same award.
func DedupKey(userID uuid.UUID, action Action, ctx Context) (string, error) {
	parts := []string{string(action), userID.String()}
	switch action {
	case ActionAccountCreation:
	case ActionDailyLogin:
		if ctx.At.IsZero() {
			return "", fmt.Errorf("%s: missing date", action)
		}
		parts = append(parts, ctx.At.Format("2006-01-02"))
	case ActionIdeaSubmission, ActionIdeaApproved, ActionIdeaImplemented:
		if ctx.IdeaID == uuid.Nil {
			return "", fmt.Errorf("%s: missing idea", action)
		}
		parts = append(parts, ctx.IdeaID.String())
	case ActionReviewCompleted, ActionFirstHalfReviewerBonus:
		if ctx.IdeaID == uuid.Nil || ctx.Stage == "" {
			return "", fmt.Errorf("%s: missing idea or stage", action)
		}
		parts = append(parts, ctx.IdeaID.String(), ctx.Stage)
	case ActionCollaborationContribution:
		if ctx.RefID == uuid.Nil {
			return "", fmt.Errorf("%s: missing contribution", action)
		}
		parts = append(parts, ctx.RefID.String())
	case ActionChallengeParticipation:
		if ctx.ChallengeID == uuid.Nil {
			return "", fmt.Errorf("%s: missing challenge", action)
		}
		parts = append(parts, ctx.ChallengeID.String())
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return strings.Join(parts, ":"), nil
}
