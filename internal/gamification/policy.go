// Package gamification maps portal actions to point awards. It decides how
// many points an action is worth, which dedup key makes the award idempotent,
// and which achievements a set of category totals unlocks. It does no I/O
// besides loading the policy file.
package gamification

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Action string

const (
	ActionAccountCreation           Action = "account_creation"
	ActionDailyLogin                Action = "daily_login"
	ActionIdeaSubmission            Action = "idea_submission"
	ActionReviewCompleted           Action = "review_completed"
	ActionFirstHalfReviewerBonus    Action = "first_half_reviewer_bonus"
	ActionIdeaApproved              Action = "idea_approved"
	ActionIdeaImplemented           Action = "idea_implemented"
	ActionCollaborationContribution Action = "collaboration_contribution"
	ActionChallengeParticipation    Action = "challenge_participation"
)

var ErrUnknownAction = errors.New("unknown gamification action")

type ActionRule struct {
	Points      int    `yaml:"points"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

type Achievement struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Threshold   int    `yaml:"threshold"`
	Description string `yaml:"description"`
}

type Policy struct {
	Actions      map[Action]ActionRule `yaml:"actions"`
	Achievements []Achievement         `yaml:"achievements"`
	// ReviewWindow is how long a reviewer has per stage. Reviews landing in
	// the first half earn the reviewer bonus.
	ReviewWindow time.Duration `yaml:"review_window"`
}

// DefaultPolicy is used when no policy file is present.
func DefaultPolicy() *Policy {
	return &Policy{
		Actions: map[Action]ActionRule{
			ActionAccountCreation:           {Points: 50, Category: "engagement", Description: "Joined KeNHAVATE"},
			ActionDailyLogin:                {Points: 5, Category: "engagement", Description: "Daily login"},
			ActionIdeaSubmission:            {Points: 50, Category: "innovation", Description: "Submitted an idea"},
			ActionReviewCompleted:           {Points: 25, Category: "review", Description: "Completed a review"},
			ActionFirstHalfReviewerBonus:    {Points: 10, Category: "review", Description: "Reviewed within the first half of the review window"},
			ActionIdeaApproved:              {Points: 100, Category: "innovation", Description: "Idea approved for implementation"},
			ActionIdeaImplemented:           {Points: 200, Category: "innovation", Description: "Idea implemented"},
			ActionCollaborationContribution: {Points: 20, Category: "collaboration", Description: "Contributed to an idea"},
			ActionChallengeParticipation:    {Points: 30, Category: "challenge", Description: "Took part in a challenge"},
		},
		Achievements: []Achievement{
			{Code: "first_spark", Name: "First Spark", Category: "innovation", Threshold: 50, Description: "Submit your first idea"},
			{Code: "road_builder", Name: "Road Builder", Category: "innovation", Threshold: 500, Description: "Earn 500 innovation points"},
			{Code: "highway_visionary", Name: "Highway Visionary", Category: "innovation", Threshold: 2000, Description: "Earn 2000 innovation points"},
			{Code: "fresh_eyes", Name: "Fresh Eyes", Category: "review", Threshold: 25, Description: "Complete your first review"},
			{Code: "sharp_reviewer", Name: "Sharp Reviewer", Category: "review", Threshold: 350, Description: "Earn 350 review points"},
			{Code: "team_player", Name: "Team Player", Category: "collaboration", Threshold: 100, Description: "Earn 100 collaboration points"},
			{Code: "regular", Name: "Regular", Category: "engagement", Threshold: 100, Description: "Earn 100 engagement points"},
			{Code: "challenger", Name: "Challenger", Category: "challenge", Threshold: 90, Description: "Take part in three challenges"},
		},
		ReviewWindow: 72 * time.Hour,
	}
}

// LoadPolicy reads a YAML policy file. A missing file yields DefaultPolicy.
// Actions omitted from the file keep their default rule.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gamification policy: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gamification policy: %w", err)
	}

	p := DefaultPolicy()
	for action, rule := range file.Actions {
		if rule.Points < 0 {
			return nil, fmt.Errorf("action %s: points must not be negative", action)
		}
		p.Actions[action] = rule
	}
	if len(file.Achievements) > 0 {
		p.Achievements = file.Achievements
	}
	if file.ReviewWindow > 0 {
		p.ReviewWindow = file.ReviewWindow
	}
	return p, nil
}

func (p *Policy) Rule(action Action) (ActionRule, error) {
	rule, ok := p.Actions[action]
	if !ok {
		return ActionRule{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return rule, nil
}

// CategoryActions lists the actions counted towards a category.
func (p *Policy) CategoryActions(category string) []Action {
	var out []Action
	for action, rule := range p.Actions {
		if rule.Category == category {
			out = append(out, action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Unlocked returns the achievements whose thresholds are met by the given
// category totals and are not in the already-unlocked set.
func (p *Policy) Unlocked(totals map[string]int, have map[string]bool) []Achievement {
	var out []Achievement
	for _, a := range p.Achievements {
		if have[a.Code] {
			continue
		}
		if totals[a.Category] >= a.Threshold {
			out = append(out, a)
		}
	}
	return out
}

// InFirstHalf reports whether a review made at reviewedAt, on a stage entered
// at enteredAt, lands in the first half of the review window.
func (p *Policy) InFirstHalf(enteredAt, reviewedAt time.Time) bool {
	if enteredAt.IsZero() || p.ReviewWindow <= 0 {
		return false
	}
	return reviewedAt.Sub(enteredAt) <= p.ReviewWindow/2
}
