package enrollment

import (
	"fmt"

	"github.com/cuemby/streakline/pkg/linking"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/types"
)

// Plan is a fully resolved enrollment: what to select, what to link, and when
// each selected activity is scheduled. Times cover every selected activity.
type Plan struct {
	ChallengeID         string            `json:"challenge_id"`
	UserID              string            `json:"user_id"`
	SelectedActivityIDs []string          `json:"selected_activity_ids"`
	Links               map[string]string `json:"links,omitempty"` // activityID -> habitID
	Times               map[string]string `json:"times"`           // activityID -> "HH:MM"
}

// Unlinked returns the selected activities with no link, in selection order.
// These are the activities that get a calendar action.
func (p Plan) Unlinked() []string {
	var out []string
	for _, id := range p.SelectedActivityIDs {
		if _, linked := p.Links[id]; !linked {
			out = append(out, id)
		}
	}
	return out
}

func (p Plan) selected(activityID string) bool {
	for _, id := range p.SelectedActivityIDs {
		if id == activityID {
			return true
		}
	}
	return false
}

// Validate checks the plan against the challenge and the user's habits. It
// runs before anything is written, so a rejected plan leaves no trace.
func (p Plan) Validate(challenge *types.Challenge, habits []*types.Habit) error {
	if p.ChallengeID == "" || p.UserID == "" {
		return fmt.Errorf("%w: challenge and user are required", ErrInvalidPlan)
	}
	if challenge == nil || challenge.ID != p.ChallengeID {
		return fmt.Errorf("%w: plan is for challenge %s", ErrInvalidPlan, p.ChallengeID)
	}

	n := len(p.SelectedActivityIDs)
	if n == 0 {
		return fmt.Errorf("%w: no activities selected", ErrInvalidPlan)
	}
	if challenge.MinActivities > 0 && n < challenge.MinActivities {
		return fmt.Errorf("%w: %d activities selected, challenge requires at least %d", ErrInvalidPlan, n, challenge.MinActivities)
	}
	if challenge.MaxActivities > 0 && n > challenge.MaxActivities {
		return fmt.Errorf("%w: %d activities selected, challenge allows at most %d", ErrInvalidPlan, n, challenge.MaxActivities)
	}

	seen := make(map[string]bool, n)
	for _, id := range p.SelectedActivityIDs {
		if challenge.Activity(id) == nil {
			return fmt.Errorf("%w: activity %s is not part of challenge %s", ErrInvalidPlan, id, challenge.ID)
		}
		if seen[id] {
			return fmt.Errorf("%w: activity %s selected twice", ErrInvalidPlan, id)
		}
		seen[id] = true
	}

	owned := make(map[string]*types.Habit, len(habits))
	for _, h := range habits {
		if h.UserID == p.UserID {
			owned[h.ID] = h
		}
	}
	linkedBy := make(map[string]string, len(p.Links))
	for activityID, habitID := range p.Links {
		if !seen[activityID] {
			return fmt.Errorf("%w: link for unselected activity %s", ErrInvalidPlan, activityID)
		}
		if owned[habitID] == nil {
			return fmt.Errorf("%w: habit %s does not belong to user %s", ErrInvalidPlan, habitID, p.UserID)
		}
		if other, dup := linkedBy[habitID]; dup {
			return fmt.Errorf("%w: habit %s linked to both %s and %s", ErrInvalidPlan, habitID, other, activityID)
		}
		linkedBy[habitID] = activityID
	}

	if len(p.Times) != n {
		return fmt.Errorf("%w: %d schedule entries for %d activities", ErrInvalidPlan, len(p.Times), n)
	}
	for activityID, t := range p.Times {
		if !seen[activityID] {
			return fmt.Errorf("%w: schedule entry for unselected activity %s", ErrInvalidPlan, activityID)
		}
		normalized, err := schedule.Normalize(t)
		if err != nil {
			return fmt.Errorf("%w: activity %s: %v", ErrInvalidPlan, activityID, err)
		}
		// A linked activity runs at its habit's time. Habits without one get
		// the assigner's default, which is configured outside the plan.
		if habitID, linked := p.Links[activityID]; linked {
			habitTime, err := schedule.Normalize(owned[habitID].Time)
			if owned[habitID].Time != "" && err == nil && habitTime != normalized {
				return fmt.Errorf("%w: activity %s is linked to habit %s at %s, not %s", ErrInvalidPlan, activityID, habitID, habitTime, normalized)
			}
		}
	}
	return nil
}

// LinkChoice is one user decision in the linking step. An empty HabitID means
// "keep as new".
type LinkChoice struct {
	ActivityID string `json:"activity_id"`
	HabitID    string `json:"habit_id,omitempty"`
}

// Choices are the raw answers of the join flow
type Choices struct {
	SelectedActivityIDs []string `json:"selected_activity_ids"`

	// Links are applied in order. Linking a habit that already backs another
	// activity moves it to the later one.
	Links []LinkChoice `json:"links,omitempty"`

	// SuggestLinks links undecided activities to habits with the same title
	SuggestLinks bool `json:"suggest_links,omitempty"`

	// Times are user-set times for new activities, "HH:MM" or "H:MM AM"
	Times map[string]string `json:"times,omitempty"`
}

// Compose resolves choices into a Plan: links first, then times derived from
// the final links. The result still needs Validate.
func Compose(challenge *types.Challenge, userID string, choices Choices, habits []*types.Habit, assigner *schedule.Assigner) (Plan, error) {
	resolver, err := linking.NewResolver(challenge, choices.SelectedActivityIDs, habits)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	for _, choice := range choices.Links {
		if choice.HabitID == "" {
			err = resolver.KeepAsNew(choice.ActivityID)
		} else {
			_, err = resolver.Link(choice.ActivityID, choice.HabitID)
		}
		if err != nil {
			return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	}
	if choices.SuggestLinks {
		resolver.Suggest()
	}

	links := resolver.Links()
	times, err := assigner.Assign(choices.SelectedActivityIDs, links, habits, choices.Times)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	return Plan{
		ChallengeID:         challenge.ID,
		UserID:              userID,
		SelectedActivityIDs: append([]string(nil), choices.SelectedActivityIDs...),
		Links:               links,
		Times:               times,
	}, nil
}
