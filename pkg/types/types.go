package types

import (
	"fmt"
	"time"
)

// ChallengeScope defines who can see and join a challenge
type ChallengeScope string

const (
	ChallengeScopeGlobal ChallengeScope = "global"
	ChallengeScopeCircle ChallengeScope = "circle"
)

// DefaultRequiredDaily is used when a challenge does not set RequiredDaily
const DefaultRequiredDaily = 3

// Challenge is a group challenge users can join. Challenges are created by an
// administrative path and never mutated afterwards.
type Challenge struct {
	ID               string               `json:"id" yaml:"id"`
	Name             string               `json:"name" yaml:"name"`
	Description      string               `json:"description,omitempty" yaml:"description,omitempty"`
	Scope            ChallengeScope       `json:"scope" yaml:"scope"`
	CircleID         string               `json:"circle_id,omitempty" yaml:"circleId,omitempty"`
	DurationDays     int                  `json:"duration_days" yaml:"durationDays"`
	SuccessThreshold int                  `json:"success_threshold" yaml:"successThreshold"` // Percentage
	Activities       []*ChallengeActivity `json:"activities" yaml:"activities"`
	MinActivities    int                  `json:"min_activities" yaml:"minActivities"`
	MaxActivities    int                  `json:"max_activities" yaml:"maxActivities"`
	RequiredDaily    int                  `json:"required_daily,omitempty" yaml:"requiredDaily,omitempty"`
	StartDate        *Day                 `json:"start_date,omitempty" yaml:"startDate,omitempty"`
	CreatedAt        time.Time            `json:"created_at" yaml:"-"`
}

// ChallengeActivity is a template activity belonging to exactly one challenge
type ChallengeActivity struct {
	ID                 string    `json:"id" yaml:"id"`
	Title              string    `json:"title" yaml:"title"`
	Icon               string    `json:"icon,omitempty" yaml:"icon,omitempty"`
	Frequency          string    `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	DayRange           *DayRange `json:"day_range,omitempty" yaml:"dayRange,omitempty"`
	MinDurationMinutes int       `json:"min_duration_minutes,omitempty" yaml:"minDurationMinutes,omitempty"`
}

// DayRange restricts an activity to challenge days [Start, End], 1-based
type DayRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Activity returns the activity with the given ID, or nil
func (c *Challenge) Activity(id string) *ChallengeActivity {
	for _, a := range c.Activities {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// DailyTarget returns the number of completions per day that count as 100%
func (c *Challenge) DailyTarget() int {
	if c.RequiredDaily <= 0 {
		return DefaultRequiredDaily
	}
	return c.RequiredDaily
}

// EndDate returns the last day of the challenge window, if it has a start date
func (c *Challenge) EndDate() (Day, bool) {
	if c.StartDate == nil || c.DurationDays <= 0 {
		return Day{}, false
	}
	return c.StartDate.AddDays(c.DurationDays - 1), true
}

// Validate checks a challenge definition before it is stored
func (c *Challenge) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("challenge id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("challenge %s: name is required", c.ID)
	}
	switch c.Scope {
	case ChallengeScopeGlobal:
	case ChallengeScopeCircle:
		if c.CircleID == "" {
			return fmt.Errorf("challenge %s: circle scope requires a circle id", c.ID)
		}
	default:
		return fmt.Errorf("challenge %s: unknown scope %q", c.ID, c.Scope)
	}
	if c.DurationDays <= 0 {
		return fmt.Errorf("challenge %s: duration must be positive", c.ID)
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 100 {
		return fmt.Errorf("challenge %s: success threshold must be a percentage", c.ID)
	}
	if len(c.Activities) == 0 {
		return fmt.Errorf("challenge %s: at least one activity is required", c.ID)
	}

	seen := make(map[string]bool, len(c.Activities))
	for _, a := range c.Activities {
		if a == nil || a.ID == "" || a.Title == "" {
			return fmt.Errorf("challenge %s: every activity needs an id and a title", c.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("challenge %s: duplicate activity %s", c.ID, a.ID)
		}
		seen[a.ID] = true
	}

	if c.MinActivities < 0 || c.MaxActivities < 0 || c.RequiredDaily < 0 {
		return fmt.Errorf("challenge %s: activity bounds must not be negative", c.ID)
	}
	if c.MaxActivities > len(c.Activities) {
		return fmt.Errorf("challenge %s: max activities %d exceeds %d activities", c.ID, c.MaxActivities, len(c.Activities))
	}
	if c.MaxActivities > 0 && c.MinActivities > c.MaxActivities {
		return fmt.Errorf("challenge %s: min activities %d exceeds max %d", c.ID, c.MinActivities, c.MaxActivities)
	}
	return nil
}

// Habit is a personal, non-challenge daily item owned by a user
type Habit struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"userId"`
	Title     string    `json:"title" yaml:"title"`
	Icon      string    `json:"icon,omitempty" yaml:"icon,omitempty"`
	Time      string    `json:"time,omitempty" yaml:"time,omitempty"` // "HH:MM", empty if unscheduled
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Participant is a user's enrollment record in one challenge
type Participant struct {
	ID                  string            `json:"id"`
	ChallengeID         string            `json:"challenge_id"`
	UserID              string            `json:"user_id"`
	SelectedActivityIDs []string          `json:"selected_activity_ids"`
	LinkedHabits        map[string]string `json:"linked_habits,omitempty"`  // activityID -> habitID
	ActivityTimes       map[string]string `json:"activity_times,omitempty"` // activityID -> "HH:MM"
	JoinedAt            time.Time         `json:"joined_at"`
	UpdatedAt           time.Time         `json:"updated_at"`

	// Derived, written back by the reconciler
	TotalCompletions     int     `json:"total_completions"`
	CurrentStreak        int     `json:"current_streak"`
	LongestStreak        int     `json:"longest_streak"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// HasActivity reports whether the activity is part of the participant's selection
func (p *Participant) HasActivity(activityID string) bool {
	for _, id := range p.SelectedActivityIDs {
		if id == activityID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the participant
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	c := *p
	c.SelectedActivityIDs = append([]string(nil), p.SelectedActivityIDs...)
	c.LinkedHabits = CloneMap(p.LinkedHabits)
	c.ActivityTimes = CloneMap(p.ActivityTimes)
	return &c
}

// CalendarAction is a standalone daily item materialized for an unlinked
// challenge activity
type CalendarAction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	ActivityID  string    `json:"activity_id"`
	Title       string    `json:"title"`
	Time        string    `json:"time"` // "HH:MM:SS"
	CreatedAt   time.Time `json:"created_at"`
}

// Completion records that an activity was done on a given day.
// At most one exists per (participant, activity, day).
type Completion struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	ActivityID    string    `json:"activity_id"`
	Day           Day       `json:"day"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Key returns the idempotency key of the completion
func (c *Completion) Key() string {
	return CompletionKey(c.ParticipantID, c.ActivityID, c.Day)
}

// CompletionKey builds the unique key for a (participant, activity, day) tuple
func CompletionKey(participantID, activityID string, day Day) string {
	return fmt.Sprintf("%s/%s/%s", participantID, activityID, day)
}

// ParticipantSummary is one row of a challenge leaderboard
type ParticipantSummary struct {
	ParticipantID        string    `json:"participant_id"`
	UserID               string    `json:"user_id"`
	TotalCompletions     int       `json:"total_completions"`
	CurrentStreak        int       `json:"current_streak"`
	CompletionPercentage float64   `json:"completion_percentage"`
	JoinedAt             time.Time `json:"joined_at"`
}

// Summary projects a participant onto a leaderboard row
func (p *Participant) Summary() *ParticipantSummary {
	return &ParticipantSummary{
		ParticipantID:        p.ID,
		UserID:               p.UserID,
		TotalCompletions:     p.TotalCompletions,
		CurrentStreak:        p.CurrentStreak,
		CompletionPercentage: p.CompletionPercentage,
		JoinedAt:             p.JoinedAt,
	}
}

// CloneMap copies a string map. A nil map stays nil.
func CloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
