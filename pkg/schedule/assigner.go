package schedule

import (
	"fmt"

	"github.com/cuemby/streakline/pkg/types"
)

// Assigner produces the reminder time of every selected activity.
// Linked activities inherit the linked habit's time. Unlinked activities use
// the time the user set, falling back to Default.
type Assigner struct {
	Default string
}

// NewAssigner returns an Assigner with the given default ("" means DefaultTime)
func NewAssigner(defaultTime string) (*Assigner, error) {
	if defaultTime == "" {
		defaultTime = DefaultTime
	}
	normalized, err := Normalize(defaultTime)
	if err != nil {
		return nil, fmt.Errorf("default time: %w", err)
	}
	return &Assigner{Default: normalized}, nil
}

// Assign returns activityID -> "HH:MM" for every selected activity.
//
// links must be final: a linked activity's time is derived from its habit and
// any user-entered time for it is ignored.
func (a *Assigner) Assign(selected []string, links map[string]string, habits []*types.Habit, userTimes map[string]string) (map[string]string, error) {
	byID := make(map[string]*types.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}

	out := make(map[string]string, len(selected))
	for _, activityID := range selected {
		if habitID, linked := links[activityID]; linked {
			habit, ok := byID[habitID]
			if !ok {
				return nil, fmt.Errorf("activity %s is linked to unknown habit %s", activityID, habitID)
			}
			out[activityID] = a.orDefault(habit.Time)
			continue
		}

		t, ok := userTimes[activityID]
		if !ok || t == "" {
			out[activityID] = a.Default
			continue
		}
		normalized, err := Normalize(t)
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", activityID, err)
		}
		out[activityID] = normalized
	}
	return out, nil
}

// orDefault normalizes a habit's time. Habits with no or malformed time get the default.
func (a *Assigner) orDefault(t string) string {
	if t == "" {
		return a.Default
	}
	normalized, err := Normalize(t)
	if err != nil {
		return a.Default
	}
	return normalized
}
