package linking

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/streakline/pkg/types"
)

var (
	// ErrUnknownActivity is returned for activities outside the selection
	ErrUnknownActivity = errors.New("activity not selected")

	// ErrUnknownHabit is returned for habits the user does not own
	ErrUnknownHabit = errors.New("habit not found")
)

// Resolver builds the proposed activityID -> habitID map for one enrollment.
// It has no side effects on the store; Links returns proposed state only.
//
// A habit can back at most one activity. Linking a habit that already backs
// another activity moves it, and Link reports the activity that lost it.
type Resolver struct {
	selected map[string]*types.ChallengeActivity
	order    []string
	habits   map[string]*types.Habit
	links    map[string]string // activityID -> habitID
	byHabit  map[string]string // habitID -> activityID
	explicit map[string]bool   // activities the user decided on
}

// NewResolver creates a resolver for the selected activities of a challenge
// and the user's existing habits.
func NewResolver(challenge *types.Challenge, selected []string, habits []*types.Habit) (*Resolver, error) {
	r := &Resolver{
		selected: make(map[string]*types.ChallengeActivity, len(selected)),
		habits:   make(map[string]*types.Habit, len(habits)),
		links:    make(map[string]string),
		byHabit:  make(map[string]string),
		explicit: make(map[string]bool),
	}

	for _, id := range selected {
		activity := challenge.Activity(id)
		if activity == nil {
			return nil, fmt.Errorf("%w: %s is not part of challenge %s", ErrUnknownActivity, id, challenge.ID)
		}
		if _, dup := r.selected[id]; dup {
			continue
		}
		r.selected[id] = activity
		r.order = append(r.order, id)
	}
	for _, h := range habits {
		r.habits[h.ID] = h
	}
	return r, nil
}

// Link maps activityID to habitID. If habitID was linked to a different
// activity, that mapping is removed and the displaced activity is returned.
func (r *Resolver) Link(activityID, habitID string) (displaced string, err error) {
	if _, ok := r.selected[activityID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	if _, ok := r.habits[habitID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownHabit, habitID)
	}

	if prev, ok := r.byHabit[habitID]; ok && prev != activityID {
		delete(r.links, prev)
		displaced = prev
	}
	if oldHabit, ok := r.links[activityID]; ok {
		delete(r.byHabit, oldHabit)
	}

	r.links[activityID] = habitID
	r.byHabit[habitID] = activityID
	r.explicit[activityID] = true
	return displaced, nil
}

// KeepAsNew clears any mapping for activityID so it is tracked as a new item
func (r *Resolver) KeepAsNew(activityID string) error {
	if _, ok := r.selected[activityID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActivity, activityID)
	}
	r.unlink(activityID)
	r.explicit[activityID] = true
	return nil
}

func (r *Resolver) unlink(activityID string) {
	if habitID, ok := r.links[activityID]; ok {
		delete(r.byHabit, habitID)
		delete(r.links, activityID)
	}
}

// Seed loads a previously proposed map, e.g. from a participant being resumed.
// Entries are applied in activity order with the same last-link-wins rule.
func (r *Resolver) Seed(links map[string]string) error {
	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := r.Link(id, links[id]); err != nil {
			return err
		}
	}
	return nil
}

// Suggest links every undecided, unlinked activity to a free habit with the
// same title (case-insensitive). It returns the activities it linked.
func (r *Resolver) Suggest() []string {
	byTitle := make(map[string][]string)
	for _, h := range r.habits {
		if _, taken := r.byHabit[h.ID]; taken {
			continue
		}
		key := normalizeTitle(h.Title)
		byTitle[key] = append(byTitle[key], h.ID)
	}
	for _, ids := range byTitle {
		sort.Strings(ids)
	}

	var linked []string
	for _, activityID := range r.order {
		if r.explicit[activityID] {
			continue
		}
		if _, ok := r.links[activityID]; ok {
			continue
		}
		key := normalizeTitle(r.selected[activityID].Title)
		candidates := byTitle[key]
		if len(candidates) == 0 {
			continue
		}
		habitID := candidates[0]
		byTitle[key] = candidates[1:]
		r.links[activityID] = habitID
		r.byHabit[habitID] = activityID
		linked = append(linked, activityID)
	}
	return linked
}

// LinkedTo returns the habit linked to activityID, if any
func (r *Resolver) LinkedTo(activityID string) (string, bool) {
	habitID, ok := r.links[activityID]
	return habitID, ok
}

// Links returns a copy of the proposed activityID -> habitID map
func (r *Resolver) Links() map[string]string {
	return types.CloneMap(r.links)
}

// Unlinked returns the selected activities with no link, in selection order
func (r *Resolver) Unlinked() []string {
	var out []string
	for _, id := range r.order {
		if _, ok := r.links[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
