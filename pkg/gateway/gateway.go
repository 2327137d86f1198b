package gateway

import (
	"context"

	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
)

var (
	// ErrNotFound is returned when a record is not (yet) visible
	ErrNotFound = storage.ErrNotFound

	// ErrAlreadyExists is returned when creating a participant that exists
	ErrAlreadyExists = storage.ErrAlreadyExists
)

// Gateway is the engine's view of the remote store. Writes acknowledged by a
// Gateway are not guaranteed to be visible to an immediately following read.
type Gateway interface {
	GetChallenge(ctx context.Context, challengeID string) (*types.Challenge, error)
	ListHabits(ctx context.Context, userID string) ([]*types.Habit, error)

	// Participants
	CreateParticipant(ctx context.Context, challengeID, userID string, selectedActivityIDs []string) (*types.Participant, error)
	GetParticipant(ctx context.Context, challengeID, userID string) (*types.Participant, error)
	GetParticipantByID(ctx context.Context, participantID string) (*types.Participant, error)
	UpdateParticipantLinks(ctx context.Context, participantID string, links map[string]string) error
	UpdateParticipantSchedule(ctx context.Context, participantID string, times map[string]string) error
	VerifyParticipantState(ctx context.Context, participantID string, expectedLinks map[string]string, expectedScheduleCount int) (bool, error)

	// Calendar actions
	CreateCalendarAction(ctx context.Context, userID, challengeID, activityID, title, time24h string) (*types.CalendarAction, error)
	ListCalendarActions(ctx context.Context, userID, challengeID string) ([]*types.CalendarAction, error)

	// Completions and standings
	RecordCompletion(ctx context.Context, participantID, activityID string, day types.Day) (bool, error)
	GetTodayCompletions(ctx context.Context, participantID string) ([]string, error)
	GetLeaderboard(ctx context.Context, challengeID string) ([]*types.ParticipantSummary, error)
}

// MatchesState reports whether p holds exactly expectedLinks and exactly
// expectedScheduleCount schedule entries, all for selected activities.
func MatchesState(p *types.Participant, expectedLinks map[string]string, expectedScheduleCount int) bool {
	if p == nil {
		return false
	}
	if !EqualMaps(p.LinkedHabits, expectedLinks) {
		return false
	}
	if len(p.ActivityTimes) != expectedScheduleCount {
		return false
	}
	for activityID := range p.ActivityTimes {
		if !p.HasActivity(activityID) {
			return false
		}
	}
	return true
}

// EqualMaps compares two string maps; nil and empty are equal
func EqualMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
