package storage

import (
	"errors"

	"github.com/cuemby/streakline/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("already exists")
)

// Store defines the interface for challenge state storage.
// It is implemented by BoltDB-backed storage.
type Store interface {
	// Challenges
	CreateChallenge(challenge *types.Challenge) error
	GetChallenge(id string) (*types.Challenge, error)
	ListChallenges() ([]*types.Challenge, error)

	// Habits
	CreateHabit(habit *types.Habit) error
	GetHabit(id string) (*types.Habit, error)
	ListHabitsByUser(userID string) ([]*types.Habit, error)

	// Participants
	CreateParticipant(participant *types.Participant) error
	GetParticipant(id string) (*types.Participant, error)
	GetParticipantByChallengeUser(challengeID, userID string) (*types.Participant, error)
	ListParticipants() ([]*types.Participant, error)
	ListParticipantsByChallenge(challengeID string) ([]*types.Participant, error)
	UpdateParticipant(id string, mutate func(*types.Participant) error) (*types.Participant, error)

	// Calendar actions
	CreateCalendarAction(action *types.CalendarAction) error
	ListCalendarActions(userID, challengeID string) ([]*types.CalendarAction, error)

	// Completions
	PutCompletion(completion *types.Completion) (bool, error)
	ListCompletions(participantID string) ([]*types.Completion, error)
	ListCompletionsOn(participantID string, day types.Day) ([]*types.Completion, error)

	// Leaderboard returns the challenge's participants in rank order
	Leaderboard(challengeID string) ([]*types.ParticipantSummary, error)

	// Utility
	Close() error
}
