package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StoreGateway implements Gateway directly on a storage.Store.
// Its writes are visible immediately; wrap it in Lagged to simulate delay.
type StoreGateway struct {
	store    storage.Store
	now      func() time.Time
	location *time.Location
	logger   zerolog.Logger
}

// Option configures a StoreGateway
type Option func(*StoreGateway)

// WithClock overrides the clock used for timestamps and "today"
func WithClock(now func() time.Time) Option {
	return func(g *StoreGateway) { g.now = now }
}

// WithLocation sets the location used to resolve "today"
func WithLocation(loc *time.Location) Option {
	return func(g *StoreGateway) { g.location = loc }
}

// NewStoreGateway creates a gateway over store
func NewStoreGateway(store storage.Store, opts ...Option) *StoreGateway {
	g := &StoreGateway{
		store:    store,
		now:      time.Now,
		location: time.Local,
		logger:   log.WithComponent("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *StoreGateway) GetChallenge(ctx context.Context, challengeID string) (*types.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.GetChallenge(challengeID)
}

func (g *StoreGateway) ListHabits(ctx context.Context, userID string) ([]*types.Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.ListHabitsByUser(userID)
}

func (g *StoreGateway) CreateParticipant(ctx context.Context, challengeID, userID string, selectedActivityIDs []string) (*types.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := g.store.GetChallenge(challengeID); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	now := g.now()
	participant := &types.Participant{
		ID:                  uuid.New().String(),
		ChallengeID:         challengeID,
		UserID:              userID,
		SelectedActivityIDs: append([]string(nil), selectedActivityIDs...),
		JoinedAt:            now,
		UpdatedAt:           now,
	}
	if err := g.store.CreateParticipant(participant); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}

	g.logger.Debug().
		Str("participant_id", participant.ID).
		Str("challenge_id", challengeID).
		Str("user_id", userID).
		Msg("participant created")
	return participant.Clone(), nil
}

func (g *StoreGateway) GetParticipant(ctx context.Context, challengeID, userID string) (*types.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.GetParticipantByChallengeUser(challengeID, userID)
}

func (g *StoreGateway) GetParticipantByID(ctx context.Context, participantID string) (*types.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.GetParticipant(participantID)
}

// UpdateParticipantLinks replaces the participant's whole link map. Every
// linked activity must be selected and every habit can back one activity.
func (g *StoreGateway) UpdateParticipantLinks(ctx context.Context, participantID string, links map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.store.UpdateParticipant(participantID, func(p *types.Participant) error {
		seen := make(map[string]string, len(links))
		for activityID, habitID := range links {
			if !p.HasActivity(activityID) {
				return fmt.Errorf("activity %s is not selected", activityID)
			}
			if other, dup := seen[habitID]; dup {
				return fmt.Errorf("habit %s linked to both %s and %s", habitID, other, activityID)
			}
			seen[habitID] = activityID
		}
		p.LinkedHabits = types.CloneMap(links)
		p.UpdatedAt = g.now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("update participant links: %w", err)
	}
	return nil
}

// UpdateParticipantSchedule replaces the participant's whole schedule map
func (g *StoreGateway) UpdateParticipantSchedule(ctx context.Context, participantID string, times map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.store.UpdateParticipant(participantID, func(p *types.Participant) error {
		for activityID := range times {
			if !p.HasActivity(activityID) {
				return fmt.Errorf("activity %s is not selected", activityID)
			}
		}
		p.ActivityTimes = types.CloneMap(times)
		p.UpdatedAt = g.now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("update participant schedule: %w", err)
	}
	return nil
}

func (g *StoreGateway) VerifyParticipantState(ctx context.Context, participantID string, expectedLinks map[string]string, expectedScheduleCount int) (bool, error) {
	p, err := g.GetParticipantByID(ctx, participantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return MatchesState(p, expectedLinks, expectedScheduleCount), nil
}

func (g *StoreGateway) CreateCalendarAction(ctx context.Context, userID, challengeID, activityID, title, time24h string) (*types.CalendarAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	action := &types.CalendarAction{
		ID:          uuid.New().String(),
		UserID:      userID,
		ChallengeID: challengeID,
		ActivityID:  activityID,
		Title:       title,
		Time:        time24h,
		CreatedAt:   g.now(),
	}
	if err := g.store.CreateCalendarAction(action); err != nil {
		return nil, fmt.Errorf("create calendar action: %w", err)
	}
	return action, nil
}

func (g *StoreGateway) ListCalendarActions(ctx context.Context, userID, challengeID string) ([]*types.CalendarAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.ListCalendarActions(userID, challengeID)
}

// RecordCompletion stores a completion and reports whether it was new.
// A repeat for the same (participant, activity, day) returns false, nil.
func (g *StoreGateway) RecordCompletion(ctx context.Context, participantID, activityID string, day types.Day) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	created, err := g.store.PutCompletion(&types.Completion{
		ID:            uuid.New().String(),
		ParticipantID: participantID,
		ActivityID:    activityID,
		Day:           day,
		CompletedAt:   g.now(),
	})
	if err != nil {
		return false, fmt.Errorf("record completion: %w", err)
	}
	return created, nil
}

func (g *StoreGateway) GetTodayCompletions(ctx context.Context, participantID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	today := types.DayOf(g.now(), g.location)
	completions, err := g.store.ListCompletionsOn(participantID, today)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(completions))
	for _, c := range completions {
		ids = append(ids, c.ActivityID)
	}
	return ids, nil
}

func (g *StoreGateway) GetLeaderboard(ctx context.Context, challengeID string) ([]*types.ParticipantSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.Leaderboard(challengeID)
}
