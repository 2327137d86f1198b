package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/rs/zerolog"
)

// Outcome says whether a record call wrote anything
type Outcome string

const (
	Recorded        Outcome = "recorded"
	AlreadyRecorded Outcome = "duplicate"
)

var (
	// ErrNotSelected is returned for activities outside the participant's selection
	ErrNotSelected = errors.New("activity not selected by participant")

	// ErrOutsideWindow is returned for days outside the challenge window
	ErrOutsideWindow = errors.New("day outside challenge window")
)

// Recorder records completions. Recording the same (participant, activity,
// day) twice succeeds both times and stores one completion.
// There is no way to remove a completion.
type Recorder struct {
	gateway   gateway.Gateway
	publisher events.Publisher
	now       func() time.Time
	location  *time.Location
	logger    zerolog.Logger
}

// Option configures a Recorder
type Option func(*Recorder)

// WithPublisher sets where completion events go
func WithPublisher(p events.Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithClock sets the clock and location used for "today"
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(r *Recorder) {
		r.now = now
		r.location = loc
	}
}

// NewRecorder creates a recorder over gw
func NewRecorder(gw gateway.Gateway, opts ...Option) *Recorder {
	r := &Recorder{
		gateway:  gw,
		now:      time.Now,
		location: time.Local,
		logger:   log.WithComponent("completion"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the current day in the recorder's location
func (r *Recorder) Today() types.Day {
	return types.DayOf(r.now(), r.location)
}

// RecordToday records activityID as done today
func (r *Recorder) RecordToday(ctx context.Context, participantID, activityID string) (Outcome, error) {
	return r.Record(ctx, participantID, activityID, r.Today())
}

// Record records activityID as done on day
func (r *Recorder) Record(ctx context.Context, participantID, activityID string, day types.Day) (Outcome, error) {
	if day.IsZero() {
		return "", fmt.Errorf("record completion: day is required")
	}

	participant, err := r.gateway.GetParticipantByID(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("record completion: %w", err)
	}
	if !participant.HasActivity(activityID) {
		return "", fmt.Errorf("%w: %s", ErrNotSelected, activityID)
	}

	challenge, err := r.gateway.GetChallenge(ctx, participant.ChallengeID)
	if err != nil {
		return "", fmt.Errorf("record completion: %w", err)
	}
	if err := inWindow(challenge, day); err != nil {
		return "", err
	}

	created, err := r.gateway.RecordCompletion(ctx, participantID, activityID, day)
	if err != nil {
		return "", err
	}

	outcome := AlreadyRecorded
	if created {
		outcome = Recorded
	}
	metrics.CompletionsTotal.WithLabelValues(string(outcome)).Inc()

	r.logger.Debug().
		Str("participant_id", participantID).
		Str("activity_id", activityID).
		Str("day", day.String()).
		Str("outcome", string(outcome)).
		Msg("Completion recorded")

	if created && r.publisher != nil {
		r.publisher.Publish(events.New(events.EventCompletionRecorded, "completion recorded", map[string]string{
			"challenge_id":   participant.ChallengeID,
			"participant_id": participantID,
			"user_id":        participant.UserID,
			"activity_id":    activityID,
			"day":            day.String(),
		}))
	}
	return outcome, nil
}

func inWindow(challenge *types.Challenge, day types.Day) error {
	if challenge.StartDate == nil {
		return nil
	}
	if day.Before(*challenge.StartDate) {
		return fmt.Errorf("%w: %s is before %s", ErrOutsideWindow, day, challenge.StartDate)
	}
	if end, ok := challenge.EndDate(); ok && day.After(end) {
		return fmt.Errorf("%w: %s is after %s", ErrOutsideWindow, day, end)
	}
	return nil
}
