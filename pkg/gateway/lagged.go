package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/streakline/pkg/types"
)

// pendingWrite hides a participant's latest writes until visibleAt.
// before is what readers see meanwhile; nil means "not created yet".
type pendingWrite struct {
	visibleAt time.Time
	before    *types.Participant
}

// Lagged wraps a Gateway so participant writes become readable only after
// delay. Writes are acknowledged immediately, like an eventually consistent
// remote store. All other operations pass through.
type Lagged struct {
	Gateway

	delay   time.Duration
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]*pendingWrite // by participant ID
}

// NewLagged wraps inner with the given visibility delay
func NewLagged(inner Gateway, delay time.Duration) *Lagged {
	return &Lagged{
		Gateway: inner,
		delay:   delay,
		now:     time.Now,
		pending: make(map[string]*pendingWrite),
	}
}

// SetClock overrides the clock used to decide visibility
func (l *Lagged) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Lagged) CreateParticipant(ctx context.Context, challengeID, userID string, selectedActivityIDs []string) (*types.Participant, error) {
	p, err := l.Gateway.CreateParticipant(ctx, challengeID, userID, selectedActivityIDs)
	if err != nil {
		return nil, err
	}
	l.hide(p.ID, nil)
	return p, nil
}

func (l *Lagged) UpdateParticipantLinks(ctx context.Context, participantID string, links map[string]string) error {
	return l.update(ctx, participantID, func() error {
		return l.Gateway.UpdateParticipantLinks(ctx, participantID, links)
	})
}

func (l *Lagged) UpdateParticipantSchedule(ctx context.Context, participantID string, times map[string]string) error {
	return l.update(ctx, participantID, func() error {
		return l.Gateway.UpdateParticipantSchedule(ctx, participantID, times)
	})
}

func (l *Lagged) update(ctx context.Context, participantID string, write func() error) error {
	current, err := l.Gateway.GetParticipantByID(ctx, participantID)
	if err != nil {
		return fmt.Errorf("update participant %s: %w", participantID, err)
	}
	if err := write(); err != nil {
		return err
	}
	l.hide(participantID, current)
	return nil
}

// hide records a write. If an earlier write is still hidden, readers keep
// seeing the oldest view until the newest write becomes visible.
func (l *Lagged) hide(participantID string, before *types.Participant) {
	l.mu.Lock()
	defer l.mu.Unlock()

	visibleAt := l.now().Add(l.delay)
	if p, ok := l.pending[participantID]; ok && l.now().Before(p.visibleAt) {
		p.visibleAt = visibleAt
		return
	}
	l.pending[participantID] = &pendingWrite{visibleAt: visibleAt, before: before.Clone()}
}

// view returns what a reader may currently see of p
func (l *Lagged) view(p *types.Participant) (*types.Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pw, ok := l.pending[p.ID]
	if !ok {
		return p, nil
	}
	if !l.now().Before(pw.visibleAt) {
		delete(l.pending, p.ID)
		return p, nil
	}
	if pw.before == nil {
		return nil, fmt.Errorf("participant %s: %w", p.ID, ErrNotFound)
	}
	return pw.before.Clone(), nil
}

func (l *Lagged) GetParticipant(ctx context.Context, challengeID, userID string) (*types.Participant, error) {
	p, err := l.Gateway.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}
	return l.view(p)
}

func (l *Lagged) GetParticipantByID(ctx context.Context, participantID string) (*types.Participant, error) {
	p, err := l.Gateway.GetParticipantByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return l.view(p)
}

func (l *Lagged) VerifyParticipantState(ctx context.Context, participantID string, expectedLinks map[string]string, expectedScheduleCount int) (bool, error) {
	p, err := l.GetParticipantByID(ctx, participantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return MatchesState(p, expectedLinks, expectedScheduleCount), nil
}
