package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var errBoom = errors.New("boom")

type fixture struct {
	store     *storage.BoltStore
	gw        *gateway.StoreGateway
	challenge *types.Challenge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	challenge := &types.Challenge{
		ID:            "c1",
		Name:          "Reset",
		Scope:         types.ChallengeScopeGlobal,
		DurationDays:  30,
		MinActivities: 2,
		MaxActivities: 4,
		RequiredDaily: 3,
		Activities: []*types.ChallengeActivity{
			{ID: "a1", Title: "Morning run"},
			{ID: "a2", Title: "Read"},
			{ID: "a3", Title: "Meditate"},
			{ID: "a4", Title: "Journal"},
		},
	}
	require.NoError(t, store.CreateChallenge(challenge))
	require.NoError(t, store.CreateHabit(&types.Habit{ID: "h1", UserID: "u1", Title: "Run", Time: "07:00"}))
	require.NoError(t, store.CreateHabit(&types.Habit{ID: "h2", UserID: "u1", Title: "read"}))
	require.NoError(t, store.CreateHabit(&types.Habit{ID: "hx", UserID: "u2", Title: "Someone else"}))

	return &fixture{
		store:     store,
		gw:        gateway.NewStoreGateway(store, gateway.WithLocation(time.UTC)),
		challenge: challenge,
	}
}

// scenarioPlan selects a1..a3, links a1 to h1 and sets times on the others
func scenarioPlan(t *testing.T, f *fixture) Plan {
	t.Helper()
	habits, err := f.store.ListHabitsByUser("u1")
	require.NoError(t, err)
	assigner, err := schedule.NewAssigner("")
	require.NoError(t, err)

	plan, err := Compose(f.challenge, "u1", Choices{
		SelectedActivityIDs: []string{"a1", "a2", "a3"},
		Links:               []LinkChoice{{ActivityID: "a1", HabitID: "h1"}},
		Times:               map[string]string{"a2": "08:00", "a3": "12:30 PM"},
	}, habits, assigner)
	require.NoError(t, err)
	return plan
}

func fastPoller() Poller {
	return Poller{Attempts: 10, Interval: 5 * time.Millisecond}
}

func newTestCoordinator(gw gateway.Gateway, opts ...Option) *Coordinator {
	base := []Option{WithPoller(fastPoller()), WithActionRate(rate.Inf, 1)}
	return NewCoordinator(gw, append(base, opts...)...)
}

// faultyGateway wraps a real gateway and lets tests override single calls
type faultyGateway struct {
	gateway.Gateway

	mu    sync.Mutex
	calls map[string]int

	createParticipant func() error
	getParticipant    func(p *types.Participant, err error) (*types.Participant, error)
	getByID           func(p *types.Participant, err error) (*types.Participant, error)
	updateLinks       func() error
	updateSchedule    func() error
	verify            func() (bool, error)
	createAction      func(activityID string) error
	listActions       func() error
}

func newFaulty(inner gateway.Gateway) *faultyGateway {
	return &faultyGateway{Gateway: inner, calls: make(map[string]int)}
}

func (g *faultyGateway) count(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
}

func (g *faultyGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *faultyGateway) CreateParticipant(ctx context.Context, challengeID, userID string, selected []string) (*types.Participant, error) {
	g.count("createParticipant")
	if g.createParticipant != nil {
		if err := g.createParticipant(); err != nil {
			return nil, err
		}
	}
	return g.Gateway.CreateParticipant(ctx, challengeID, userID, selected)
}

func (g *faultyGateway) GetParticipant(ctx context.Context, challengeID, userID string) (*types.Participant, error) {
	g.count("getParticipant")
	p, err := g.Gateway.GetParticipant(ctx, challengeID, userID)
	if g.getParticipant != nil {
		return g.getParticipant(p, err)
	}
	return p, err
}

func (g *faultyGateway) GetParticipantByID(ctx context.Context, participantID string) (*types.Participant, error) {
	g.count("getParticipantByID")
	p, err := g.Gateway.GetParticipantByID(ctx, participantID)
	if g.getByID != nil {
		return g.getByID(p, err)
	}
	return p, err
}

func (g *faultyGateway) UpdateParticipantLinks(ctx context.Context, participantID string, links map[string]string) error {
	g.count("updateParticipantLinks")
	if g.updateLinks != nil {
		if err := g.updateLinks(); err != nil {
			return err
		}
	}
	return g.Gateway.UpdateParticipantLinks(ctx, participantID, links)
}

func (g *faultyGateway) UpdateParticipantSchedule(ctx context.Context, participantID string, times map[string]string) error {
	g.count("updateParticipantSchedule")
	if g.updateSchedule != nil {
		if err := g.updateSchedule(); err != nil {
			return err
		}
	}
	return g.Gateway.UpdateParticipantSchedule(ctx, participantID, times)
}

func (g *faultyGateway) VerifyParticipantState(ctx context.Context, participantID string, links map[string]string, count int) (bool, error) {
	g.count("verifyParticipantState")
	if g.verify != nil {
		return g.verify()
	}
	return g.Gateway.VerifyParticipantState(ctx, participantID, links, count)
}

func (g *faultyGateway) CreateCalendarAction(ctx context.Context, userID, challengeID, activityID, title, time24h string) (*types.CalendarAction, error) {
	g.count("createCalendarAction")
	if g.createAction != nil {
		if err := g.createAction(activityID); err != nil {
			return nil, err
		}
	}
	return g.Gateway.CreateCalendarAction(ctx, userID, challengeID, activityID, title, time24h)
}

func (g *faultyGateway) ListCalendarActions(ctx context.Context, userID, challengeID string) ([]*types.CalendarAction, error) {
	g.count("listCalendarActions")
	if g.listActions != nil {
		if err := g.listActions(); err != nil {
			return nil, err
		}
	}
	return g.Gateway.ListCalendarActions(ctx, userID, challengeID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(e *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
