package completion

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []*events.Event
}

func (p *recordingPublisher) Publish(e *events.Event) {
	p.events = append(p.events, e)
}

func setup(t *testing.T, start *types.Day) (*Recorder, *storage.BoltStore, *recordingPublisher, string) {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateChallenge(&types.Challenge{
		ID:           "c1",
		DurationDays: 7,
		StartDate:    start,
		Activities: []*types.ChallengeActivity{
			{ID: "a1", Title: "Run"},
			{ID: "a2", Title: "Read"},
			{ID: "a3", Title: "Stretch"},
		},
	}))

	now := func() time.Time { return time.Date(2026, time.March, 3, 21, 0, 0, 0, time.UTC) }
	gw := gateway.NewStoreGateway(store, gateway.WithClock(now), gateway.WithLocation(time.UTC))
	p, err := gw.CreateParticipant(context.Background(), "c1", "u1", []string{"a1", "a2"})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return NewRecorder(gw, WithPublisher(pub), WithClock(now, time.UTC)), store, pub, p.ID
}

func TestRecordIsIdempotent(t *testing.T) {
	r, store, pub, pid := setup(t, nil)
	ctx := context.Background()

	outcome, err := r.RecordToday(ctx, pid, "a1")
	require.NoError(t, err)
	assert.Equal(t, Recorded, outcome)

	outcome, err = r.RecordToday(ctx, pid, "a1")
	require.NoError(t, err)
	assert.Equal(t, AlreadyRecorded, outcome)

	completions, err := store.ListCompletions(pid)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "2026-03-03", completions[0].Day.String())

	// only the first call announces a change
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.EventCompletionRecorded, pub.events[0].Type)
	assert.Equal(t, "a1", pub.events[0].Metadata["activity_id"])
}

func TestRecordSameActivityOnAnotherDay(t *testing.T) {
	r, store, _, pid := setup(t, nil)
	ctx := context.Background()

	_, err := r.Record(ctx, pid, "a1", types.NewDay(2026, time.March, 1))
	require.NoError(t, err)
	_, err = r.Record(ctx, pid, "a1", types.NewDay(2026, time.March, 2))
	require.NoError(t, err)

	completions, err := store.ListCompletions(pid)
	require.NoError(t, err)
	assert.Len(t, completions, 2)
}

func TestRecordRejectsUnselectedActivity(t *testing.T) {
	r, _, _, pid := setup(t, nil)

	_, err := r.RecordToday(context.Background(), pid, "a3")
	assert.ErrorIs(t, err, ErrNotSelected)
}

func TestRecordUnknownParticipant(t *testing.T) {
	r, _, _, _ := setup(t, nil)

	_, err := r.RecordToday(context.Background(), "nobody", "a1")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestRecordChallengeWindow(t *testing.T) {
	start := types.NewDay(2026, time.March, 1)
	r, _, _, pid := setup(t, &start)
	ctx := context.Background()

	tests := []struct {
		day     types.Day
		wantErr bool
	}{
		{day: types.NewDay(2026, time.February, 28), wantErr: true},
		{day: types.NewDay(2026, time.March, 1)},
		{day: types.NewDay(2026, time.March, 7)},
		{day: types.NewDay(2026, time.March, 8), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.day.String(), func(t *testing.T) {
			_, err := r.Record(ctx, pid, "a2", tt.day)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideWindow)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordRequiresDay(t *testing.T) {
	r, _, _, pid := setup(t, nil)

	_, err := r.Record(context.Background(), pid, "a1", types.Day{})
	assert.Error(t, err)
}
