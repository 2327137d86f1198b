package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/streakline/pkg/api"
	"github.com/cuemby/streakline/pkg/client"
	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/config"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLocalBackend opens an engine over a temp store seeded with one open
// ended challenge
func newLocalBackend(t *testing.T) *localBackend {
	t.Helper()

	loaded := config.Default()
	loaded.DataDir = t.TempDir()
	loaded.Timezone = "UTC"
	loaded.Enrollment.PollInterval = 5 * time.Millisecond
	cfg = loaded

	eng, err := openEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.store.CreateChallenge(&types.Challenge{
		ID:            "open",
		Name:          "Open",
		Scope:         types.ChallengeScopeGlobal,
		DurationDays:  30,
		MinActivities: 1,
		RequiredDaily: 2,
		Activities: []*types.ChallengeActivity{
			{ID: "a1", Title: "Walk"},
			{ID: "a2", Title: "Read"},
		},
	}))
	return &localBackend{engine: eng}
}

func TestLocalBackend(t *testing.T) {
	b := newLocalBackend(t)
	ctx := context.Background()

	result, err := b.Enroll(ctx, "open", "u1", enrollment.Choices{SelectedActivityIDs: []string{"a1", "a2"}})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StateCommitted, result.State)

	outcome, day, err := b.Complete(ctx, "open", "u1", "a1", types.Day{})
	require.NoError(t, err)
	assert.Equal(t, completion.Recorded, outcome)
	assert.False(t, day.IsZero())

	outcome, _, err = b.Complete(ctx, "open", "u1", "a1", day)
	require.NoError(t, err)
	assert.Equal(t, completion.AlreadyRecorded, outcome)

	standing, err := b.Standing(ctx, "open", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, standing.CompletedToday)
	assert.Equal(t, 50, standing.TodayPercentage)

	board, err := b.Leaderboard(ctx, "open", true)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 1, board[0].TotalCompletions)

	_, _, err = b.Complete(ctx, "open", "nobody", "a1", types.Day{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoteBackend(t *testing.T) {
	local := newLocalBackend(t)
	eng := local.engine

	server := api.NewServer(api.Deps{
		Gateway:     eng.gateway,
		Coordinator: eng.coordinator,
		Recorder:    eng.recorder,
		Progress:    eng.progress,
		Sessions:    eng.sessions,
		Assigner:    eng.assigner,
	}, api.Config{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	c, err := client.NewClient(ts.URL)
	require.NoError(t, err)
	b := &remoteBackend{client: c}
	defer b.Close()

	ctx := context.Background()
	result, err := b.Enroll(ctx, "open", "u2", enrollment.Choices{SelectedActivityIDs: []string{"a2"}})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StateCommitted, result.State)

	outcome, day, err := b.Complete(ctx, "open", "u2", "a2", types.Day{})
	require.NoError(t, err)
	assert.Equal(t, completion.Recorded, outcome)
	assert.Equal(t, eng.recorder.Today(), day)

	standing, err := b.Standing(ctx, "open", "u2", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, standing.CompletedToday)

	_, _, err = b.Complete(ctx, "open", "nobody", "a2", types.Day{})
	assert.ErrorIs(t, err, client.ErrNotFound)
}
