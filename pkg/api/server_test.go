package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// flakyActions fails calendar action creation for the listed activities
type flakyActions struct {
	gateway.Gateway

	mu   sync.Mutex
	fail map[string]bool
}

func (g *flakyActions) CreateCalendarAction(ctx context.Context, userID, challengeID, activityID, title, time24h string) (*types.CalendarAction, error) {
	g.mu.Lock()
	fail := g.fail[activityID]
	g.mu.Unlock()
	if fail {
		return nil, errors.New("calendar unavailable")
	}
	return g.Gateway.CreateCalendarAction(ctx, userID, challengeID, activityID, title, time24h)
}

func (g *flakyActions) heal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = nil
}

type testEnv struct {
	server *Server
	store  *storage.BoltStore
	gw     *flakyActions
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CreateChallenge(&types.Challenge{
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
	}))
	require.NoError(t, store.CreateHabit(&types.Habit{ID: "h1", UserID: "u1", Title: "Run", Time: "07:00"}))

	clock := func() time.Time { return testNow }
	gw := &flakyActions{Gateway: gateway.NewStoreGateway(store,
		gateway.WithClock(clock), gateway.WithLocation(time.UTC))}

	assigner, err := schedule.NewAssigner("")
	require.NoError(t, err)

	server := NewServer(Deps{
		Gateway: gw,
		Coordinator: enrollment.NewCoordinator(gw,
			enrollment.WithPoller(enrollment.Poller{Attempts: 10, Interval: 5 * time.Millisecond}),
			enrollment.WithActionRate(rate.Inf, 1)),
		Recorder: completion.NewRecorder(gw, completion.WithClock(clock, time.UTC)),
		Progress: progress.NewService(gw),
		Sessions: enrollment.NewSessions(),
		Assigner: assigner,
	}, cfg)

	return &testEnv{server: server, store: store, gw: gw}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	return w
}

func (env *testEnv) enroll(t *testing.T) *enrollment.Result {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments", scenarioBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeResult(t, w)
}

func scenarioBody() map[string]interface{} {
	return map[string]interface{}{
		"user_id":               "u1",
		"selected_activity_ids": []string{"a1", "a2", "a3"},
		"links":                 []map[string]string{{"activity_id": "a1", "habit_id": "h1"}},
		"times":                 map[string]string{"a2": "08:00", "a3": "12:30 PM"},
	}
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) *enrollment.Result {
	t.Helper()
	var result enrollment.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	return &result
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestEnrollCommitted(t *testing.T) {
	env := newTestEnv(t, Config{})

	result := env.enroll(t)
	assert.Equal(t, enrollment.StateCommitted, result.State)
	assert.NotEmpty(t, result.ParticipantID)
	assert.ElementsMatch(t, []string{"a2", "a3"}, result.Created)
	assert.Empty(t, result.FailedActivities)

	p, err := env.store.GetParticipantByChallengeUser("c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "h1"}, p.LinkedHabits)
	assert.Equal(t, map[string]string{"a1": "07:00", "a2": "08:00", "a3": "12:30"}, p.ActivityTimes)
}

func TestEnrollErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{
			name:   "missing user",
			path:   "/v1/challenges/c1/enrollments",
			body:   map[string]interface{}{"selected_activity_ids": []string{"a1", "a2"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			path:   "/v1/challenges/c1/enrollments",
			body:   map[string]interface{}{"user_id": "u1", "colour": "blue"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown challenge",
			path:   "/v1/challenges/nope/enrollments",
			body:   map[string]interface{}{"user_id": "u1", "selected_activity_ids": []string{"a1", "a2"}},
			status: http.StatusNotFound,
		},
		{
			name:   "below minimum selection",
			path:   "/v1/challenges/c1/enrollments",
			body:   map[string]interface{}{"user_id": "u1", "selected_activity_ids": []string{"a1"}},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "habit of another user",
			path: "/v1/challenges/c1/enrollments",
			body: map[string]interface{}{
				"user_id":               "u2",
				"selected_activity_ids": []string{"a1", "a2"},
				"links":                 []map[string]string{{"activity_id": "a1", "habit_id": "h1"}},
			},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			_, err := env.store.GetParticipantByChallengeUser("c1", "u1")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestEnrollInvalidPlanReturnsFailedResult(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments", map[string]interface{}{
		"user_id":               "u1",
		"selected_activity_ids": []string{"a1"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	result := decodeResult(t, w)
	assert.Equal(t, enrollment.StateFailed, result.State)
	assert.NotEmpty(t, result.Reason)
}

func TestEnrollInProgress(t *testing.T) {
	env := newTestEnv(t, Config{})

	release, err := env.server.deps.Sessions.For("c1", "u1").Begin()
	require.NoError(t, err)
	defer release()

	w := env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments", scenarioBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "in progress")
}

func TestEnrollPartialThenRetry(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.gw.fail = map[string]bool{"a3": true}

	w := env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments", scenarioBody())
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	result := decodeResult(t, w)
	assert.Equal(t, enrollment.StateCommitted, result.State)
	assert.Equal(t, []string{"a2"}, result.Created)
	assert.Equal(t, []string{"a3"}, result.FailedActivities)

	env.gw.heal()

	w = env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments/actions:retry", map[string]interface{}{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	retried := decodeResult(t, w)
	assert.Equal(t, []string{"a3"}, retried.Created)
	assert.Empty(t, retried.FailedActivities)

	actions, err := env.store.ListCalendarActions("u1", "c1")
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}

func TestRetryErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.enroll(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "missing user", body: map[string]interface{}{}, status: http.StatusBadRequest},
		{name: "not enrolled", body: map[string]interface{}{"user_id": "u9"}, status: http.StatusNotFound},
		{
			name:   "linked activity",
			body:   map[string]interface{}{"user_id": "u1", "activity_ids": []string{"a1"}},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/challenges/c1/enrollments/actions:retry", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGetParticipant(t *testing.T) {
	env := newTestEnv(t, Config{})
	result := env.enroll(t)

	w := env.do(t, http.MethodGet, "/v1/challenges/c1/participants/u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p types.Participant
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	assert.Equal(t, result.ParticipantID, p.ID)
	assert.Equal(t, []string{"a1", "a2", "a3"}, p.SelectedActivityIDs)

	w = env.do(t, http.MethodGet, "/v1/challenges/c1/participants/u9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComplete(t *testing.T) {
	env := newTestEnv(t, Config{})
	result := env.enroll(t)
	path := fmt.Sprintf("/v1/participants/%s/completions", result.ParticipantID)

	w := env.do(t, http.MethodPost, path, map[string]string{"activity_id": "a2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp completeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, completion.Recorded, resp.Outcome)
	assert.Equal(t, "2026-10-19", resp.Day.String())

	w = env.do(t, http.MethodPost, path, map[string]string{"activity_id": "a2"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, completion.AlreadyRecorded, resp.Outcome)

	completions, err := env.store.ListCompletions(result.ParticipantID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)
}

func TestCompleteErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	result := env.enroll(t)
	path := fmt.Sprintf("/v1/participants/%s/completions", result.ParticipantID)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{name: "missing activity", path: path, body: map[string]string{}, status: http.StatusBadRequest},
		{name: "bad day", path: path, body: map[string]string{"activity_id": "a2", "day": "19/10/2026"}, status: http.StatusBadRequest},
		{name: "not selected", path: path, body: map[string]string{"activity_id": "a4"}, status: http.StatusUnprocessableEntity},
		{name: "unknown participant", path: "/v1/participants/nope/completions", body: map[string]string{"activity_id": "a2"}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestStanding(t *testing.T) {
	env := newTestEnv(t, Config{})
	result := env.enroll(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/participants/%s/completions", result.ParticipantID),
		map[string]string{"activity_id": "a2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/v1/challenges/c1/standings?user=u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var standing progress.Standing
	require.NoError(t, json.NewDecoder(w.Body).Decode(&standing))
	assert.Equal(t, []string{"a2"}, standing.CompletedToday)
	assert.ElementsMatch(t, []string{"a1", "a3"}, standing.RemainingToday)
	assert.Equal(t, 3, standing.RequiredDaily)
	assert.Equal(t, 33, standing.TodayPercentage)
	assert.Equal(t, 1, standing.Rank)

	w = env.do(t, http.MethodGet, "/v1/challenges/c1/standings", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/challenges/c1/standings?user=u9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t, Config{})

	w := env.do(t, http.MethodGet, "/v1/challenges/c1/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp leaderboardResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "c1", resp.ChallengeID)
	assert.NotNil(t, resp.Participants)
	assert.Empty(t, resp.Participants)

	result := env.enroll(t)
	w = env.do(t, http.MethodGet, "/v1/challenges/c1/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Participants, 1)
	assert.Equal(t, result.ParticipantID, resp.Participants[0].ParticipantID)

	w = env.do(t, http.MethodGet, "/v1/challenges/nope/leaderboard", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShutdownStopsServer(t *testing.T) {
	t.Run("while starting", func(t *testing.T) {
		s := NewServer(Deps{}, Config{Addr: "127.0.0.1:0"})
		done := make(chan error, 1)
		go func() { done <- s.Start() }()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, s.Shutdown(ctx))

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Start still serving after Shutdown")
		}
	})

	t.Run("before start", func(t *testing.T) {
		s := NewServer(Deps{}, Config{Addr: "127.0.0.1:0"})
		require.NoError(t, s.Shutdown(context.Background()))
		assert.NoError(t, s.Start())

		// A second Shutdown is harmless
		assert.NoError(t, s.Shutdown(context.Background()))
	})
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t, Config{})
	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("api", true, "")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{method: http.MethodGet, path: "/health", status: http.StatusOK},
		{method: http.MethodGet, path: "/ready", status: http.StatusOK},
		{method: http.MethodGet, path: "/livez", status: http.StatusOK},
		{method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{method: http.MethodPost, path: "/health", status: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/nonexistent", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimit: 1, RateBurst: 1})

	get := func(clientIP string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/challenges/c1/leaderboard", nil)
		req.Header.Set("X-Forwarded-For", clientIP)
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("10.0.0.2"))

	// Health checks are never limited
	w := env.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remoteAddr: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "203.0.113.8"}, remoteAddr: "10.0.0.1:1234", want: "203.0.113.8"},
		{name: "remote addr", remoteAddr: "198.51.100.4:5555", want: "198.51.100.4"},
		{name: "remote addr without port", remoteAddr: "198.51.100.4", want: "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestStatusFor(t *testing.T) {
	step := func(kind enrollment.Kind, err error) error {
		return &enrollment.StepError{State: enrollment.StateNotStarted, Op: "op", Kind: kind, Err: err}
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid plan", err: step(enrollment.KindInvalidPlan, enrollment.ErrInvalidPlan), want: http.StatusUnprocessableEntity},
		{name: "unknown challenge", err: step(enrollment.KindInvalidPlan, gateway.ErrNotFound), want: http.StatusNotFound},
		{name: "not visible", err: step(enrollment.KindNotVisible, errors.New("exhausted")), want: http.StatusGatewayTimeout},
		{name: "write rejected", err: step(enrollment.KindWriteRejected, errors.New("denied")), want: http.StatusBadGateway},
		{name: "mismatch", err: step(enrollment.KindVerificationMismatch, errors.New("diverged")), want: http.StatusConflict},
		{name: "canceled", err: step(enrollment.KindCanceled, context.Canceled), want: http.StatusServiceUnavailable},
		{name: "store", err: step(enrollment.KindStoreError, errors.New("io")), want: http.StatusInternalServerError},
		{name: "in progress", err: enrollment.ErrInProgress, want: http.StatusConflict},
		{name: "not selected", err: fmt.Errorf("%w: a4", completion.ErrNotSelected), want: http.StatusUnprocessableEntity},
		{name: "outside window", err: completion.ErrOutsideWindow, want: http.StatusUnprocessableEntity},
		{name: "not found", err: fmt.Errorf("standing: %w", gateway.ErrNotFound), want: http.StatusNotFound},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
