package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/gorilla/mux"
)

// enrollRequest is the join flow's answers for one user
type enrollRequest struct {
	UserID string `json:"user_id"`
	enrollment.Choices
}

type retryRequest struct {
	UserID      string   `json:"user_id"`
	ActivityIDs []string `json:"activity_ids,omitempty"`
}

type completeRequest struct {
	ActivityID string    `json:"activity_id"`
	Day        types.Day `json:"day,omitempty"` // defaults to today
}

type completeResponse struct {
	ParticipantID string             `json:"participant_id"`
	ActivityID    string             `json:"activity_id"`
	Day           types.Day          `json:"day"`
	Outcome       completion.Outcome `json:"outcome"`
}

type leaderboardResponse struct {
	ChallengeID  string                      `json:"challenge_id"`
	Participants []*types.ParticipantSummary `json:"participants"`
}

// handleEnroll composes a plan from the request and runs it to a terminal state
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	challengeID := mux.Vars(r)["challengeID"]

	var req enrollRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "")
		return
	}

	ctx := r.Context()
	challenge, err := s.deps.Gateway.GetChallenge(ctx, challengeID)
	if err != nil {
		s.fail(w, err)
		return
	}
	habits, err := s.deps.Gateway.ListHabits(ctx, req.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}

	plan, err := enrollment.Compose(challenge, req.UserID, req.Choices, habits, s.deps.Assigner)
	if err != nil {
		s.fail(w, err)
		return
	}

	session := s.deps.Sessions.For(challengeID, req.UserID)
	result, err := s.deps.Coordinator.Run(ctx, session, plan)
	if err != nil {
		if result == nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, statusFor(err), result)
		return
	}
	writeJSON(w, resultStatus(result, http.StatusCreated), result)
}

// handleRetryActions creates calendar actions still missing after a partial
// enrollment
func (s *Server) handleRetryActions(w http.ResponseWriter, r *http.Request) {
	challengeID := mux.Vars(r)["challengeID"]

	var req retryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "")
		return
	}

	session := s.deps.Sessions.For(challengeID, req.UserID)
	result, err := s.deps.Coordinator.RetryActions(r.Context(), session, challengeID, req.UserID, req.ActivityIDs)
	if err != nil {
		if result == nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, statusFor(err), result)
		return
	}
	writeJSON(w, resultStatus(result, http.StatusOK), result)
}

// handleComplete records one completion, today unless a day is given
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	participantID := mux.Vars(r)["participantID"]

	var req completeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
		return
	}
	if req.ActivityID == "" {
		writeError(w, http.StatusBadRequest, "activity_id is required", "")
		return
	}

	day := req.Day
	if day.IsZero() {
		day = s.deps.Recorder.Today()
	}

	outcome, err := s.deps.Recorder.Record(r.Context(), participantID, req.ActivityID, day)
	if err != nil {
		s.fail(w, err)
		return
	}

	code := http.StatusOK
	if outcome == completion.Recorded {
		code = http.StatusCreated
	}
	writeJSON(w, code, completeResponse{
		ParticipantID: participantID,
		ActivityID:    req.ActivityID,
		Day:           day,
		Outcome:       outcome,
	})
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	participant, err := s.deps.Gateway.GetParticipant(r.Context(), vars["challengeID"], vars["userID"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (s *Server) handleStanding(w http.ResponseWriter, r *http.Request) {
	challengeID := mux.Vars(r)["challengeID"]
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required", "")
		return
	}

	standing, err := s.deps.Progress.Standing(r.Context(), challengeID, userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standing)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	challengeID := mux.Vars(r)["challengeID"]

	board, err := s.deps.Progress.Leaderboard(r.Context(), challengeID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if board == nil {
		board = []*types.ParticipantSummary{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{ChallengeID: challengeID, Participants: board})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", code).Msg("Request failed")
	}
	writeError(w, code, err.Error(), string(enrollment.KindOf(err)))
}

// resultStatus is 207 for a committed enrollment missing calendar actions
func resultStatus(result *enrollment.Result, ok int) int {
	if result.Partial() {
		return http.StatusMultiStatus
	}
	return ok
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch enrollment.KindOf(err) {
	case enrollment.KindInvalidPlan:
		if errors.Is(err, gateway.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case enrollment.KindNotVisible:
		if errors.Is(err, gateway.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusGatewayTimeout
	case enrollment.KindWriteRejected:
		return http.StatusBadGateway
	case enrollment.KindVerificationMismatch:
		return http.StatusConflict
	case enrollment.KindCanceled:
		return http.StatusServiceUnavailable
	case enrollment.KindStoreError:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, enrollment.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, enrollment.ErrInvalidPlan),
		errors.Is(err, completion.ErrNotSelected),
		errors.Is(err, completion.ErrOutsideWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
