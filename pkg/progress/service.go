package progress

import (
	"context"
	"fmt"

	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/types"
)

// Service gathers a Snapshot through the gateway and computes standings
type Service struct {
	gateway gateway.Gateway
}

// NewService creates a progress service over gw
func NewService(gw gateway.Gateway) *Service {
	return &Service{gateway: gw}
}

// Standing returns the standing of userID in challengeID
func (s *Service) Standing(ctx context.Context, challengeID, userID string) (*Standing, error) {
	challenge, err := s.gateway.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("standing: %w", err)
	}
	participant, err := s.gateway.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, fmt.Errorf("standing: %w", err)
	}
	today, err := s.gateway.GetTodayCompletions(ctx, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("standing: %w", err)
	}
	board, err := s.gateway.GetLeaderboard(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("standing: %w", err)
	}

	return Compute(Snapshot{
		Participant:    participant,
		RequiredDaily:  challenge.DailyTarget(),
		CompletedToday: today,
		Leaderboard:    board,
	}), nil
}

// Leaderboard returns the challenge leaderboard in store order
func (s *Service) Leaderboard(ctx context.Context, challengeID string) ([]*types.ParticipantSummary, error) {
	if _, err := s.gateway.GetChallenge(ctx, challengeID); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return s.gateway.GetLeaderboard(ctx, challengeID)
}
