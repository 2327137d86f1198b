package main

import (
	"context"
	"fmt"

	"github.com/cuemby/streakline/pkg/client"
	"github.com/cuemby/streakline/pkg/completion"
	"github.com/cuemby/streakline/pkg/enrollment"
	"github.com/cuemby/streakline/pkg/progress"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/spf13/cobra"
)

// backend is what the user-facing commands run against: the local store, or
// a running server when --server is set
type backend interface {
	Enroll(ctx context.Context, challengeID, userID string, choices enrollment.Choices) (*enrollment.Result, error)
	RetryActions(ctx context.Context, challengeID, userID string, activityIDs []string) (*enrollment.Result, error)
	Complete(ctx context.Context, challengeID, userID, activityID string, day types.Day) (completion.Outcome, types.Day, error)
	Standing(ctx context.Context, challengeID, userID string, refresh bool) (*progress.Standing, error)
	Leaderboard(ctx context.Context, challengeID string, refresh bool) ([]*types.ParticipantSummary, error)
	Close() error
}

func openBackend(cmd *cobra.Command) (backend, error) {
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		c, err := client.NewClient(server)
		if err != nil {
			return nil, err
		}
		return &remoteBackend{client: c}, nil
	}
	eng, err := openEngine()
	if err != nil {
		return nil, err
	}
	return &localBackend{engine: eng}, nil
}

type localBackend struct {
	engine *engine
}

func (b *localBackend) Enroll(ctx context.Context, challengeID, userID string, choices enrollment.Choices) (*enrollment.Result, error) {
	eng := b.engine
	challenge, err := eng.gateway.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: %w", challengeID, err)
	}
	habits, err := eng.gateway.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := enrollment.Compose(challenge, userID, choices, habits, eng.assigner)
	if err != nil {
		return nil, err
	}
	return eng.coordinator.Run(ctx, eng.sessions.For(challengeID, userID), plan)
}

func (b *localBackend) RetryActions(ctx context.Context, challengeID, userID string, activityIDs []string) (*enrollment.Result, error) {
	eng := b.engine
	return eng.coordinator.RetryActions(ctx, eng.sessions.For(challengeID, userID), challengeID, userID, activityIDs)
}

func (b *localBackend) Complete(ctx context.Context, challengeID, userID, activityID string, day types.Day) (completion.Outcome, types.Day, error) {
	eng := b.engine
	if day.IsZero() {
		day = eng.recorder.Today()
	}
	participant, err := eng.gateway.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return "", day, fmt.Errorf("user %s in challenge %s: %w", userID, challengeID, err)
	}
	outcome, err := eng.recorder.Record(ctx, participant.ID, activityID, day)
	if err != nil {
		return "", day, err
	}
	// Keep totals current for the next standings read
	if _, err := eng.reconciler.ReconcileOnce(ctx); err != nil {
		return outcome, day, err
	}
	return outcome, day, nil
}

func (b *localBackend) Standing(ctx context.Context, challengeID, userID string, refresh bool) (*progress.Standing, error) {
	if err := b.refresh(ctx, refresh); err != nil {
		return nil, err
	}
	return b.engine.progress.Standing(ctx, challengeID, userID)
}

func (b *localBackend) Leaderboard(ctx context.Context, challengeID string, refresh bool) ([]*types.ParticipantSummary, error) {
	if err := b.refresh(ctx, refresh); err != nil {
		return nil, err
	}
	return b.engine.progress.Leaderboard(ctx, challengeID)
}

func (b *localBackend) refresh(ctx context.Context, refresh bool) error {
	if !refresh {
		return nil
	}
	_, err := b.engine.reconciler.ReconcileOnce(ctx)
	return err
}

func (b *localBackend) Close() error {
	return b.engine.Close()
}

// remoteBackend ignores refresh: a server recomputes standings on every
// change it records
type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) Enroll(ctx context.Context, challengeID, userID string, choices enrollment.Choices) (*enrollment.Result, error) {
	return b.client.Enroll(ctx, challengeID, userID, choices)
}

func (b *remoteBackend) RetryActions(ctx context.Context, challengeID, userID string, activityIDs []string) (*enrollment.Result, error) {
	return b.client.RetryActions(ctx, challengeID, userID, activityIDs)
}

func (b *remoteBackend) Complete(ctx context.Context, challengeID, userID, activityID string, day types.Day) (completion.Outcome, types.Day, error) {
	participant, err := b.client.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return "", day, fmt.Errorf("user %s in challenge %s: %w", userID, challengeID, err)
	}
	return b.client.Complete(ctx, participant.ID, activityID, day)
}

func (b *remoteBackend) Standing(ctx context.Context, challengeID, userID string, _ bool) (*progress.Standing, error) {
	return b.client.Standing(ctx, challengeID, userID)
}

func (b *remoteBackend) Leaderboard(ctx context.Context, challengeID string, _ bool) ([]*types.ParticipantSummary, error) {
	return b.client.Leaderboard(ctx, challengeID)
}

func (b *remoteBackend) Close() error {
	return b.client.Close()
}
