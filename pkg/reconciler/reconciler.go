package reconciler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/cuemby/streakline/pkg/storage"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often Start recomputes standings
const DefaultInterval = 30 * time.Second

// Reconciler keeps the derived fields of every participant in line with its
// completions. It is the only writer of those fields.
type Reconciler struct {
	store     storage.Store
	publisher events.Publisher
	interval  time.Duration
	now       func() time.Time
	location  *time.Location
	logger    zerolog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithInterval sets the loop interval
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.interval = d }
}

// WithPublisher sets where standings events go
func WithPublisher(p events.Publisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

// WithClock sets the clock and location used for "today"
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(r *Reconciler) {
		r.now = now
		r.location = loc
	}
}

// NewReconciler creates a new reconciler
func NewReconciler(store storage.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		interval: DefaultInterval,
		now:      time.Now,
		location: time.Local,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop stops the reconciler and waits for the current cycle to finish
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-r.stopCh
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
			}
		case <-r.stopCh:
			return
		}
	}
}

// ReconcileOnce recomputes every participant once and returns how many
// records changed
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	challenges, err := r.store.ListChallenges()
	if err != nil {
		return 0, fmt.Errorf("failed to list challenges: %w", err)
	}

	today := types.DayOf(r.now(), r.location)
	changed := 0
	for _, challenge := range challenges {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		n, err := r.reconcileChallenge(ctx, challenge, today)
		changed += n
		if err != nil {
			r.logger.Warn().Err(err).Str("challenge_id", challenge.ID).Msg("Failed to reconcile challenge")
			continue
		}
		if n > 0 && r.publisher != nil {
			r.publisher.Publish(events.New(events.EventStandingsUpdated, "standings updated", map[string]string{
				"challenge_id": challenge.ID,
				"changed":      strconv.Itoa(n),
			}))
		}
	}
	return changed, nil
}

func (r *Reconciler) reconcileChallenge(ctx context.Context, challenge *types.Challenge, today types.Day) (int, error) {
	participants, err := r.store.ListParticipantsByChallenge(challenge.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list participants: %w", err)
	}

	changed := 0
	for _, p := range participants {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		completions, err := r.store.ListCompletions(p.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("participant_id", p.ID).Msg("Failed to list completions")
			continue
		}
		stats := ComputeStats(challenge, p, completions, today, r.location)
		if stats.applied(p) {
			continue
		}

		// Only the derived fields are touched, inside the store transaction,
		// so concurrent link and schedule writes survive
		_, err = r.store.UpdateParticipant(p.ID, func(current *types.Participant) error {
			stats.apply(current)
			return nil
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("participant_id", p.ID).Msg("Failed to update participant stats")
			continue
		}
		changed++

		r.logger.Debug().
			Str("challenge_id", challenge.ID).
			Str("participant_id", p.ID).
			Int("total_completions", stats.TotalCompletions).
			Int("current_streak", stats.CurrentStreak).
			Float64("completion_percentage", stats.CompletionPercentage).
			Msg("Participant stats updated")
	}
	return changed, nil
}
