package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/streakline/pkg/events"
	"github.com/cuemby/streakline/pkg/gateway"
	"github.com/cuemby/streakline/pkg/log"
	"github.com/cuemby/streakline/pkg/metrics"
	"github.com/cuemby/streakline/pkg/schedule"
	"github.com/cuemby/streakline/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultActionRate  = rate.Limit(20)
	defaultActionBurst = 5
)

// Coordinator drives enrollments through the gateway. Each step is gated on
// reading back the previous step's write.
type Coordinator struct {
	gateway   gateway.Gateway
	poller    Poller
	publisher events.Publisher
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPoller sets the visibility poll budget
func WithPoller(p Poller) Option {
	return func(c *Coordinator) { c.poller = p }
}

// WithPublisher sets where enrollment events go
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithActionRate paces calendar action creation
func WithActionRate(limit rate.Limit, burst int) Option {
	return func(c *Coordinator) { c.limiter = rate.NewLimiter(limit, burst) }
}

// NewCoordinator creates a coordinator over gw
func NewCoordinator(gw gateway.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway: gw,
		poller:  DefaultPoller(),
		limiter: rate.NewLimiter(defaultActionRate, defaultActionBurst),
		logger:  log.WithComponent("enrollment"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prepare loads the challenge and the user's habits and validates plan. The
// returned enrollment is in StateNotStarted and nothing has been written.
func (c *Coordinator) Prepare(ctx context.Context, plan Plan) (*Enrollment, error) {
	e := &Enrollment{Plan: plan, State: StateNotStarted}
	if err := c.load(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Coordinator) load(ctx context.Context, e *Enrollment) error {
	challenge, err := c.gateway.GetChallenge(ctx, e.Plan.ChallengeID)
	if err != nil {
		return &StepError{State: e.State, Op: "getChallenge", Kind: readKind(err, KindInvalidPlan), Err: err}
	}
	habits, err := c.gateway.ListHabits(ctx, e.Plan.UserID)
	if err != nil {
		return &StepError{State: e.State, Op: "listHabits", Kind: readKind(err, KindStoreError), Err: err}
	}
	if err := e.Plan.Validate(challenge, habits); err != nil {
		return &StepError{State: e.State, Op: "validate", Kind: KindInvalidPlan, Err: err}
	}
	e.challenge = challenge
	return nil
}

// Run executes plan to a terminal state. session guards against a second
// enrollment running for the same caller. The returned error is a *StepError
// when the enrollment failed; a committed enrollment with missing calendar
// actions is not an error, see Result.Partial.
func (c *Coordinator) Run(ctx context.Context, session *Session, plan Plan) (*Result, error) {
	release, err := session.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.EnrollmentDuration)

	e, err := c.Prepare(ctx, plan)
	if err != nil {
		e = &Enrollment{Plan: plan, State: StateFailed, Err: err}
		c.finish(e)
		return e.result(), err
	}

	for !e.State.Terminal() {
		c.Step(ctx, e)
	}
	c.finish(e)
	return e.result(), e.Err
}

// Step performs exactly one transition of e and returns the new state.
// Terminal states are returned unchanged.
func (c *Coordinator) Step(ctx context.Context, e *Enrollment) State {
	if e.State.Terminal() {
		return e.State
	}
	if err := ctx.Err(); err != nil {
		c.fail(e, "", KindCanceled, err)
		return e.State
	}

	switch e.State {
	case StateNotStarted:
		c.start(ctx, e)
	case StateAwaitingParticipantVisible:
		c.awaitParticipant(ctx, e)
	case StateLinksPending:
		c.writeLinks(ctx, e)
	case StateSchedulePending:
		c.writeSchedule(ctx, e)
	case StateVerifyCommitted:
		c.verify(ctx, e)
	case StateMaterializingActions:
		c.materialize(ctx, e)
	default:
		c.fail(e, "", KindInvalidPlan, fmt.Errorf("unknown state %q", e.State))
	}
	return e.State
}

// start reads before it creates, so a retry after a partial failure resumes
// the participant that already exists.
func (c *Coordinator) start(ctx context.Context, e *Enrollment) {
	if e.challenge == nil {
		if err := c.load(ctx, e); err != nil {
			c.failWith(e, err)
			return
		}
	}

	existing, err := c.gateway.GetParticipant(ctx, e.Plan.ChallengeID, e.Plan.UserID)
	switch {
	case err == nil:
		if !sameSet(existing.SelectedActivityIDs, e.Plan.SelectedActivityIDs) {
			c.fail(e, "getParticipant", KindVerificationMismatch,
				fmt.Errorf("participant %s is enrolled with a different selection", existing.ID))
			return
		}
		e.ParticipantID = existing.ID
		e.Resumed = true
		e.current = existing
		c.transition(e, c.afterVisible(e))
		return
	case !errors.Is(err, gateway.ErrNotFound):
		c.fail(e, "getParticipant", KindStoreError, err)
		return
	}

	created, err := c.gateway.CreateParticipant(ctx, e.Plan.ChallengeID, e.Plan.UserID, e.Plan.SelectedActivityIDs)
	switch {
	case err == nil:
		e.ParticipantID = created.ID
	case errors.Is(err, gateway.ErrAlreadyExists):
		// Created by an earlier attempt but not readable yet
		e.Resumed = true
	default:
		c.fail(e, "createParticipant", KindWriteRejected, err)
		return
	}
	c.transition(e, StateAwaitingParticipantVisible)
}

func (c *Coordinator) awaitParticipant(ctx context.Context, e *Enrollment) {
	var visible *types.Participant
	_, err := c.poller.Until(ctx, "participant", func(ctx context.Context) (bool, error) {
		p, err := c.gateway.GetParticipant(ctx, e.Plan.ChallengeID, e.Plan.UserID)
		if errors.Is(err, gateway.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		visible = p
		return true, nil
	})
	if err != nil {
		c.fail(e, "getParticipant", pollKind(err, KindNotVisible), err)
		return
	}

	if e.ParticipantID != "" && visible.ID != e.ParticipantID {
		c.fail(e, "getParticipant", KindVerificationMismatch,
			fmt.Errorf("created participant %s but read back %s", e.ParticipantID, visible.ID))
		return
	}
	if !sameSet(visible.SelectedActivityIDs, e.Plan.SelectedActivityIDs) {
		c.fail(e, "getParticipant", KindVerificationMismatch,
			fmt.Errorf("participant %s is enrolled with a different selection", visible.ID))
		return
	}
	e.ParticipantID = visible.ID
	e.current = visible
	c.transition(e, c.afterVisible(e))
}

// afterVisible skips the link step when there is nothing to link and nothing
// stale to clear
func (c *Coordinator) afterVisible(e *Enrollment) State {
	if len(e.Plan.Links) > 0 || (e.current != nil && len(e.current.LinkedHabits) > 0) {
		return StateLinksPending
	}
	return StateSchedulePending
}

func (c *Coordinator) writeLinks(ctx context.Context, e *Enrollment) {
	want := types.CloneMap(e.Plan.Links)
	if e.current == nil || !gateway.EqualMaps(e.current.LinkedHabits, want) {
		if err := c.gateway.UpdateParticipantLinks(ctx, e.ParticipantID, want); err != nil {
			c.fail(e, "updateParticipantLinks", KindWriteRejected, err)
			return
		}
	}

	err := c.readBack(ctx, e, "links", func(p *types.Participant) bool {
		return gateway.EqualMaps(p.LinkedHabits, want)
	})
	if err != nil {
		c.fail(e, "updateParticipantLinks", pollKind(err, KindVerificationMismatch), err)
		return
	}
	c.transition(e, StateSchedulePending)
}

func (c *Coordinator) writeSchedule(ctx context.Context, e *Enrollment) {
	want := types.CloneMap(e.Plan.Times)
	if e.current == nil || !gateway.EqualMaps(e.current.ActivityTimes, want) {
		if err := c.gateway.UpdateParticipantSchedule(ctx, e.ParticipantID, want); err != nil {
			c.fail(e, "updateParticipantSchedule", KindWriteRejected, err)
			return
		}
	}

	err := c.readBack(ctx, e, "schedule", func(p *types.Participant) bool {
		return gateway.EqualMaps(p.ActivityTimes, want)
	})
	if err != nil {
		c.fail(e, "updateParticipantSchedule", pollKind(err, KindVerificationMismatch), err)
		return
	}
	c.transition(e, StateVerifyCommitted)
}

// readBack polls the participant until match holds. The last visible read is
// kept on e.
func (c *Coordinator) readBack(ctx context.Context, e *Enrollment, target string, match func(*types.Participant) bool) error {
	_, err := c.poller.Until(ctx, target, func(ctx context.Context) (bool, error) {
		p, err := c.gateway.GetParticipantByID(ctx, e.ParticipantID)
		if errors.Is(err, gateway.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		e.current = p
		return match(p), nil
	})
	return err
}

func (c *Coordinator) verify(ctx context.Context, e *Enrollment) {
	ok, err := c.gateway.VerifyParticipantState(ctx, e.ParticipantID, e.Plan.Links, len(e.Plan.Times))
	if err != nil {
		c.fail(e, "verifyParticipantState", KindStoreError, err)
		return
	}
	if !ok {
		c.fail(e, "verifyParticipantState", KindVerificationMismatch,
			fmt.Errorf("stored links or schedule of participant %s differ from the plan", e.ParticipantID))
		return
	}
	c.transition(e, StateMaterializingActions)
}

func (c *Coordinator) materialize(ctx context.Context, e *Enrollment) {
	c.createActions(ctx, e, e.Plan.Unlinked())
	c.transition(e, StateCommitted)
}

// createActions creates one calendar action per activity in ids that does not
// have one yet. Creations run concurrently and never roll each other back.
func (c *Coordinator) createActions(ctx context.Context, e *Enrollment, ids []string) {
	logger := c.logger.With().Str("participant_id", e.ParticipantID).Logger()

	existing, err := c.gateway.ListCalendarActions(ctx, e.Plan.UserID, e.Plan.ChallengeID)
	if err != nil {
		// Creating blind could duplicate actions; report all as failed instead
		logger.Warn().Err(err).Msg("Failed to list calendar actions")
		e.FailedActivities = append(e.FailedActivities, ids...)
		metrics.CalendarActionsTotal.WithLabelValues("failed").Add(float64(len(ids)))
		return
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.ActivityID] = true
	}

	var pending []string
	for _, id := range ids {
		if have[id] {
			metrics.CalendarActionsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		pending = append(pending, id)
	}

	errs := make([]error, len(pending))
	var wg sync.WaitGroup
	for i, activityID := range pending {
		wg.Add(1)
		go func(i int, activityID string) {
			defer wg.Done()
			errs[i] = c.createAction(ctx, e, activityID)
		}(i, activityID)
	}
	wg.Wait()

	for i, activityID := range pending {
		if errs[i] != nil {
			logger.Warn().Err(errs[i]).Str("activity_id", activityID).Msg("Failed to create calendar action")
			metrics.CalendarActionsTotal.WithLabelValues("failed").Inc()
			e.FailedActivities = append(e.FailedActivities, activityID)
			continue
		}
		metrics.CalendarActionsTotal.WithLabelValues("created").Inc()
		e.Created = append(e.Created, activityID)
	}
}

func (c *Coordinator) createAction(ctx context.Context, e *Enrollment, activityID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	time24h, err := schedule.To24Hour(e.Plan.Times[activityID])
	if err != nil {
		return fmt.Errorf("activity %s: %w", activityID, err)
	}
	title := activityID
	if e.challenge != nil {
		if a := e.challenge.Activity(activityID); a != nil {
			title = a.Title
		}
	}
	_, err = c.gateway.CreateCalendarAction(ctx, e.Plan.UserID, e.Plan.ChallengeID, activityID, title, time24h)
	return err
}

// RetryActions creates the calendar actions still missing for a committed
// participant. With no activityIDs it retries every unlinked activity. Links
// and times are read from the participant record.
func (c *Coordinator) RetryActions(ctx context.Context, session *Session, challengeID, userID string, activityIDs []string) (*Result, error) {
	release, err := session.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	e := &Enrollment{
		Plan:    Plan{ChallengeID: challengeID, UserID: userID},
		State:   StateMaterializingActions,
		Resumed: true,
	}

	challenge, err := c.gateway.GetChallenge(ctx, challengeID)
	if err != nil {
		return c.retryFailed(e, "getChallenge", readKind(err, KindInvalidPlan), err)
	}
	p, err := c.gateway.GetParticipant(ctx, challengeID, userID)
	if err != nil {
		return c.retryFailed(e, "getParticipant", readKind(err, KindNotVisible), err)
	}

	e.challenge = challenge
	e.current = p
	e.ParticipantID = p.ID

	// Only a participant whose links and schedule were both written has times
	// to materialize
	committed, err := c.gateway.VerifyParticipantState(ctx, p.ID, p.LinkedHabits, len(p.SelectedActivityIDs))
	if err != nil {
		return c.retryFailed(e, "verifyParticipantState", readKind(err, KindNotVisible), err)
	}
	if !committed {
		return c.retryFailed(e, "verifyParticipantState", KindVerificationMismatch,
			fmt.Errorf("participant %s is not committed, re-run enrollment", p.ID))
	}

	e.Plan.SelectedActivityIDs = p.SelectedActivityIDs
	e.Plan.Links = types.CloneMap(p.LinkedHabits)
	e.Plan.Times = types.CloneMap(p.ActivityTimes)

	targets := e.Plan.Unlinked()
	if len(activityIDs) > 0 {
		allowed := make(map[string]bool, len(targets))
		for _, id := range targets {
			allowed[id] = true
		}
		for _, id := range activityIDs {
			if !allowed[id] {
				return c.retryFailed(e, "validate", KindInvalidPlan,
					fmt.Errorf("%w: activity %s is not an unlinked selection of participant %s", ErrInvalidPlan, id, p.ID))
			}
		}
		targets = activityIDs
	}

	c.createActions(ctx, e, targets)
	c.transition(e, StateCommitted)

	c.publish(events.EventActionsMaterialized, "calendar actions retried", e)
	return e.result(), nil
}

func (c *Coordinator) retryFailed(e *Enrollment, op string, kind Kind, err error) (*Result, error) {
	c.fail(e, op, kind, err)
	return e.result(), e.Err
}

func (c *Coordinator) transition(e *Enrollment, next State) {
	c.logger.Debug().
		Str("challenge_id", e.Plan.ChallengeID).
		Str("user_id", e.Plan.UserID).
		Str("participant_id", e.ParticipantID).
		Str("from", string(e.State)).
		Str("state", string(next)).
		Msg("Enrollment transition")
	metrics.EnrollmentTransitionsTotal.WithLabelValues(string(next)).Inc()
	e.State = next
}

func (c *Coordinator) fail(e *Enrollment, op string, kind Kind, err error) {
	if kind != KindCanceled && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		kind = KindCanceled
	}
	c.failWith(e, &StepError{State: e.State, Op: op, Kind: kind, Err: err})
}

func (c *Coordinator) failWith(e *Enrollment, err error) {
	e.Err = err
	c.logger.Warn().
		Err(err).
		Str("challenge_id", e.Plan.ChallengeID).
		Str("user_id", e.Plan.UserID).
		Str("participant_id", e.ParticipantID).
		Str("kind", string(KindOf(err))).
		Msg("Enrollment failed")
	c.transition(e, StateFailed)
}

// finish records the outcome of a Run
func (c *Coordinator) finish(e *Enrollment) {
	switch {
	case e.State == StateFailed:
		metrics.EnrollmentsTotal.WithLabelValues("failed").Inc()
		metrics.EnrollmentFailuresTotal.WithLabelValues(string(KindOf(e.Err))).Inc()
		c.publish(events.EventEnrollmentFailed, "enrollment failed", e)
	case len(e.FailedActivities) > 0:
		metrics.EnrollmentsTotal.WithLabelValues("partial").Inc()
		c.publish(events.EventEnrollmentPartial, "enrollment committed with missing calendar actions", e)
	default:
		metrics.EnrollmentsTotal.WithLabelValues("committed").Inc()
		c.publish(events.EventEnrollmentCommitted, "enrollment committed", e)
	}

	c.logger.Info().
		Str("challenge_id", e.Plan.ChallengeID).
		Str("user_id", e.Plan.UserID).
		Str("participant_id", e.ParticipantID).
		Str("state", string(e.State)).
		Bool("resumed", e.Resumed).
		Int("actions_created", len(e.Created)).
		Int("actions_failed", len(e.FailedActivities)).
		Msg("Enrollment finished")
}

func (c *Coordinator) publish(eventType events.EventType, msg string, e *Enrollment) {
	if c.publisher == nil {
		return
	}
	metadata := map[string]string{
		"challenge_id":   e.Plan.ChallengeID,
		"user_id":        e.Plan.UserID,
		"participant_id": e.ParticipantID,
	}
	if len(e.FailedActivities) > 0 {
		metadata["failed_activities"] = strings.Join(e.FailedActivities, ",")
	}
	if e.Err != nil {
		metadata["reason"] = e.Err.Error()
	}
	c.publisher.Publish(events.New(eventType, msg, metadata))
}

// pollKind maps a poll error to a failure kind. exhausted is the kind used
// when the budget ran out.
func pollKind(err error, exhausted Kind) Kind {
	switch {
	case errors.Is(err, errPollExhausted):
		return exhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindStoreError
	}
}

// readKind classifies a failed read. notFound is the kind used when the
// record does not exist.
func readKind(err error, notFound Kind) Kind {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return notFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindStoreError
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
