package enrollment

import (
	"github.com/cuemby/streakline/pkg/types"
)

// State is a step of the enrollment pipeline
type State string

const (
	StateNotStarted                 State = "NotStarted"
	StateAwaitingParticipantVisible State = "AwaitingParticipantVisible"
	StateLinksPending               State = "LinksPending"
	StateSchedulePending            State = "SchedulePending"
	StateVerifyCommitted            State = "VerifyCommitted"
	StateMaterializingActions       State = "MaterializingActions"
	StateCommitted                  State = "Committed"
	StateFailed                     State = "Failed"
)

// Terminal reports whether no further transition happens from s
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Enrollment is the explicit state of one enrollment attempt. Coordinator.Step
// moves it forward one state at a time; nothing else is kept between steps.
type Enrollment struct {
	Plan  Plan
	State State

	ParticipantID string
	Resumed       bool // an existing participant was found and reused

	// Calendar action outcome, by activity ID
	Created          []string
	FailedActivities []string

	// Err is set when State is StateFailed
	Err error

	challenge *types.Challenge
	current   *types.Participant // last visible read of the participant
}

// Result is what a caller gets back from Run or RetryActions
type Result struct {
	ParticipantID    string   `json:"participant_id,omitempty"`
	State            State    `json:"state"`
	Resumed          bool     `json:"resumed"`
	Created          []string `json:"created_actions,omitempty"`
	FailedActivities []string `json:"failed_activities,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}

// Partial reports a committed enrollment with calendar actions still missing
func (r *Result) Partial() bool {
	return r.State == StateCommitted && len(r.FailedActivities) > 0
}

func (e *Enrollment) result() *Result {
	r := &Result{
		ParticipantID:    e.ParticipantID,
		State:            e.State,
		Resumed:          e.Resumed,
		Created:          append([]string(nil), e.Created...),
		FailedActivities: append([]string(nil), e.FailedActivities...),
	}
	if e.Err != nil {
		r.Reason = e.Err.Error()
	}
	return r
}
