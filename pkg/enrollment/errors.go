package enrollment

import (
	"errors"
	"fmt"
)

// Kind classifies why an enrollment stopped
type Kind string

const (
	// KindInvalidPlan means the plan failed validation before any write
	KindInvalidPlan Kind = "invalid_plan"

	// KindNotVisible means a write was acknowledged but never became readable
	// within the poll budget
	KindNotVisible Kind = "not_visible"

	// KindWriteRejected means the gateway refused a create or update
	KindWriteRejected Kind = "write_rejected"

	// KindVerificationMismatch means a read-back disagreed with what was written
	KindVerificationMismatch Kind = "verification_mismatch"

	// KindStoreError means a read failed outright
	KindStoreError Kind = "store_error"

	// KindCanceled means the caller's context ended the enrollment
	KindCanceled Kind = "canceled"
)

var (
	ErrInvalidPlan           = errors.New("invalid enrollment plan")
	ErrParticipantNotVisible = errors.New("participant not visible")
	ErrWriteRejected         = errors.New("write rejected")
	ErrVerificationMismatch  = errors.New("verification mismatch")
	ErrStore                 = errors.New("store error")

	// ErrInProgress is returned when a session already runs an enrollment
	ErrInProgress = errors.New("enrollment already in progress")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidPlan:
		return ErrInvalidPlan
	case KindNotVisible:
		return ErrParticipantNotVisible
	case KindWriteRejected:
		return ErrWriteRejected
	case KindVerificationMismatch:
		return ErrVerificationMismatch
	case KindStoreError:
		return ErrStore
	default:
		return nil
	}
}

// StepError is the single failure value an enrollment ends with. It names the
// state it failed in and the gateway operation that failed.
type StepError struct {
	State State
	Op    string
	Kind  Kind
	Err   error
}

func (e *StepError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("enrollment failed in %s (%s): %v", e.State, e.Kind, e.Err)
	}
	return fmt.Sprintf("enrollment failed in %s: %s (%s): %v", e.State, e.Op, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, ErrWriteRejected) without unpacking the StepError.
func (e *StepError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of err, or "" if err is not a StepError
func KindOf(err error) Kind {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	return ""
}
