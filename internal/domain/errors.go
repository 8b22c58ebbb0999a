package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the ledger
	ErrJobNotFound = errors.New("job not found")

	// ErrOfferNotFound is returned when an offer cannot be found
	ErrOfferNotFound = errors.New("offer not found")

	// ErrProfileNotFound is returned when a user has no payment profile
	ErrProfileNotFound = errors.New("payment profile not found")

	// ErrStaleState is returned when a conditional status update loses a
	// race; the caller must reload the job and retry
	ErrStaleState = errors.New("job modified concurrently, reload and retry")

	// ErrAlreadyAccepted is returned when an accept attempt loses the
	// race for an open job
	ErrAlreadyAccepted = errors.New("another offer was already accepted")

	// ErrPaymentSetupRequired is returned when the creator has no usable
	// payment method
	ErrPaymentSetupRequired = errors.New("creator has no payment method on file")

	// ErrPayeeSetupIncomplete is returned when the helper's payout
	// account is missing or cannot receive funds yet
	ErrPayeeSetupIncomplete = errors.New("helper has not completed payout setup")

	// ErrTipDecisionRequired is returned when a tip job is confirmed
	// before a tip amount was added or explicitly skipped
	ErrTipDecisionRequired = errors.New("add a tip or skip it before completing")
)

// ValidationError rejects bad input before any gateway or ledger call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidTransitionError is returned when a transition is not legal from
// the job's current status, or the actor is not allowed to perform it.
type InvalidTransitionError struct {
	JobID  string
	Status string
	Op     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed for job %s in status %s: %s", e.Op, e.JobID, e.Status, e.Reason)
}

// NewInvalidTransition creates an InvalidTransitionError for a job.
func NewInvalidTransition(op string, job *Job, reason string) error {
	return &InvalidTransitionError{JobID: job.JobID, Status: job.Status, Op: op, Reason: reason}
}
