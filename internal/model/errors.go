package model

import (
	"errors"
	"fmt"
)

// Category errors. Every error returned by the booking and payment layers
// wraps exactly one of them so callers can classify with errors.Is.
var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not_found")
	ErrConflict   = errors.New("conflict")
	ErrPolicy     = errors.New("policy_violation")
	ErrUpstream   = errors.New("upstream_unavailable")
)

var (
	ErrReservationNotFound = fmt.Errorf("%w: reservation not found", ErrNotFound)
	ErrCourtNotFound       = fmt.Errorf("%w: court not found", ErrNotFound)
	ErrPlayerNotFound      = fmt.Errorf("%w: player not found", ErrNotFound)
	ErrShareNotFound       = fmt.Errorf("%w: payment share not found", ErrNotFound)

	ErrSlotTaken      = fmt.Errorf("%w: slot no longer free", ErrConflict)
	ErrRosterFull     = fmt.Errorf("%w: roster full", ErrConflict)
	ErrAlreadyJoined  = fmt.Errorf("%w: player already in roster", ErrConflict)
	ErrDuplicateShare = fmt.Errorf("%w: payer already has an open share", ErrConflict)
	ErrShareState     = fmt.Errorf("%w: payment share in unexpected state", ErrConflict)
	ErrLocked         = fmt.Errorf("%w: reservation is being modified", ErrConflict)

	ErrReservationFull = fmt.Errorf("%w: reservation is full", ErrPolicy)
	ErrTooLateToCancel = fmt.Errorf("%w: too late to cancel", ErrPolicy)
	ErrCancelled       = fmt.Errorf("%w: reservation is cancelled", ErrPolicy)
	ErrAlreadyStarted  = fmt.Errorf("%w: reservation already started", ErrPolicy)
)

// Category returns the category name of err, or "internal" when err wraps
// none of the category sentinels.
func Category(err error) string {
	for _, c := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrPolicy, ErrUpstream} {
		if errors.Is(err, c) {
			return c.Error()
		}
	}
	return "internal"
}

// Invalid builds a validation error with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps a collaborator failure with the category and a reason.
func Upstream(reason string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, reason, err)
}
