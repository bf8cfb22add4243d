package engine

import (
	"errors"
	"fmt"

	"civicsync-engine/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrAlreadyAssigned     = errors.New("already assigned")
	ErrNotEligible         = errors.New("not eligible")
	ErrAlreadyUpvoted      = errors.New("already upvoted")
	ErrSelfUpvoteForbidden = errors.New("self upvote forbidden")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation error")
	ErrUnavailable         = errors.New("store unavailable")
)

// Kind names an error class independently of its message.
type Kind string

const (
	KindNotFound            Kind = "NotFound"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindAlreadyAssigned     Kind = "AlreadyAssigned"
	KindNotEligible         Kind = "NotEligible"
	KindAlreadyUpvoted      Kind = "AlreadyUpvoted"
	KindSelfUpvoteForbidden Kind = "SelfUpvoteForbidden"
	KindConflict            Kind = "Conflict"
	KindValidation          Kind = "ValidationError"
	KindUnavailable         Kind = "Unavailable"
	KindInternal            Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrAlreadyAssigned, KindAlreadyAssigned},
	{ErrNotEligible, KindNotEligible},
	{ErrAlreadyUpvoted, KindAlreadyUpvoted},
	{ErrSelfUpvoteForbidden, KindSelfUpvoteForbidden},
	{ErrConflict, KindConflict},
	{ErrValidation, KindValidation},
	{ErrUnavailable, KindUnavailable},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may re-fetch and try again.
// Only lost races are retryable; business-rule violations never are.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// TransitionError carries the attempted and current status of a rejected
// status change.
type TransitionError struct {
	From models.IssueStatus
	To   models.IssueStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
