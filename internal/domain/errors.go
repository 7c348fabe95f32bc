package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the core wraps exactly one of these so
// callers can decide between "fix the input", "show not found", "offer retry"
// and "resubscribe" with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrTransientIO  = errors.New("transient io error")
	ErrSubscription = errors.New("subscription error")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrSelfFollow       = fmt.Errorf("%w: cannot follow yourself", ErrValidation)
	ErrEmptyQuery       = fmt.Errorf("%w: empty query", ErrValidation)
	ErrInvalidLimit     = fmt.Errorf("%w: limit must be positive", ErrValidation)
	ErrInvalidCursor    = fmt.Errorf("%w: malformed cursor", ErrValidation)
	ErrEmptyContent     = fmt.Errorf("%w: content is required", ErrValidation)
	ErrContentTooLong   = fmt.Errorf("%w: content is too long", ErrValidation)
	ErrRequestNotFound  = fmt.Errorf("%w: follow request not found", ErrNotFound)
	ErrEdgeNotFound     = fmt.Errorf("%w: follow edge not found", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrPostNotFound     = fmt.Errorf("%w: post not found", ErrNotFound)
	ErrCommentNotFound  = fmt.Errorf("%w: comment not found", ErrNotFound)
	ErrEntryNotFound    = fmt.Errorf("%w: entry not found", ErrNotFound)
	ErrNotifNotFound    = fmt.Errorf("%w: notification not found", ErrNotFound)
	ErrDuplicateUser    = fmt.Errorf("%w: user name is already used", ErrConflict)
	ErrFetchInFlight    = fmt.Errorf("%w: fetch already in flight", ErrConflict)
	ErrMutationInFlight = fmt.Errorf("%w: mutation already in flight", ErrConflict)
	ErrNotOwner         = fmt.Errorf("%w: not the owner", ErrForbidden)
	ErrPrivateProfile   = fmt.Errorf("%w: profile is private", ErrForbidden)
	ErrBadCredentials   = fmt.Errorf("%w: invalid name or password", ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: unknown entry kind", ErrValidation)

	// ErrViewClosed is returned for work that finishes after its view closed.
	ErrViewClosed = errors.New("view closed")
)

// Transient marks a backend failure as retryable by the user. It is never
// retried automatically.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransientIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientIO, err)
}

// Subscription wraps a change stream failure.
func Subscription(err error) error {
	if err == nil || errors.Is(err, ErrSubscription) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSubscription, err)
}

// IsCoreError reports whether err already carries a kind from this package.
func IsCoreError(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrTransientIO, ErrSubscription, ErrForbidden} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
