package domain

import (
	"errors"
	"fmt"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrGroupNotFound    = errors.New("recipient group not found")
	ErrPageNotFound     = errors.New("page not found")
)

// TransientDeliveryError covers rate limits and timeouts. The executor
// retries these with backoff up to its attempt bound.
type TransientDeliveryError struct {
	Code    int
	Message string
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("transient delivery error (code %d): %s", e.Code, e.Message)
}

// PermanentDeliveryError covers invalid recipients, revoked permissions
// and rejected content. Never retried.
type PermanentDeliveryError struct {
	Code    int
	Message string
}

func (e *PermanentDeliveryError) Error() string {
	return fmt.Sprintf("permanent delivery error (code %d): %s", e.Code, e.Message)
}

// CollaboratorUnavailableError means the Graph API (or its token) is
// wholesale unusable for a page this tick. Evaluation is skipped, no
// delivery log entries are written.
type CollaboratorUnavailableError struct {
	PageID string
	Err    error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("graph collaborator unavailable for page %s: %v", e.PageID, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var t *TransientDeliveryError
	return errors.As(err, &t)
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var p *PermanentDeliveryError
	return errors.As(err, &p)
}

// IsCollaboratorUnavailable reports whether the page's Graph access is
// down as a whole.
func IsCollaboratorUnavailable(err error) bool {
	var c *CollaboratorUnavailableError
	return errors.As(err, &c)
}
