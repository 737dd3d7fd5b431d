package domain

import (
	"errors"
	"fmt"
)

// Detected locally, before any request is issued.
var (
	ErrInvalidActor       = errors.New("action not allowed for this role")
	ErrInvalidTransition  = errors.New("transition not allowed from current state")
	ErrNoActiveProposal   = errors.New("no active proposal")
	ErrInvalidPhoneFormat = errors.New("phone number must look like +254XXXXXXXXX")
	ErrServiceNotFound    = errors.New("service not found in catalog")
	ErrInvalidProposal    = errors.New("invalid proposal")
	ErrInvalidRole        = errors.New("role must be customer or beautician")
	ErrNotRemovable       = errors.New("booking cannot be removed yet")
	ErrNotEligible        = errors.New("booking is not eligible for this action")
	ErrActionInFlight     = errors.New("another request for this booking is still in flight")
	ErrVerifyInFlight     = errors.New("payment verification already in progress")
)

// Declared by the payment coordinator; not a terminal payment outcome.
var ErrPaymentTimeout = errors.New("payment confirmation timed out")

// Surfaced from backend responses.
var (
	ErrNetwork      = errors.New("backend unreachable")
	ErrStaleState   = errors.New("booking changed on the server")
	ErrRejected     = errors.New("backend rejected the request")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("session expired")
)

// BackendError carries the server's message for a failed call. errors.Is matches Kind.
type BackendError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Message != "" && e.Kind != nil:
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	case e.Message != "":
		return e.Message
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Kind != nil:
		return e.Kind.Error()
	}
	return "backend error"
}

func (e *BackendError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UserMessage returns the text to show for err: the server's own message when it sent one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return err.Error()
}
