package service

import (
	"errors"
	"fmt"

	identitydomain "recruitpipe/console/internal/identity/domain"
)

// Sentinel errors for the session manager; the console maps them to user-facing text.
var (
	ErrIdentityRejected    = errors.New("identity rejected")
	ErrIdentityUnreachable = errors.New("identity provider unreachable")
	ErrBackendRejected     = errors.New("backend rejected identity token")
	ErrBackendUnreachable  = errors.New("backend unreachable")
	ErrInvalidInput        = errors.New("invalid email or password input")
	ErrSessionExpired      = errors.New("session expired")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrBusy                = errors.New("operation already in progress")
)

// IdentityRejectedError carries the provider's code so the caller can pick the message.
type IdentityRejectedError struct {
	Code identitydomain.ErrorCode
}

func (e *IdentityRejectedError) Error() string {
	return fmt.Sprintf("identity rejected: %s", e.Code)
}

func (e *IdentityRejectedError) Unwrap() error { return ErrIdentityRejected }

// BackendRejectedError is phase-two refusal: the token was valid but the backend declined it.
type BackendRejectedError struct {
	Status  int
	Message string
}

func (e *BackendRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected identity token (status %d)", e.Status)
	}
	return fmt.Sprintf("backend rejected identity token (status %d): %s", e.Status, e.Message)
}

func (e *BackendRejectedError) Unwrap() error { return ErrBackendRejected }

// FriendlyMessage maps any error returned by Manager to user-facing text.
func FriendlyMessage(err error) string {
	var ire *IdentityRejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ire):
		return ire.Code.Message()
	case errors.Is(err, ErrInvalidInput):
		return "Enter a valid email address and password."
	case errors.Is(err, ErrBackendRejected):
		return "Your account is not authorized for this dashboard."
	case errors.Is(err, ErrIdentityUnreachable), errors.Is(err, ErrBackendUnreachable):
		return "Cannot reach the server. Check your connection and try again."
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired. Sign in again."
	case errors.Is(err, ErrNotAuthenticated):
		return "Sign in to continue."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	default:
		return "Something went wrong. Please try again."
	}
}
