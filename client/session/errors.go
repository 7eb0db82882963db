package session

import (
	"errors"
	"net/http"

	"campustransit/client/api"
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNetworkUnavailable Kind = "network_unavailable"
	KindServerError        Kind = "server_error"
	KindValidationFailed   Kind = "validation_failed"
)

// AuthError is a structured login/register failure. It never partially
// mutates the session; callers display Message and move on.
type AuthError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *AuthError) Error() string {
	return "auth: " + string(e.Kind) + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// ErrAuthInFlight is returned when a login or register call arrives while a
// previous one is still pending; the duplicate is dropped.
var ErrAuthInFlight = errors.New("session: auth request already in flight")

// classify maps a transport or API error onto the AuthError taxonomy.
func classify(err error) *AuthError {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Code
		if message == "" {
			message = http.StatusText(statusErr.Status)
		}
		switch {
		case statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden:
			return &AuthError{Kind: KindInvalidCredentials, Message: message, cause: err}
		case statusErr.Status >= 400 && statusErr.Status < 500:
			return &AuthError{Kind: KindValidationFailed, Message: message, cause: err}
		default:
			return &AuthError{Kind: KindServerError, Message: message, cause: err}
		}
	}
	return &AuthError{Kind: KindNetworkUnavailable, Message: "could not reach server", cause: err}
}
