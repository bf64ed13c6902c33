package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrForbidden        = fmt.Errorf("missing website group")

	// API and transport errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNetwork            = fmt.Errorf("network error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrEventNotFound      = fmt.Errorf("event not found")
	ErrStreamConnection   = fmt.Errorf("stream connection error")
	ErrStreamFailed       = fmt.Errorf("stream reported failure")
	ErrPayloadDecode      = fmt.Errorf("malformed event payload")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// AuthErrorKind classifies an [AuthError].
type AuthErrorKind int

const (
	NoRefreshToken AuthErrorKind = iota
	RefreshFailed
	Unauthorized
)

func (k AuthErrorKind) String() string {
	switch k {
	case NoRefreshToken:
		return "no_refresh_token"
	case RefreshFailed:
		return "refresh_failed"
	case Unauthorized:
		return "unauthorized"
	default:
		return ""
	}
}

// AuthError is returned when the refresh-and-retry protocol cannot recover from a 401.
type AuthError struct {
	Kind AuthErrorKind
	Err  error // underlying cause, if any
}

func (e *AuthError) Error() string {
	msg := e.sentinel().Error()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) sentinel() error {
	switch e.Kind {
	case NoRefreshToken:
		return ErrNoRefreshToken
	case RefreshFailed:
		return ErrRefreshFailed
	default:
		return ErrUnauthorized
	}
}

// Unwrap exposes both the kind sentinel and the cause to [errors.Is].
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// HTTPError carries a non-2xx upstream response.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%v: status %d, body: %s", ErrAPIRequest, e.Status, string(e.Body))
}

func (e *HTTPError) Unwrap() error { return ErrAPIRequest }

// NetworkError wraps a transport failure where no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%v: %v", ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// StreamConnectionError is a transport error on an event stream that was classified as a real failure.
type StreamConnectionError struct {
	Message string
	Err     error
}

func (e *StreamConnectionError) Error() string { return e.Message }

func (e *StreamConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStreamConnection}
	}
	return []error{ErrStreamConnection, e.Err}
}

// StreamFailureError is a failure the server reported on an event stream, such as a write_error event.
type StreamFailureError struct {
	Event   string
	Message string
}

func (e *StreamFailureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Event, e.Message)
}

func (e *StreamFailureError) Unwrap() error { return ErrStreamFailed }

// PayloadDecodeError reports an event whose data could not be decoded.
type PayloadDecodeError struct {
	Event string
	Data  string
	Err   error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("%v: event %q: %v", ErrPayloadDecode, e.Event, e.Err)
}

func (e *PayloadDecodeError) Unwrap() []error { return []error{ErrPayloadDecode, e.Err} }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
