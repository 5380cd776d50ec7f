package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable    = errors.New("browser runtime unavailable")
	ErrPageClosed     = errors.New("browser page closed")
	ErrConnectionLost = errors.New("browser connection lost")
)

// CDPError wraps protocol-level errors from the browser with a stable code.
type CDPError struct {
	Code    string
	Message string
	Err     error
}

func (e *CDPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cdp error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("cdp error [%s]: %s", e.Code, e.Message)
}

func (e *CDPError) Unwrap() error {
	return e.Err
}

// NewCDPError creates a CDPError without a cause.
func NewCDPError(code, message string) *CDPError {
	return &CDPError{Code: code, Message: message}
}

// WrapCDPError wraps an existing error with protocol context.
func WrapCDPError(code, message string, err error) *CDPError {
	return &CDPError{Code: code, Message: message, Err: err}
}

// IsUnavailable reports whether err means the page or runtime cannot serve
// requests right now. Callers treat this as a backoff-and-retry condition,
// not a fatal one.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrPageClosed) || errors.Is(err, ErrConnectionLost) {
		return true
	}
	var cdpErr *CDPError
	if errors.As(err, &cdpErr) {
		return cdpErr.Code == "connection_lost" || cdpErr.Code == "unavailable"
	}
	return false
}
