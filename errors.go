package reqflow

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCancelled matches every *CancelledError via errors.Is.
	ErrCancelled = errors.New("reqflow: request cancelled")

	// ErrCacheMiss is returned by a ResponseCache when no entry exists
	ErrCacheMiss = errors.New("reqflow: cache miss")
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeTransport   = "TransportError"
	ErrorTypeInterceptor = "InterceptorError"
	ErrorTypeValidation  = "ValidationError"
)

// CancelledError reports that a request was superseded by an identical newer
// request or aborted explicitly. Reason is "<fingerprint>!cancel" for
// replacements and "cancel" for CancelAll.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("reqflow: request cancelled: %s", e.Reason)
}

// Is makes errors.Is(err, ErrCancelled) hold.
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// ClientError describes a transport, interceptor or configuration failure.
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	Fingerprint string
	StatusCode  int
	// Response is set for transport errors caused by a non-2xx status.
	Response  *Response
	Timestamp time.Time
	Duration  time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Fingerprint != "" {
		info += fmt.Sprintf("Fingerprint: %s\n", e.Fingerprint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeTransport})
}

// IsInterceptorError reports whether err came from a request or response hook.
func IsInterceptorError(err error) bool {
	return errors.Is(err, &ClientError{Type: ErrorTypeInterceptor})
}
