package reqflow

import (
	"context"
	"net/http"
	"time"
)

// Field is a single key/value pair of an ordered mapping.
type Field struct {
	Key   string
	Value any
}

// Fields is an ordered mapping used for query parameters and form-like payloads.
// Order is preserved when fingerprinting and encoding.
type Fields []Field

// Keys returns the key names in order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for _, field := range f {
		keys = append(keys, field.Key)
	}
	return keys
}

// Request describes one logical call. It is built per call by the Client and
// must not be reused once the call settles.
type Request struct {
	Method string
	// URL is kept as given; HTTPTransport resolves it against the base URL.
	URL    string
	Params Fields
	Data   any
	Header http.Header

	// Cache enables response memoization for this call.
	Cache bool
	// IgnoreRepeatRequests overrides the client default when non-nil.
	IgnoreRepeatRequests *bool
	// Interceptors run after the client-level interceptors.
	Interceptors []Interceptors

	pending *pendingToken
}

// Fingerprint returns the identity key of the request.
func (r *Request) Fingerprint() string {
	return Fingerprint(r)
}

// clone copies the descriptor so the client can merge headers and track the
// call without touching the caller's value.
func (r *Request) clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	out.pending = nil
	return &out
}

// Response is a fully read transport response.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       []byte
	Request    *Request
}

// clone returns a shallow copy so that callers sharing one round trip do not
// observe each other's header mutations.
func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	return &out
}

// CacheStatus tags a settled cache entry.
type CacheStatus string

const (
	CacheStatusSuccess CacheStatus = "success"
	CacheStatusError   CacheStatus = "error"
)

// CachedResult is a settled cache entry.
type CachedResult struct {
	Status   CacheStatus
	Response *Response
	Err      error
	StoredAt time.Time
}

// ResponseCache stores settled results keyed by fingerprint. Expiry and
// eviction belong to the implementation.
type ResponseCache interface {
	// Get returns ErrCacheMiss when no entry exists.
	Get(ctx context.Context, key string) (*CachedResult, error)
	Set(ctx context.Context, key string, result *CachedResult) error
}

// Transport performs the network exchange for a request. Dispatch must fail
// once ctx is cancelled.
type Transport interface {
	Dispatch(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Dispatch calls f(ctx, req).
func (f TransportFunc) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Option configures a Client.
type Option func(*Client)

// RequestOption configures a single call built by the verb helpers.
type RequestOption func(*Request)
