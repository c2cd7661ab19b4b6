package reqflow

import (
	"fmt"
	"net/http"
)

// NewRequest builds a descriptor for method and url and applies opts.
func NewRequest(method, url string, data any, opts ...RequestOption) *Request {
	req := &Request{
		Method: method,
		URL:    url,
		Data:   data,
		Header: http.Header{},
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// WithParams sets the ordered query parameters.
func WithParams(params Fields) RequestOption {
	return func(r *Request) {
		r.Params = params
	}
}

// WithParam appends one query parameter.
func WithParam(key string, value any) RequestOption {
	return func(r *Request) {
		r.Params = append(r.Params, Field{Key: key, Value: value})
	}
}

// WithRequestHeader sets a header for this call.
func WithRequestHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

// WithRequestHeaders copies headers into this call, replacing existing keys.
func WithRequestHeaders(header http.Header) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		for k, values := range header {
			r.Header.Del(k)
			for _, v := range values {
				r.Header.Add(k, v)
			}
		}
	}
}

// WithRequestCache enables or disables memoization for this call.
func WithRequestCache(enabled bool) RequestOption {
	return func(r *Request) {
		r.Cache = enabled
	}
}

// WithRequestDedup overrides the client's repeat-request policy for this call.
func WithRequestDedup(enabled bool) RequestOption {
	return func(r *Request) {
		r.IgnoreRepeatRequests = &enabled
	}
}

// WithRequestInterceptors adds hook sets that run after the client's.
func WithRequestInterceptors(interceptors ...Interceptors) RequestOption {
	return func(r *Request) {
		r.Interceptors = append(r.Interceptors, interceptors...)
	}
}

// String renders the request for logs.
func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}
