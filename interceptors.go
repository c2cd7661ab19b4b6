package reqflow

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Interceptors is one set of hooks around a call. Every hook is optional; a
// nil hook passes its input through unchanged.
type Interceptors struct {
	// OnRequest may modify the request before dispatch. The fingerprint is
	// fixed before it runs, so changes here never affect identity.
	OnRequest func(req *Request) (*Request, error)
	// OnRequestError may recover from a failed OnRequest by returning a
	// request and a nil error.
	OnRequestError func(err error) (*Request, error)
	// OnResponse runs after the request has left the pending set.
	OnResponse func(resp *Response) (*Response, error)
	// OnResponseError may recover from a transport failure by returning a
	// response and a nil error.
	OnResponseError func(err error) (*Response, error)
	// OnErrorCatch turns the final error into the caller-facing error. Its
	// result is what gets cached.
	OnErrorCatch func(err error) error
}

// pipeline is the ordered list of hook sets applied to one call.
type pipeline []Interceptors

func newPipeline(client, call []Interceptors) pipeline {
	p := make(pipeline, 0, len(client)+len(call))
	p = append(p, client...)
	return append(p, call...)
}

func (p pipeline) request(req *Request) (*Request, error) {
	for i, set := range p {
		if set.OnRequest == nil {
			continue
		}
		next, err := set.OnRequest(req)
		if err != nil {
			next, err = p.recoverRequest(i, err)
			if err != nil {
				return req, err
			}
		}
		if next != nil {
			req = next
		}
	}
	return req, nil
}

// recoverRequest offers err to the OnRequestError hooks starting at the set
// whose OnRequest failed.
func (p pipeline) recoverRequest(from int, err error) (*Request, error) {
	for _, set := range p[from:] {
		if set.OnRequestError == nil {
			continue
		}
		req, hookErr := set.OnRequestError(err)
		if hookErr == nil {
			return req, nil
		}
		err = hookErr
	}
	return nil, err
}

func (p pipeline) response(resp *Response) (*Response, error) {
	for _, set := range p {
		if set.OnResponse == nil {
			continue
		}
		next, err := set.OnResponse(resp)
		if err != nil {
			return nil, err
		}
		if next != nil {
			resp = next
		}
	}
	return resp, nil
}

func (p pipeline) responseError(err error) (*Response, error) {
	for _, set := range p {
		if set.OnResponseError == nil {
			continue
		}
		resp, hookErr := set.OnResponseError(err)
		if hookErr == nil && resp != nil {
			return resp, nil
		}
		if hookErr != nil {
			err = hookErr
		}
	}
	return nil, err
}

func (p pipeline) catch(err error) error {
	for _, set := range p {
		if set.OnErrorCatch == nil {
			continue
		}
		if out := set.OnErrorCatch(err); out != nil {
			err = out
		}
	}
	return err
}

// HeaderInterceptor sets a fixed header on every request.
func HeaderInterceptor(key, value string) Interceptors {
	return Interceptors{
		OnRequest: func(req *Request) (*Request, error) {
			if req.Header == nil {
				req.Header = http.Header{}
			}
			req.Header.Set(key, value)
			return req, nil
		},
	}
}

// BearerJWT signs a short-lived HS256 token per request and sends it in the
// Authorization header. claims is called for every request and may return nil.
func BearerJWT(secret []byte, ttl time.Duration, claims func(req *Request) jwt.MapClaims) Interceptors {
	return Interceptors{
		OnRequest: func(req *Request) (*Request, error) {
			now := time.Now()
			mc := jwt.MapClaims{}
			if claims != nil {
				for k, v := range claims(req) {
					mc[k] = v
				}
			}
			mc["iat"] = now.Unix()
			mc["exp"] = now.Add(ttl).Unix()

			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(secret)
			if err != nil {
				return nil, fmt.Errorf("sign bearer token: %w", err)
			}
			if req.Header == nil {
				req.Header = http.Header{}
			}
			req.Header.Set("Authorization", "Bearer "+signed)
			return req, nil
		},
	}
}
