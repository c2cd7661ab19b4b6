package reqflow

import (
	"context"
	"sync"
)

const (
	cancelSuffix    = "!cancel"
	cancelAllReason = "cancel"
)

// pendingToken is what the Canceler stores in a request's cancellation slot.
type pendingToken struct {
	key    string
	cancel context.CancelCauseFunc
}

// Canceler tracks in-flight requests by fingerprint so that a newer identical
// request can cancel the older one. At most one handle exists per fingerprint.
type Canceler struct {
	mu      sync.Mutex
	pending map[string]*pendingToken
}

// NewCanceler returns an empty tracker.
func NewCanceler() *Canceler {
	return &Canceler{
		pending: make(map[string]*pendingToken),
	}
}

// Register cancels any in-flight request sharing req's fingerprint, then
// records a fresh handle for req. The returned context is cancelled, with a
// *CancelledError cause, when the handle fires.
func (c *Canceler) Register(ctx context.Context, req *Request) context.Context {
	ctx, _ = c.register(ctx, req)
	return ctx
}

// register reports whether an earlier request was superseded.
func (c *Canceler) register(ctx context.Context, req *Request) (context.Context, bool) {
	key := Fingerprint(req)
	ctx, cancel := context.WithCancelCause(ctx)
	token := &pendingToken{key: key, cancel: cancel}

	c.mu.Lock()
	defer c.mu.Unlock()

	superseded := c.unregisterLocked(key)
	if _, exists := c.pending[key]; !exists {
		c.pending[key] = token
	}
	req.pending = token

	return ctx, superseded
}

// Unregister cancels and removes the handle registered under req's
// fingerprint. It is a no-op when none exists.
func (c *Canceler) Unregister(req *Request) {
	key := Fingerprint(req)
	if req.pending != nil {
		key = req.pending.key
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.unregisterLocked(key)
}

func (c *Canceler) unregisterLocked(key string) bool {
	token, ok := c.pending[key]
	if !ok {
		return false
	}
	token.cancel(&CancelledError{Reason: key + cancelSuffix})
	delete(c.pending, key)
	return true
}

// UnregisterAll cancels every tracked request and empties the tracker.
func (c *Canceler) UnregisterAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, token := range c.pending {
		token.cancel(&CancelledError{Reason: cancelAllReason})
	}
	c.pending = make(map[string]*pendingToken)
}

// release drops req's own handle once its call has settled. A handle that
// has since been replaced is left alone.
func (c *Canceler) release(req *Request) {
	token := req.pending
	if token == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[token.key] == token {
		delete(c.pending, token.key)
	}
}

// finish releases req and frees the context derived at registration.
func (c *Canceler) finish(req *Request) {
	c.release(req)
	if req.pending != nil {
		req.pending.cancel(nil)
	}
}

// Pending reports whether a handle is registered for the fingerprint.
func (c *Canceler) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[key]
	return ok
}

// Len returns the number of tracked requests.
func (c *Canceler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}
