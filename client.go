package reqflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ambiyansyah-risyal/reqflow/internal/singleflight"
)

// Client orchestrates requests over a Transport: it cancels superseded
// identical requests, shares in-flight and settled results for cacheable
// calls, and runs the interceptor pipeline. It is safe for concurrent use.
type Client struct {
	transport            Transport
	httpClient           *http.Client
	baseURL              string
	timeout              time.Duration
	headers              http.Header
	ignoreRepeatRequests bool
	interceptors         []Interceptors
	canceler             *Canceler
	cache                ResponseCache
	cacheTTL             time.Duration
	flights              *singleflight.Group[*Response]
	metrics              *MetricsCollector
	tracer               trace.Tracer
	debug                *DebugConfig
	logger               Logger
	validationError      error
}

// call holds the per-request state of one Request invocation. Fields are
// only touched by the calling goroutine.
type call struct {
	req        *Request
	key        string
	method     string
	endpoint   string
	requestID  string
	pipeline   pipeline
	dedup      bool
	superseded bool
	start      time.Time
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		timeout:  30 * time.Second,
		headers:  http.Header{"User-Agent": {UserAgent()}},
		canceler: NewCanceler(),
		cacheTTL: 5 * time.Minute,
		flights:  singleflight.New[*Response](),
		tracer:   defaultTracer(),
		debug:    DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.cache == nil {
		client.cache = NewMemoryCache(client.cacheTTL)
	}

	if client.transport == nil {
		if client.httpClient == nil {
			client.httpClient = &http.Client{Timeout: client.timeout}
		}
		transport, err := NewHTTPTransport(client.httpClient, client.baseURL)
		if err != nil {
			client.validationError = &ClientError{
				Type:    ErrorTypeValidation,
				Message: "invalid base URL",
				Cause:   err,
			}
			return client
		}
		client.transport = transport
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, NewRequest(http.MethodGet, url, nil, opts...))
}

// Post issues a POST request with data as the payload.
func (c *Client) Post(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, NewRequest(http.MethodPost, url, data, opts...))
}

// Put issues a PUT request with data as the payload.
func (c *Client) Put(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, NewRequest(http.MethodPut, url, data, opts...))
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, NewRequest(http.MethodDelete, url, nil, opts...))
}

// Upload issues a multipart POST. Content-Type starts as multipart/form-data
// and headers supplied through opts are applied on top, so on a conflicting
// key the caller's value wins.
func (c *Client) Upload(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	req := NewRequest(http.MethodPost, url, data, opts...)

	header := http.Header{}
	header.Set(contentTypeHeader, ContentTypeMultipart)
	for k, values := range req.Header {
		header.Del(k)
		for _, v := range values {
			header.Add(k, v)
		}
	}
	req.Header = header

	return c.Request(ctx, req)
}

// CancelAll cancels every request currently tracked for de-duplication. Each
// of them settles with a *CancelledError whose reason is "cancel".
func (c *Client) CancelAll() {
	c.canceler.UnregisterAll()
	c.metrics.RecordPendingRequests(0)

	if c.logger != nil && c.debug != nil && c.debug.Enabled && c.debug.LogDedup {
		c.logger.Debug("Cancelled all pending requests")
	}
}

// Request runs one call through de-duplication, the interceptor pipeline, the
// cache and the transport. It always settles exactly once: with a response,
// a *CancelledError, or the (possibly interceptor-transformed) failure.
func (c *Client) Request(ctx context.Context, req *Request) (*Response, error) {
	if c.transport == nil {
		return nil, c.validationError
	}
	req = req.clone()

	cl := &call{
		req:       req,
		key:       Fingerprint(req),
		method:    strings.ToUpper(req.Method),
		endpoint:  endpointOf(req.URL),
		requestID: c.newRequestID(),
		pipeline:  newPipeline(c.interceptors, req.Interceptors),
		dedup:     c.dedupEnabled(req),
		start:     time.Now(),
	}

	ctx, span := c.startSpan(ctx, cl)

	if c.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
		c.logger.Debug("Starting request", "requestID", cl.requestID, "method", cl.method, "url", req.URL, "fingerprint", cl.key)
	}
	c.metrics.RecordRequestStart(cl.method, cl.endpoint)

	resp, hit, err := c.execute(ctx, cl)
	c.canceler.finish(req)

	outcome := outcomeOf(hit, err)
	statusCode := statusCodeOf(resp, err)

	c.metrics.RecordRequestEnd(cl.method, cl.endpoint)
	c.metrics.RecordRequest(cl.method, cl.endpoint, outcome, time.Since(cl.start))
	endSpan(span, cl, outcome, statusCode, err)

	if c.debugEnabled(func(d *DebugConfig) bool { return d.LogRequests }) {
		c.logger.Debug("Request settled", "requestID", cl.requestID, "fingerprint", cl.key, "outcome", outcome, "statusCode", statusCode, "duration", time.Since(cl.start))
	}

	return resp, err
}

// execute reports hit=true when the result came from the cache, settled or
// pending, without a transport dispatch for this call.
func (c *Client) execute(ctx context.Context, cl *call) (*Response, bool, error) {
	if cl.dedup {
		ctx, cl.superseded = c.canceler.register(ctx, cl.req)
		c.metrics.RecordPendingRequests(c.canceler.Len())
		if cl.superseded {
			// The cancelled call's pending result must not satisfy this one.
			c.flights.Forget(cl.key)
			c.metrics.RecordDedupCancellation(cl.method, cl.endpoint)
			if c.debugEnabled(func(d *DebugConfig) bool { return d.LogDedup }) {
				c.logger.Debug("Cancelled previous identical request", "requestID", cl.requestID, "fingerprint", cl.key)
			}
		}
	}

	req := cl.req
	req.Header = mergeHeaders(c.headers, req.Header)
	next, err := cl.pipeline.request(req)
	if err != nil {
		c.canceler.release(cl.req)
		return nil, false, c.interceptorError(cl, "request interceptor failed", err)
	}
	if next != nil {
		req = next
	}
	if ctx.Err() != nil {
		return nil, false, cancellation(ctx)
	}

	if !req.Cache {
		resp, err := c.dispatch(ctx, cl, req)
		return resp, false, err
	}

	if cached, ok := c.lookupCache(ctx, cl); ok {
		c.canceler.release(cl.req)
		if cached.Status == CacheStatusError {
			return nil, true, cached.Err
		}
		return cached.Response.clone(), true, nil
	}

	for {
		// A superseded call must not open a flight that live callers join.
		if ctx.Err() != nil {
			return nil, false, cancellation(ctx)
		}

		var owner atomic.Bool
		resp, shared, err := c.flights.Do(ctx, cl.key, func() (*Response, error) {
			owner.Store(true)
			return c.dispatch(ctx, cl, req)
		})
		if ctx.Err() != nil {
			return nil, false, cancellation(ctx)
		}
		if owner.Load() {
			return resp, false, err
		}
		if IsCancelled(err) {
			// The joined flight belonged to a call that was cancelled after
			// opening it. This call is still live, so start over.
			c.flights.Forget(cl.key)
			continue
		}

		c.canceler.release(cl.req)
		c.metrics.RecordCacheHit(cl.method, cl.endpoint, "pending")
		if c.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
			c.logger.Debug("Joined in-flight request", "requestID", cl.requestID, "fingerprint", cl.key, "shared", shared)
		}
		return resp.clone(), true, err
	}
}

// dispatch hands the request to the transport and settles it: tracker
// release, response or error hooks, then cache storage.
func (c *Client) dispatch(ctx context.Context, cl *call, req *Request) (*Response, error) {
	if ctx.Err() != nil {
		return nil, cancellation(ctx)
	}
	c.metrics.RecordDispatch(cl.method, cl.endpoint)

	resp, err := c.transport.Dispatch(ctx, req)
	if ctx.Err() != nil {
		// Superseded or aborted: no hooks and nothing cached.
		return nil, cancellation(ctx)
	}

	c.canceler.release(cl.req)
	c.metrics.RecordPendingRequests(c.canceler.Len())

	if err == nil && resp == nil {
		err = errors.New("transport returned no response")
	}

	if err == nil {
		resp, err = cl.pipeline.response(resp)
		if err == nil {
			if req.Cache {
				c.store(ctx, cl, &CachedResult{Status: CacheStatusSuccess, Response: resp, StoredAt: time.Now()})
			}
			return resp, nil
		}
		err = c.interceptorError(cl, "response interceptor failed", err)
	} else {
		err = c.transportError(cl, err)
		c.metrics.RecordError(ErrorTypeTransport, cl.method, cl.endpoint)

		var recovered *Response
		recovered, err = cl.pipeline.responseError(err)
		if err == nil {
			if req.Cache {
				c.store(ctx, cl, &CachedResult{Status: CacheStatusSuccess, Response: recovered, StoredAt: time.Now()})
			}
			return recovered, nil
		}
	}

	err = cl.pipeline.catch(err)
	if req.Cache {
		c.store(ctx, cl, &CachedResult{Status: CacheStatusError, Err: err, StoredAt: time.Now()})
	}
	return nil, err
}

func (c *Client) lookupCache(ctx context.Context, cl *call) (*CachedResult, bool) {
	cached, err := c.cache.Get(ctx, cl.key)
	if err == nil && cached != nil {
		c.metrics.RecordCacheHit(cl.method, cl.endpoint, "settled")
		if c.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
			c.logger.Debug("Cache hit", "requestID", cl.requestID, "fingerprint", cl.key, "status", cached.Status)
		}
		return cached, true
	}

	if err != nil && !errors.Is(err, ErrCacheMiss) {
		c.metrics.RecordError("CacheRead", cl.method, cl.endpoint)
		if c.logger != nil {
			c.logger.Warn("Cache read failed", "requestID", cl.requestID, "fingerprint", cl.key, "error", err.Error())
		}
	}

	c.metrics.RecordCacheMiss(cl.method, cl.endpoint)
	if c.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
		c.logger.Debug("Cache miss", "requestID", cl.requestID, "fingerprint", cl.key)
	}
	return nil, false
}

// store is best effort: a failing cache never changes the call's result.
func (c *Client) store(ctx context.Context, cl *call, result *CachedResult) {
	if err := c.cache.Set(context.WithoutCancel(ctx), cl.key, result); err != nil {
		c.metrics.RecordError("CacheWrite", cl.method, cl.endpoint)
		if c.logger != nil {
			c.logger.Warn("Cache write failed", "requestID", cl.requestID, "fingerprint", cl.key, "error", err.Error())
		}
		return
	}

	if c.debugEnabled(func(d *DebugConfig) bool { return d.LogCache }) {
		c.logger.Debug("Result cached", "requestID", cl.requestID, "fingerprint", cl.key, "status", result.Status)
	}
}

func (c *Client) transportError(cl *call, err error) error {
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeTransport {
		clientErr.RequestID = cl.requestID
		clientErr.Fingerprint = cl.key
		clientErr.Duration = time.Since(cl.start)
		return clientErr
	}

	return &ClientError{
		Type:        ErrorTypeTransport,
		Message:     "network request failed",
		Cause:       err,
		RequestID:   cl.requestID,
		Method:      cl.method,
		URL:         cl.req.URL,
		Fingerprint: cl.key,
		Timestamp:   time.Now(),
		Duration:    time.Since(cl.start),
	}
}

func (c *Client) interceptorError(cl *call, message string, err error) error {
	c.metrics.RecordError(ErrorTypeInterceptor, cl.method, cl.endpoint)

	return &ClientError{
		Type:        ErrorTypeInterceptor,
		Message:     message,
		Cause:       err,
		RequestID:   cl.requestID,
		Method:      cl.method,
		URL:         cl.req.URL,
		Fingerprint: cl.key,
		Timestamp:   time.Now(),
		Duration:    time.Since(cl.start),
	}
}

func (c *Client) dedupEnabled(req *Request) bool {
	if req.IgnoreRepeatRequests != nil {
		return *req.IgnoreRepeatRequests
	}
	return c.ignoreRepeatRequests
}

func (c *Client) debugEnabled(category func(*DebugConfig) bool) bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil && category(c.debug)
}

func (c *Client) newRequestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// cancellation converts a done context into the error a cancelled call
// settles with.
func cancellation(ctx context.Context) error {
	cause := context.Cause(ctx)
	var cancelled *CancelledError
	if errors.As(cause, &cancelled) {
		return cancelled
	}
	if cause == nil {
		cause = ctx.Err()
	}
	return &CancelledError{Reason: cause.Error()}
}

// mergeHeaders returns defaults overlaid with override; override wins per key.
func mergeHeaders(defaults, override http.Header) http.Header {
	merged := defaults.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for k, values := range override {
		merged[k] = append([]string(nil), values...)
	}
	return merged
}

func outcomeOf(hit bool, err error) string {
	switch {
	case IsCancelled(err):
		return OutcomeCancelled
	case hit:
		return OutcomeCacheHit
	case err != nil:
		return OutcomeError
	default:
		return OutcomeSuccess
	}
}

func statusCodeOf(resp *Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)
	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
