package reqflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "reqflow:"

// RedisCache is a ResponseCache shared between processes through Redis.
// Errors survive the round trip as *ClientError when they were one, and as
// *StoredError otherwise. Only messages are stored: a custom error type
// returned by OnErrorCatch reads back as a *StoredError with the same text,
// and a ClientError's Cause reads back as a *StoredError. Match cached errors
// by message or ClientError.Type, not by identity, when the cache is shared.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

// StoredError is an error read back from a remote cache.
type StoredError struct {
	Message string
}

func (e *StoredError) Error() string {
	return e.Message
}

type redisEntry struct {
	Status     CacheStatus `json:"status"`
	StatusCode int         `json:"status_code,omitempty"`
	Header     http.Header `json:"header,omitempty"`
	Data       []byte      `json:"data,omitempty"`
	Error      *redisError `json:"error,omitempty"`
	StoredAt   time.Time   `json:"stored_at"`
}

type redisError struct {
	Type        string `json:"type,omitempty"`
	Message     string `json:"message"`
	Method      string `json:"method,omitempty"`
	URL         string `json:"url,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	Cause       string `json:"cause,omitempty"`
}

// NewRedisCache creates a Redis-backed cache. Entries live for ttl unless the
// response's Cache-Control says otherwise.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		prefix:     defaultRedisPrefix,
		defaultTTL: ttl,
	}
}

// WithPrefix changes the key prefix and returns the cache.
func (c *RedisCache) WithPrefix(prefix string) *RedisCache {
	c.prefix = prefix
	return c
}

// Get returns the entry for key or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResult, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	result := &CachedResult{
		Status:   entry.Status,
		StoredAt: entry.StoredAt,
	}
	if entry.Status == CacheStatusSuccess || entry.StatusCode != 0 {
		result.Response = &Response{
			StatusCode: entry.StatusCode,
			Header:     entry.Header,
			Data:       entry.Data,
		}
	}
	if entry.Error != nil {
		result.Err = entry.Error.restore(result.Response)
	}
	return result, nil
}

// Set stores result under key. Responses marked no-store are skipped.
func (c *RedisCache) Set(ctx context.Context, key string, result *CachedResult) error {
	ttl, ok := resultTTL(result, c.defaultTTL)
	if !ok {
		return nil
	}

	entry := redisEntry{
		Status:   result.Status,
		StoredAt: result.StoredAt,
	}
	if result.Response != nil {
		entry.StatusCode = result.Response.StatusCode
		entry.Header = result.Response.Header
		entry.Data = result.Response.Data
	}
	if result.Err != nil {
		entry.Error = newRedisError(result.Err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Delete removes the entry for key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

func newRedisError(err error) *redisError {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		stored := &redisError{
			Type:        clientErr.Type,
			Message:     clientErr.Message,
			Method:      clientErr.Method,
			URL:         clientErr.URL,
			Fingerprint: clientErr.Fingerprint,
			StatusCode:  clientErr.StatusCode,
		}
		if clientErr.Cause != nil {
			stored.Cause = clientErr.Cause.Error()
		}
		return stored
	}
	return &redisError{Message: err.Error()}
}

func (e *redisError) restore(resp *Response) error {
	if e.Type == "" {
		return &StoredError{Message: e.Message}
	}
	restored := &ClientError{
		Type:        e.Type,
		Message:     e.Message,
		Method:      e.Method,
		URL:         e.URL,
		Fingerprint: e.Fingerprint,
		StatusCode:  e.StatusCode,
		Response:    resp,
	}
	if e.Cause != "" {
		restored.Cause = &StoredError{Message: e.Cause}
	}
	return restored
}
