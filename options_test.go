package reqflow

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestWithOptions(t *testing.T) {
	httpClient := &http.Client{}
	cache := NewMemoryCache(time.Minute)
	client := New(
		WithHTTPClient(httpClient),
		WithTimeout(7*time.Second),
		WithCustomCache(cache),
		WithIgnoreRepeatRequests(true),
		WithInterceptors(HeaderInterceptor("X-A", "1"), HeaderInterceptor("X-B", "2")),
	)

	if client.httpClient != httpClient {
		t.Error("Expected custom HTTP client")
	}
	if httpClient.Timeout != 7*time.Second {
		t.Errorf("Expected timeout applied to HTTP client, got %v", httpClient.Timeout)
	}
	if client.cache != cache {
		t.Error("Expected custom cache")
	}
	if !client.ignoreRepeatRequests {
		t.Error("Expected repeat-request suppression enabled")
	}
	if len(client.interceptors) != 2 {
		t.Errorf("Expected 2 interceptor sets, got %d", len(client.interceptors))
	}
}

func TestWithHeadersReplacesKeys(t *testing.T) {
	client := New(WithHeaders(http.Header{"User-Agent": {"custom/1.0"}, "Accept": {"text/plain"}}))

	if got := client.headers.Values("User-Agent"); len(got) != 1 || got[0] != "custom/1.0" {
		t.Errorf("Expected User-Agent replaced, got %v", got)
	}
	if client.headers.Get("Accept") != "text/plain" {
		t.Error("Expected Accept header")
	}
}

func TestWithDebugOptions(t *testing.T) {
	client := New(WithSimpleLogger(), WithRequestIDGenerator(func() string { return "fixed" }))

	if !client.debug.Enabled || client.logger == nil {
		t.Fatal("Expected debug logging enabled")
	}
	if client.newRequestID() != "fixed" {
		t.Errorf("Expected custom request ID, got %q", client.newRequestID())
	}
	if !client.IsValid() {
		t.Errorf("Expected valid client, got %v", client.ValidationError())
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{"zero timeout", []Option{WithTimeout(0)}, "timeout must be positive"},
		{"huge timeout", []Option{WithTimeout(time.Hour)}, "timeout > 10m"},
		{"huge cache ttl", []Option{WithCache(48 * time.Hour)}, "cacheTTL > 24h"},
		{"zero cache ttl", []Option{WithCache(0)}, "cacheTTL must be positive"},
		{"debug without logger", []Option{WithDebug()}, "logger must be set"},
		{"debug without id generator", []Option{
			WithDebugConfig(&DebugConfig{Enabled: true}),
			WithLogger(&recordingLogger{}),
		}, "RequestIDGen must be set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(append(tt.opts, WithTransport(&fakeTransport{}))...)
			if client.IsValid() {
				t.Fatal("Expected validation error")
			}
			if err := client.ValidationError(); !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInvalidClientStillServesRequests(t *testing.T) {
	ft := &fakeTransport{}
	client := New(WithTransport(ft), WithTimeout(time.Hour))

	if client.IsValid() {
		t.Fatal("Expected validation error")
	}
	if _, err := client.Get(t.Context(), testUsersURL); err != nil {
		t.Errorf("Validation warnings should not block requests, got %v", err)
	}
}
