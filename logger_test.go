package reqflow

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

func (l *recordingLogger) contains(substr string) bool {
	for _, m := range l.messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestDefaultDebugConfig(t *testing.T) {
	config := DefaultDebugConfig()

	if config.Enabled {
		t.Error("Debug should be disabled by default")
	}
	if !config.LogRequests || !config.LogCache || !config.LogDedup {
		t.Error("All categories should be selected by default")
	}
	if config.RequestIDGen == nil {
		t.Fatal("RequestIDGen should be set")
	}

	id1, id2 := config.RequestIDGen(), config.RequestIDGen()
	if id1 == "" || id1 == id2 {
		t.Errorf("Expected unique request IDs, got %q and %q", id1, id2)
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Debug("debug message", "fingerprint", "get&/users")
	logger.Warn("warn message")

	out := buf.String()
	if !strings.Contains(out, "debug message") || !strings.Contains(out, "fingerprint=get&/users") {
		t.Errorf("Unexpected debug output: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("Expected WARN level in output: %s", out)
	}
}

func TestNewSlogLoggerNil(t *testing.T) {
	if NewSlogLogger(nil) == nil {
		t.Error("Expected logger backed by slog.Default")
	}
}

func TestDebugCategoriesAreRespected(t *testing.T) {
	ft := &fakeTransport{}
	logger := &recordingLogger{}
	config := DefaultDebugConfig()
	config.Enabled = true
	config.LogCache = false

	client := New(WithTransport(ft), WithDebugConfig(config), WithLogger(logger))
	if _, err := client.Get(t.Context(), testUsersURL, WithRequestCache(true)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if logger.contains("Cache miss") {
		t.Error("Cache logs should be suppressed when LogCache is false")
	}
	if !logger.contains("Starting request") {
		t.Error("Request logs should still be written")
	}
}

func TestDebugDisabledWritesNothing(t *testing.T) {
	ft := &fakeTransport{}
	logger := &recordingLogger{}

	client := New(WithTransport(ft), WithLogger(logger))
	if _, err := client.Get(t.Context(), testUsersURL); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(logger.messages()) != 0 {
		t.Errorf("Expected no logs, got %v", logger.messages())
	}
}
