package logging

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// captureHandler records which messages got through the filter.
type captureHandler struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (c *captureHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, r.Message)
	return nil
}

func (c *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *captureHandler) WithGroup(string) slog.Handler      { return c }

func (c *captureHandler) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func TestDefaultReturnsDiscardForNil(t *testing.T) {
	logger := Default(nil)
	// Must not panic, and must be disabled at every level.
	logger.Info("dropped")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger must not be enabled")
	}
}

func TestDefaultPassesThroughNonNil(t *testing.T) {
	capture := &captureHandler{}
	logger := slog.New(capture)
	if Default(logger) != logger {
		t.Fatal("Default must return the provided logger unchanged")
	}
}

func TestFilterDropsBelowDefaultLevel(t *testing.T) {
	capture := &captureHandler{}
	logger := slog.New(NewComponentFilterHandler(capture, slog.LevelInfo))

	logger.Debug("too quiet")
	logger.Info("loud enough")

	got := capture.got()
	if len(got) != 1 || got[0] != "loud enough" {
		t.Fatalf("messages = %v, want just 'loud enough'", got)
	}
}

func TestSetLevelAffectsScopedLoggers(t *testing.T) {
	capture := &captureHandler{}
	root := NewComponentFilterHandler(capture, slog.LevelInfo)

	// Scope first, adjust after: the change must reach the already
	// derived logger.
	acceptor := slog.New(root).With("component", "acceptor")
	store := slog.New(root).With("component", "store")
	root.SetLevel("acceptor", slog.LevelDebug)

	acceptor.Debug("acceptor debug")
	store.Debug("store debug")

	got := capture.got()
	if len(got) != 1 || got[0] != "acceptor debug" {
		t.Fatalf("messages = %v, want just 'acceptor debug'", got)
	}
}

func TestSetDefaultLevelRaisesVerbosity(t *testing.T) {
	capture := &captureHandler{}
	root := NewComponentFilterHandler(capture, slog.LevelInfo)
	logger := slog.New(root).With("component", "handler")

	logger.Debug("before")
	root.SetDefaultLevel(slog.LevelDebug)
	logger.Debug("after")

	got := capture.got()
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("messages = %v, want just 'after'", got)
	}
}

func TestComponentAttrOnRecordIsFiltered(t *testing.T) {
	capture := &captureHandler{}
	root := NewComponentFilterHandler(capture, slog.LevelInfo)
	root.SetLevel("seccomp", slog.LevelWarn)
	logger := slog.New(root)

	// Component supplied per record rather than via With.
	logger.Info("filtered", "component", "seccomp")
	logger.Warn("passes", "component", "seccomp")

	got := capture.got()
	if len(got) != 1 || got[0] != "passes" {
		t.Fatalf("messages = %v, want just 'passes'", got)
	}
}

func TestLevelReportsEffectiveMinimum(t *testing.T) {
	root := NewComponentFilterHandler(&captureHandler{}, slog.LevelInfo)
	if root.Level("store") != slog.LevelInfo {
		t.Fatal("expected default level for an unconfigured component")
	}
	root.SetLevel("store", slog.LevelError)
	if root.Level("store") != slog.LevelError {
		t.Fatal("expected the explicitly set level")
	}
}

func TestWithGroupKeepsFiltering(t *testing.T) {
	capture := &captureHandler{}
	root := NewComponentFilterHandler(capture, slog.LevelInfo)
	logger := slog.New(root).With("component", "acceptor").WithGroup("conn")

	logger.Debug("dropped")
	logger.Info("kept")

	got := capture.got()
	if len(got) != 1 || got[0] != "kept" {
		t.Fatalf("messages = %v, want just 'kept'", got)
	}
}
