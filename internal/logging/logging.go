// Package logging provides the daemon's structured logging utilities.
//
// Logging is dependency-injected, never global: main() builds one base
// handler, wraps it in a ComponentFilterHandler, and every component
// receives a logger scoped with its own "component" attribute at
// construction time. Components never call slog.SetDefault. Log points
// sit at lifecycle boundaries (startup, commit, shutdown, connection
// teardown), not inside receive loops.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. The
// standard pattern for optional logger parameters:
//
//	func Open(cfg Config) (*Gateway, error) {
//	    logger := logging.Default(cfg.Logger).With("component", "store")
//	    ...
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// filterState is shared by a ComponentFilterHandler and every handler
// derived from it via WithAttrs/WithGroup, so level changes made
// through the root reach all scoped loggers. Reads are lock-free; the
// per-component map is copy-on-write.
type filterState struct {
	defaultLevel atomic.Int64
	levels       atomic.Pointer[map[string]slog.Level]
}

// ComponentFilterHandler filters records by the "component" attribute
// their logger was scoped with, against a per-component minimum level.
// Components without an explicit level fall back to a shared default.
// This lets the daemon raise verbosity for one component (say, the
// acceptor) at runtime without the components knowing levels exist.
type ComponentFilterHandler struct {
	next      slog.Handler
	state     *filterState
	component string // resolved from the WithAttrs chain, "" if unscoped
}

// NewComponentFilterHandler wraps next with component-level filtering.
// defaultLevel applies to components without an explicit level.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	st := &filterState{}
	st.defaultLevel.Store(int64(defaultLevel))
	empty := make(map[string]slog.Level)
	st.levels.Store(&empty)
	return &ComponentFilterHandler{next: next, state: st}
}

// Enabled defers the decision to Handle, where the component attribute
// is known.
func (h *ComponentFilterHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle drops the record if it is below the minimum level for its
// component, otherwise forwards it to the wrapped handler.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "component" {
				if s, ok := a.Value.Resolve().Any().(string); ok {
					component = s
				}
				return false
			}
			return true
		})
	}

	minLevel := slog.Level(h.state.defaultLevel.Load())
	if component != "" {
		if level, ok := (*h.state.levels.Load())[component]; ok {
			minLevel = level
		}
	}
	if r.Level < minLevel {
		return nil
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs scopes a derived handler. A "component" attribute pins the
// derived handler's component for filtering.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	component := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			if s, ok := a.Value.Resolve().Any().(string); ok {
				component = s
			}
		}
	}
	return &ComponentFilterHandler{
		next:      h.next.WithAttrs(attrs),
		state:     h.state,
		component: component,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ComponentFilterHandler{
		next:      h.next.WithGroup(name),
		state:     h.state,
		component: h.component,
	}
}

// SetLevel sets the minimum level for one component. Affects every
// logger derived from the same root handler, immediately.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	old := *h.state.levels.Load()
	next := make(map[string]slog.Level, len(old)+1)
	maps.Copy(next, old)
	next[component] = level
	h.state.levels.Store(&next)
}

// SetDefaultLevel changes the fallback level for components without an
// explicit one. The daemon's -d flag lowers it to Debug.
func (h *ComponentFilterHandler) SetDefaultLevel(level slog.Level) {
	h.state.defaultLevel.Store(int64(level))
}

// Level reports the effective minimum level for a component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	if level, ok := (*h.state.levels.Load())[component]; ok {
		return level
	}
	return slog.Level(h.state.defaultLevel.Load())
}
