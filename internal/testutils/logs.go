// Package testutils holds helpers shared by tests across packages.
package testutils

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LogEntry is one captured log record with its attributes flattened.
// Group names prefix their keys with a dot.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// String returns the attribute's value formatted with %v, or "" if absent.
func (e LogEntry) String(key string) string {
	v, ok := e.Attrs[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogRecorder is a slog.Handler that keeps every record in memory.
type LogRecorder struct {
	sink   *logSink
	attrs  []slog.Attr
	prefix string
}

// NewLogRecorder creates an empty recorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{sink: &logSink{}}
}

// Logger returns a logger writing to the recorder.
func (h *LogRecorder) Logger() *slog.Logger {
	return slog.New(h)
}

// Enabled implements slog.Handler. Every level is recorded.
func (h *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for _, a := range h.attrs {
		addAttr(entry.Attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(entry.Attrs, h.prefix, a)
		return true
	})

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.entries = append(h.sink.entries, entry)
	return nil
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			addAttr(dst, prefix+a.Key+".", ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// WithAttrs implements slog.Handler.
func (h *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *LogRecorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// Entries returns a copy of everything recorded so far.
func (h *LogRecorder) Entries() []LogEntry {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	out := make([]LogEntry, len(h.sink.entries))
	copy(out, h.sink.entries)
	return out
}

// Find returns the entries whose message equals msg.
func (h *LogRecorder) Find(msg string) []LogEntry {
	var out []LogEntry
	for _, e := range h.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any message or attribute value contains s.
func (h *LogRecorder) Contains(s string) bool {
	for _, e := range h.Entries() {
		if strings.Contains(e.Message, s) {
			return true
		}
		for _, v := range e.Attrs {
			if strings.Contains(fmt.Sprint(v), s) {
				return true
			}
		}
	}
	return false
}

// Reset drops every recorded entry.
func (h *LogRecorder) Reset() {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.entries = nil
}
