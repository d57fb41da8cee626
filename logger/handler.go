package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"structured-persistent-logger/fields"
)

// Reserved document keys. They are written after every other field and
// therefore replace persistent fields or attributes of the same name.
const (
	KeyLevel     = "level"
	KeyMessage   = "message"
	KeyTimestamp = "timestamp"
)

// TimestampLayout is RFC 3339 with nanoseconds and a numeric offset.
const TimestampLayout = "2006-01-02T15:04:05.000000000-07:00"

type Options struct {
	// Writer receives one JSON document per line. Defaults to os.Stdout.
	Writer io.Writer
	// Level is the threshold. Defaults to LevelOff.
	Level slog.Leveler
	// Clock stamps records that carry no time. Defaults to time.Now.
	Clock func() time.Time
}

// Handler is a slog.Handler that merges the persistent fields of a
// fields.Store into every record and writes it as a JSON line.
type Handler struct {
	store  *fields.Store
	out    *lineWriter
	level  slog.Leveler
	clock  func() time.Time
	attrs  map[string]any
	groups []string
}

type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) writeLine(line []byte) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = lw.w.Write(line)
}

// NewHandler returns a handler over store (fields.Default() if nil).
// A nil opts uses every default, which leaves logging off.
func NewHandler(store *fields.Store, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	h := &Handler{
		store: store,
		out:   &lineWriter{w: opts.Writer},
		level: opts.Level,
		clock: opts.Clock,
		attrs: make(map[string]any),
	}
	if h.store == nil {
		h.store = fields.Default()
	}
	if h.out.w == nil {
		h.out.w = os.Stdout
	}
	if h.level == nil {
		h.level = LevelOff
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	return h
}

// Enabled reports whether level is at least as severe as the threshold.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes r. It assumes Enabled already returned true for r.Level.
// Records that cannot be serialized are dropped and Handle still returns
// nil: a logging failure must not reach the caller.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	doc := h.store.Snapshot()
	for k, v := range cloneMap(h.attrs) {
		doc[k] = v
	}

	if r.NumAttrs() > 0 {
		target := descend(doc, h.groups)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(target, a)
			return true
		})
	}

	ts := r.Time
	if ts.IsZero() {
		ts = h.clock()
	}
	doc[KeyLevel] = LevelName(r.Level)
	doc[KeyMessage] = r.Message
	doc[KeyTimestamp] = FormatTimestamp(ts)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	h.out.writeLine(append(data, '\n'))
	return nil
}

// Flush is a no-op; every line is written directly.
func (h *Handler) Flush() error {
	return nil
}

func (h *Handler) Level() slog.Level {
	return h.level.Level()
}

// WithAttrs returns a handler that adds attrs, nested under the open
// groups, to every record. Persistent fields of the same name are replaced.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = cloneMap(h.attrs)
	target := descend(h2.attrs, h.groups)
	for _, a := range attrs {
		addAttr(target, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(slices.Clip(h.groups), name)
	return &h2
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// descend walks m along path, creating or replacing nested maps as needed,
// and returns the innermost map.
func descend(m map[string]any, path []string) map[string]any {
	for _, g := range path {
		next, ok := m[g].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[g] = next
		}
		m = next
	}
	return m
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return
		}
		target := m
		if a.Key != "" {
			target = descend(m, []string{a.Key})
		}
		for _, ga := range group {
			addAttr(target, ga)
		}
		return
	}
	m[a.Key] = attrValue(a.Value)
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return FormatTimestamp(v.Time())
	case slog.KindDuration:
		return v.Duration().Nanoseconds()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner, ok := v.(map[string]any); ok {
			out[k] = cloneMap(inner)
			continue
		}
		out[k] = v
	}
	return out
}
