package logger_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structured-persistent-logger/fields"
	"structured-persistent-logger/logger"
)

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, level slog.Level) (*logger.Handler, *fields.Store, *bytes.Buffer) {
	t.Helper()
	store := fields.NewStore()
	buf := &bytes.Buffer{}
	h := logger.NewHandler(store, &logger.Options{
		Writer: buf,
		Level:  level,
		Clock:  func() time.Time { return fixedTime },
	})
	return h, store, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var docs []map[string]any
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &doc), "line %q", line)
		docs = append(docs, doc)
	}
	return docs
}

func TestHandler_EndToEnd(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelDebug)
	store.Set("request_id", "abc")

	slog.New(h).Info("hello")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, `"request_id":"abc"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"message":"hello"`)

	docs := decodeLines(t, buf)
	require.Len(t, docs, 1)
	ts, ok := docs[0]["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(ts, "+00:00"))
}

func TestHandler_ReservedKeysWin(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelTrace)
	store.Set("level", "custom")
	store.Set("message", "custom")
	store.Set("timestamp", "custom")

	slog.New(h).Info("real", "level", "attr")

	docs := decodeLines(t, buf)
	require.Len(t, docs, 1)
	assert.Equal(t, "INFO", docs[0]["level"])
	assert.Equal(t, "real", docs[0]["message"])
	assert.NotEqual(t, "custom", docs[0]["timestamp"])
}

func TestHandler_DocumentShape(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelInfo)
	store.Set("service", "api")
	store.Set("meta", map[string]any{"zone": "eu"})

	rec := slog.NewRecord(time.Time{}, slog.LevelWarn, "disk low", 0)
	rec.AddAttrs(slog.Int("free_mb", 12))
	require.NoError(t, h.Handle(context.Background(), rec))

	assert.Equal(t,
		`{"free_mb":12,"level":"WARN","message":"disk low","meta":{"zone":"eu"},"service":"api","timestamp":"2024-01-01T00:00:00.000000000+00:00"}`+"\n",
		buf.String())
}

func TestHandler_AttributePrecedence(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelInfo)
	store.Set("user", "persistent")
	store.Set("env", "prod")

	l := slog.New(h).With("user", "handler")
	l.Info("one")
	l.Info("two", "user", "record")

	docs := decodeLines(t, buf)
	require.Len(t, docs, 2)
	assert.Equal(t, "handler", docs[0]["user"])
	assert.Equal(t, "record", docs[1]["user"])
	assert.Equal(t, "prod", docs[1]["env"])
}

func TestHandler_Groups(t *testing.T) {
	h, _, buf := newTestHandler(t, logger.LevelInfo)

	l := slog.New(h).WithGroup("http").With("method", "GET")
	l.Info("req", "status", 200, slog.Group("client", "ip", "10.0.0.1"))
	slog.New(h).WithGroup("empty").Info("no attrs")

	docs := decodeLines(t, buf)
	require.Len(t, docs, 2)
	assert.Equal(t, map[string]any{
		"method": "GET",
		"status": float64(200),
		"client": map[string]any{"ip": "10.0.0.1"},
	}, docs[0]["http"])
	_, ok := docs[1]["empty"]
	assert.False(t, ok)
}

func TestHandler_AttrValueKinds(t *testing.T) {
	h, _, buf := newTestHandler(t, logger.LevelInfo)

	slog.New(h).Info("kinds",
		"err", errors.New("boom"),
		"took", 2*time.Millisecond,
		"at", time.Date(2024, 5, 6, 7, 8, 9, 10, time.FixedZone("X", 3600)),
	)

	docs := decodeLines(t, buf)
	require.Len(t, docs, 1)
	assert.Equal(t, "boom", docs[0]["err"])
	assert.Equal(t, float64(2_000_000), docs[0]["took"])
	assert.Equal(t, "2024-05-06T06:08:09.000000010+00:00", docs[0]["at"])
}

func TestHandler_DropsUnserializableRecord(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelInfo)
	store.Set("bad", make(chan int))

	rec := slog.NewRecord(fixedTime, slog.LevelError, "lost", 0)
	assert.NoError(t, h.Handle(context.Background(), rec))
	assert.Empty(t, buf.String())

	store.Clear()
	require.NoError(t, h.Handle(context.Background(), rec))
	assert.Len(t, decodeLines(t, buf), 1)
}

func TestHandler_KeepsWritingAfterRejectedBulkSet(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelInfo)
	store.Set("service", "api")

	err := store.TrySetMany(
		fields.KV("nested", map[string]any{"c": make(chan int)}),
		fields.KV("list", []any{func() {}}),
	)
	require.ErrorIs(t, err, fields.ErrConversion)

	slog.New(h).Info("still here")

	docs := decodeLines(t, buf)
	require.Len(t, docs, 1)
	assert.Equal(t, "still here", docs[0]["message"])
	assert.Equal(t, "api", docs[0]["service"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestHandler_IgnoresWriteErrors(t *testing.T) {
	h := logger.NewHandler(fields.NewStore(), &logger.Options{Writer: failingWriter{}, Level: logger.LevelInfo})
	rec := slog.NewRecord(fixedTime, slog.LevelInfo, "x", 0)
	assert.NoError(t, h.Handle(context.Background(), rec))
	assert.NoError(t, h.Flush())
}

func TestHandler_Enabled(t *testing.T) {
	ctx := context.Background()

	warn, _, _ := newTestHandler(t, logger.LevelWarn)
	assert.False(t, warn.Enabled(ctx, logger.LevelInfo))
	assert.True(t, warn.Enabled(ctx, logger.LevelWarn))
	assert.True(t, warn.Enabled(ctx, logger.LevelError))

	off := logger.NewHandler(fields.NewStore(), nil)
	assert.False(t, off.Enabled(ctx, logger.LevelError))
	assert.Equal(t, logger.LevelOff, off.Level())

	fallback, _, _ := newTestHandler(t, logger.ParseLevel("verbose", true))
	assert.True(t, fallback.Enabled(ctx, logger.LevelInfo))
	assert.False(t, fallback.Enabled(ctx, logger.LevelDebug))
}

func TestHandler_FilteredRecordsAreNotWritten(t *testing.T) {
	h, _, buf := newTestHandler(t, logger.LevelWarn)
	l := slog.New(h)
	l.Info("hidden")
	l.Debug("hidden")
	l.Log(context.Background(), logger.LevelTrace, "hidden")
	l.Error("shown")

	docs := decodeLines(t, buf)
	require.Len(t, docs, 1)
	assert.Equal(t, "ERROR", docs[0]["level"])
}

func TestHandler_ConcurrentEmitWritesWholeLines(t *testing.T) {
	h, store, buf := newTestHandler(t, logger.LevelInfo)
	l := slog.New(h)

	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Go(func() {
			for j := 0; j < 50; j++ {
				store.Set("worker", i)
				l.Info("tick", "j", j)
			}
		})
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, buf), 400)
}
