package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structured-persistent-logger/config"
	"structured-persistent-logger/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		present  bool
		expected slog.Level
	}{
		{name: "absent", token: "", present: false, expected: logger.LevelOff},
		{name: "absent ignores token", token: "debug", present: false, expected: logger.LevelOff},
		{name: "error", token: "error", present: true, expected: logger.LevelError},
		{name: "warn upper", token: "WARN", present: true, expected: logger.LevelWarn},
		{name: "info mixed", token: "Info", present: true, expected: logger.LevelInfo},
		{name: "debug", token: "debug", present: true, expected: logger.LevelDebug},
		{name: "trace", token: "trace", present: true, expected: logger.LevelTrace},
		{name: "unknown", token: "verbose", present: true, expected: logger.LevelInfo},
		{name: "empty", token: "", present: true, expected: logger.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, logger.ParseLevel(tt.token, tt.present))
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "TRACE", logger.LevelName(logger.LevelTrace))
	assert.Equal(t, "DEBUG", logger.LevelName(logger.LevelDebug))
	assert.Equal(t, "INFO", logger.LevelName(logger.LevelInfo))
	assert.Equal(t, "WARN", logger.LevelName(logger.LevelWarn))
	assert.Equal(t, "ERROR", logger.LevelName(logger.LevelError))
	assert.Equal(t, "INFO", logger.LevelName(logger.LevelInfo+2))
	assert.Equal(t, "ERROR", logger.LevelName(logger.LevelError+4))
}

// Registration is process-wide, so the whole lifecycle lives in one test.
func TestInit_RegistersOnce(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	const env = "SPL_INIT_TEST_LEVEL"
	t.Setenv(env, "warn")

	require.Nil(t, logger.Active())

	h, err := logger.Init(config.LoadLogConfig(env).Logger())
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Same(t, h, logger.Active())
	assert.Same(t, h, slog.Default().Handler())

	ctx := context.Background()
	assert.True(t, slog.Default().Enabled(ctx, logger.LevelError))
	assert.False(t, slog.Default().Enabled(ctx, logger.LevelInfo))

	again, err := logger.Init(logger.Config{Level: "trace", Present: true})
	assert.ErrorIs(t, err, logger.ErrAlreadyInitialized)
	assert.Nil(t, again)
	assert.Equal(t, logger.LevelWarn, logger.Active().Level())

	assert.Panics(t, func() {
		logger.MustInit(logger.Config{})
	})
}
