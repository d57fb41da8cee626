package logger

import (
	"errors"
	"log/slog"
	"sync"

	"structured-persistent-logger/fields"
)

// Config is the threshold setting given to Init. Present is false when
// no threshold was configured at all, which disables logging.
type Config struct {
	Level   string
	Present bool
}

var ErrAlreadyInitialized = errors.New("logger already initialized")

var (
	initMu sync.Mutex
	active *Handler
)

// Init builds a Handler over fields.Default() with the threshold from cfg
// and installs it as the slog default. It may only succeed once per
// process; later calls return ErrAlreadyInitialized and change nothing.
func Init(cfg Config) (*Handler, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if active != nil {
		return nil, ErrAlreadyInitialized
	}

	h := NewHandler(fields.Default(), &Options{
		Level: ParseLevel(cfg.Level, cfg.Present),
	})
	slog.SetDefault(slog.New(h))
	active = h
	return h, nil
}

// MustInit is Init for callers that treat a second registration as a
// programming error.
func MustInit(cfg Config) *Handler {
	h, err := Init(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

// Active returns the registered handler, or nil before Init.
func Active() *Handler {
	initMu.Lock()
	defer initMu.Unlock()
	return active
}
