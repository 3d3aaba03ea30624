// Package logging wraps zerolog for the engine. Components take a child
// logger via WithComponent; an optional Handler receives every emitted line.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(io.Discard)
)

// Handler receives every log line the engine emits. Details is always nil:
// structured fields attached at the call site are not forwarded.
type Handler func(level string, msg string, details map[string]any)

var (
	handlerMu sync.RWMutex
	handler   Handler
)

// Init configures the package logger. level is one of debug, info, warn,
// error; pretty switches to console output.
func Init(level string, pretty bool) {
	var zlLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		zlLevel = zerolog.DebugLevel
	case "warn", "warning":
		zlLevel = zerolog.WarnLevel
	case "error":
		zlLevel = zerolog.ErrorLevel
	default:
		zlLevel = zerolog.InfoLevel
	}

	var output io.Writer = os.Stderr
	if pretty {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	logger = zerolog.New(output).
		Level(zlLevel).
		With().
		Timestamp().
		Logger().
		Hook(handlerHook{})
	mu.Unlock()
}

// SetDebug toggles debug-level logging without reconfiguring the output.
func SetDebug(enabled bool) {
	mu.Lock()
	if enabled {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	mu.Unlock()
}

// SetHandler installs h as the log-line callback. Pass nil to remove it.
func SetHandler(h Handler) {
	handlerMu.Lock()
	handler = h
	handlerMu.Unlock()
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With().Str("component", component).Logger()
}

type handlerHook struct{}

func (handlerHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	handlerMu.RLock()
	h := handler
	handlerMu.RUnlock()
	if h != nil && msg != "" {
		h(level.String(), msg, nil)
	}
}
