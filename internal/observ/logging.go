package observ

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stdout, zerolog.InfoLevel, false)
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "event"
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func newLogger(w io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Setup replaces the process logger. level is a zerolog level name; an
// empty or unknown name means info.
func Setup(w io.Writer, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logMu.Lock()
	logger = newLogger(w, lvl, pretty)
	logMu.Unlock()
}

func current() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// Log emits an info-level event with the given fields
func Log(event string, kv map[string]any) {
	current().Info().Fields(kv).Msg(event)
}

// Debug emits a debug-level event
func Debug(event string, kv map[string]any) {
	current().Debug().Fields(kv).Msg(event)
}

// Warn emits a warn-level event
func Warn(event string, kv map[string]any) {
	current().Warn().Fields(kv).Msg(event)
}

// Error emits an error-level event carrying err
func Error(event string, err error, kv map[string]any) {
	current().Error().Err(err).Fields(kv).Msg(event)
}
