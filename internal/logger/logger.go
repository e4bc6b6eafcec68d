package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing to stderr with a console
// writer. It ensures the logger is initialized only once.
func Init(level string) {
	once.Do(func() {
		defaultLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(parseLevel(level)).
			With().Timestamp().Logger()
	})
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init("info")
	return &defaultLogger
}

// Debug logs a debug message with optional key/value pairs.
func Debug(msg string, kv ...any) {
	event(Get().Debug(), kv).Msg(msg)
}

// Info logs an informational message with optional key/value pairs.
func Info(msg string, kv ...any) {
	event(Get().Info(), kv).Msg(msg)
}

// Warn logs a warning message with optional key/value pairs.
func Warn(msg string, kv ...any) {
	event(Get().Warn(), kv).Msg(msg)
}

// Error logs an error message with optional key/value pairs.
func Error(msg string, err error, kv ...any) {
	event(Get().Error().Err(err), kv).Msg(msg)
}

func event(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}
