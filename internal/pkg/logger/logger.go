// Package logger adapts zerolog to the ports.Logger interface.
package logger

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/doeshing/sentry-go/internal/domain"
)

// Logger writes structured records through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// Options configures a Logger.
type Options struct {
	// Level is the minimum level written.
	Level zerolog.Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty selects the human-readable console writer.
	Pretty bool
}

// New builds a logger from opts.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return &Logger{zl: zerolog.New(out).Level(opts.Level).With().Timestamp().Logger()}
}

// FromEnv builds the CLI logger. --verbose or SENTRY_DEBUG enable debug
// output; otherwise SENTRY_LOG_LEVEL applies, defaulting to warn so hook
// output stays clean. Terminals get the console writer, pipes get JSON.
func FromEnv(verbose bool, out *os.File) *Logger {
	level := zerolog.WarnLevel
	if raw := os.Getenv(domain.EnvLogLevel); raw != "" {
		level = ParseLevel(raw)
	}
	if debug, _ := strconv.ParseBool(os.Getenv(domain.EnvDebug)); debug || verbose {
		level = zerolog.DebugLevel
	}
	if out == nil {
		out = os.Stderr
	}
	return New(Options{
		Level:  level,
		Output: out,
		Pretty: term.IsTerminal(int(out.Fd())),
	})
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.zl.Error().Err(err).Fields(fields).Msg(msg)
}
