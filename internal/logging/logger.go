// Package logging provides structured diagnostics on stderr.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const timeFormat = "15:04:05"

// Logger wraps zerolog
type Logger struct {
	zlog zerolog.Logger
}

// New creates a logger writing human-readable lines to w
func New(w io.Writer) *Logger {
	return &Logger{zlog: newZerolog(w)}
}

// NewDefault creates a logger on stderr. Stdout is left to session output.
func NewDefault() *Logger {
	return New(os.Stderr)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func newZerolog(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
	}).With().Timestamp().Logger()
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// SetVerbose switches the global level between debug and warn. Without
// --verbose only problems are shown so they do not interleave with the
// progress bar.
func SetVerbose(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}
