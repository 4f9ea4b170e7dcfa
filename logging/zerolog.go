// Package logging adapts zerolog to the accounts Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/rs/zerolog"
)

// ZerologLogger implements accounts.Logger. Calls may use printf verbs or a
// message followed by key/value pairs.
type ZerologLogger struct {
	log zerolog.Logger
}

var _ accounts.Logger = (*ZerologLogger)(nil)

// NewZerologLogger wraps an existing logger
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

// New builds a logger writing to w. Console output is used when pretty is set.
func New(w io.Writer, level string, pretty bool) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return NewZerologLogger(zerolog.New(w).Level(lvl).With().Timestamp().Logger())
}

// With returns a child logger carrying the given component name
func (l *ZerologLogger) With(component string) *ZerologLogger {
	return &ZerologLogger{log: l.log.With().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debug(format string, args ...any) {
	write(l.log.Debug(), format, args...)
}

func (l *ZerologLogger) Info(format string, args ...any) {
	write(l.log.Info(), format, args...)
}

func (l *ZerologLogger) Warn(format string, args ...any) {
	write(l.log.Warn(), format, args...)
}

func (l *ZerologLogger) Error(format string, args ...any) {
	write(l.log.Error(), format, args...)
}

func write(evt *zerolog.Event, format string, args ...any) {
	if evt == nil {
		return
	}

	format = strings.TrimRight(format, "\n")

	if len(args) == 0 {
		evt.Msg(format)
		return
	}

	if strings.Contains(format, "%") {
		evt.Msgf(format, args...)
		return
	}

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			evt = evt.Interface("extra", args[i])
			break
		}
		key := fmt.Sprint(args[i])
		if err, ok := args[i+1].(error); ok {
			evt = evt.AnErr(key, err)
			continue
		}
		evt = evt.Interface(key, args[i+1])
	}
	evt.Msg(format)
}
