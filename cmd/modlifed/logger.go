package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoCodeAlone/modlife"
)

// newLogger builds the daemon logger. text and json use log/slog; console
// is zerolog's colored human-readable writer.
func newLogger(level, format string, out io.Writer) (modlife.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	case "console":
		zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(zerologLevel(lvl)).
			With().Timestamp().Logger()
		return &zerologLogger{logger: zl}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func zerologLevel(lvl slog.Level) zerolog.Level {
	switch {
	case lvl <= slog.LevelDebug:
		return zerolog.DebugLevel
	case lvl <= slog.LevelInfo:
		return zerolog.InfoLevel
	case lvl <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// zerologLogger adapts zerolog to the key/value Logger interface.
type zerologLogger struct {
	logger zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, args ...any) { z.log(z.logger.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { z.log(z.logger.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { z.log(z.logger.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { z.log(z.logger.Error(), msg, args) }

func (z *zerologLogger) log(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 == len(args) {
			event = event.Str("!BADKEY", key)
			break
		}
		event = addField(event, key, args[i+1])
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	case fmt.Stringer:
		return event.Stringer(key, v)
	default:
		return event.Interface(key, v)
	}
}
