package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"github.com/m3rciful/taskbot/core/logger"
)

// cronLogger forwards gocron's own diagnostics to the structured logger.
type cronLogger struct{}

func newCronLogger() gocron.Logger { return cronLogger{} }

func (cronLogger) Debug(msg string, args ...any) { logCron(slog.LevelDebug, msg, args) }
func (cronLogger) Info(msg string, args ...any)  { logCron(slog.LevelInfo, msg, args) }
func (cronLogger) Warn(msg string, args ...any)  { logCron(slog.LevelWarn, msg, args) }
func (cronLogger) Error(msg string, args ...any) { logCron(slog.LevelError, msg, args) }

func logCron(level slog.Level, msg string, args []any) {
	logger.Event(context.Background(), component+".gocron", level, msg, cronAttrs(args)...)
}

// cronAttrs converts gocron key/value pairs; errors are flattened and job lookups tagged.
func cronAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			attrs = append(attrs, slog.Any("extra", args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = "arg"
		}
		if err, isErr := args[i+1].(error); isErr {
			attrs = append(attrs, slog.String("err", err.Error()))
			if errors.Is(err, gocron.ErrJobNotFound) {
				attrs = append(attrs, slog.String("err_kind", "job_not_found"))
			}
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
