package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{ name string }

var (
	metaKey   = ctxKey{"meta"}
	loggerKey = ctxKey{"logger"}
)

// meta is the correlation record attached to every inbound update.
// It is copied on write so parent contexts never observe child changes.
type meta struct {
	rid      string
	traceID  string
	spanID   string
	handler  string
	updateID int
	userID   int64
	chatID   int64
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	if m, ok := ctx.Value(metaKey).(meta); ok {
		return m
	}
	return meta{}
}

func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey, m)
}

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext extracts slog.Logger from context or returns global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches request correlation id into context.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom extracts rid from context if present.
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta attaches update, user and chat identifiers to context.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler stores handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// HandlerFrom returns handler identifier from context if present.
func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

// WithTrace attaches trace and span identifiers to context. Empty values keep the current ones.
func WithTrace(ctx context.Context, traceID, spanID string) context.Context {
	return withMeta(ctx, func(m *meta) {
		if traceID != "" {
			m.traceID = traceID
		}
		if spanID != "" {
			m.spanID = spanID
		}
	})
}

// TraceIDFrom extracts trace id from context.
func TraceIDFrom(ctx context.Context) string { return metaFrom(ctx).traceID }

// SpanIDFrom extracts span id from context.
func SpanIDFrom(ctx context.Context) string { return metaFrom(ctx).spanID }

// UserIDFrom extracts the Telegram user id from context.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom extracts the Telegram chat id from context.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// UpdateIDFrom extracts update identifier from context.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

func addContextFields(ctx context.Context, fields map[string]any) {
	m := metaFrom(ctx)
	setIfAbsent := func(key string, val any, empty bool) {
		if empty {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	setIfAbsent("rid", m.rid, m.rid == "")
	setIfAbsent("trace_id", m.traceID, m.traceID == "")
	setIfAbsent("span_id", m.spanID, m.spanID == "")
	setIfAbsent("update_id", m.updateID, m.updateID == 0)
	setIfAbsent("user_id", m.userID, m.userID == 0)
	setIfAbsent("chat_id", m.chatID, m.chatID == 0)
	setIfAbsent("handler", m.handler, m.handler == "")
}
