package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/callbacks"
	"github.com/m3rciful/taskbot/core/telegram/helpers"
)

// Kind names the update variant for logs and rate limit exclusions.
func Kind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.EditedMessage != nil:
		return "edited_message"
	case upd.MyChatMember != nil:
		return "my_chat_member"
	}
	return "other"
}

// LoggerMiddleware writes one receipt line and one completion line per update
// and installs the request context used by downstream handlers.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ctx := helpers.BuildContext(c)
		upd := c.Update()

		attrs := []slog.Attr{
			slog.String("kind", Kind(upd)),
			slog.Int("update_id", upd.ID),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs,
				slog.Int64("chat_id", chat.ID),
				slog.String("chat_type", string(chat.Type)),
			)
		}
		if user := c.Sender(); user != nil {
			attrs = append(attrs, slog.Int64("user_id", user.ID))
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
		}
		switch {
		case upd.Callback != nil:
			attrs = append(attrs, slog.String("cb_tag", logger.SanitizeLimit(callbacks.Tag(upd.Callback), 64)))
		case upd.Message != nil && upd.Message.Text != "":
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)

		err := next(c)

		done := []slog.Attr{slog.Duration("duration", logger.Took(start))}
		if err != nil {
			done = append(done, slog.String("err", err.Error()))
		}
		logger.Debug(ctx, "tg", "update.done", done...)
		return err
	}
}
