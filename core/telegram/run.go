// Package telegram connects the bot core to the Telegram Bot API through telebot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/helpers"
	"github.com/m3rciful/taskbot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// NewBot builds the telebot client for cfg. Unless the configuration names the
// bot, getMe is called so that "/cmd@name" tags can be matched.
func NewBot(ctx context.Context, cfg *config.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	start := time.Now()
	poller := PollerFor(cfg)
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(HTTPOptions{PollTimeout: longPollTimeout(cfg)}),
		OnError: func(err error, c tele.Context) {
			logCtx := ctx
			if stored, ok := helpers.ContextFrom(c); ok {
				logCtx = stored
			}
			logger.LogEvent(logCtx, logger.TG, slog.LevelError, "tg.error", slog.String("err", sender.SanitizeError(err)))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", config.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.Took(start)),
		)
	default:
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", longPollTimeout(cfg)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return bot, nil
}

// BotName returns the configured username, falling back to the one reported by getMe.
func BotName(cfg *config.Config, bot *tele.Bot) string {
	if cfg != nil && cfg.Telegram.Username != "" {
		return cfg.Telegram.Username
	}
	if bot != nil && bot.Me != nil {
		return bot.Me.Username
	}
	return ""
}

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Config      *config.Config
	Commands    *command.Registry
	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool
}

// Run registers middlewares and routes, publishes the command menu and polls
// until ctx is done. A cancelled context is a clean stop.
func Run(ctx context.Context, bot *tele.Bot, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	if !opts.DisableWebhookCleanup && cfg.Telegram.RunMode == config.RunModeLongpoll {
		clearWebhook(ctx, bot)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
		logger.LogEvent(ctx, logger.TWire, slog.LevelDebug, "register.middleware", slog.String("name", mw.Name))
	}
	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
	if opts.Commands != nil {
		SetupCommands(ctx, bot, opts.Commands)
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "started", slog.String("bot", BotName(cfg, bot)))

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
	case <-runDone:
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "stopped")
	return nil
}

// webhookRemover is the part of *tele.Bot used to drop a stale webhook.
type webhookRemover interface {
	RemoveWebhook(dropPending ...bool) error
}

// clearWebhook removes a webhook left over from a previous deployment; getUpdates
// fails while one is set. Pending updates are kept.
func clearWebhook(ctx context.Context, bot webhookRemover) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("mode", "polling"),
			slog.String("err", sender.SanitizeError(err)),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "delete_webhook", slog.String("mode", "polling"))
}
