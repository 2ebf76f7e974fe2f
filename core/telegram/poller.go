package telegram

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// PollerFor returns the webhook or long poller selected by cfg.
func PollerFor(cfg *config.Config) tele.Poller {
	if cfg.Telegram.RunMode == config.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout: longPollTimeout(cfg),
		AllowedUpdates: []string{
			"message", "edited_message", "callback_query", "my_chat_member",
		},
	}
}

func longPollTimeout(cfg *config.Config) time.Duration {
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultLongPollTimeout
}
