package command

import (
	"context"
	"log/slog"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/transport"
	"github.com/m3rciful/taskbot/core/update"
)

// Notifier turns a non-success Result into the single user-visible reply.
type Notifier interface {
	Notify(ctx context.Context, chat update.Chat, r Result)
}

// Default reply texts.
const (
	TextInternalError  = "⚠️ Internal error, please try again."
	TextInvalidSyntax  = "⚠️ Invalid syntax."
	TextUnknownCommand = "🤔 Unknown command. Send /start to see what I can do."
)

// Notices sends plain-text notices through a transport.Sender.
// The unknown-command notice is only sent to one-to-one chats.
type Notices struct {
	Sender         transport.Sender
	InternalError  string
	InvalidSyntax  string
	UnknownCommand string
}

// NewNotices returns Notices with the default texts.
func NewNotices(s transport.Sender) *Notices {
	return &Notices{
		Sender:         s,
		InternalError:  TextInternalError,
		InvalidSyntax:  TextInvalidSyntax,
		UnknownCommand: TextUnknownCommand,
	}
}

func (n *Notices) Notify(ctx context.Context, chat update.Chat, r Result) {
	var text string
	switch r {
	case Success:
		return
	case InvalidSyntax:
		text = n.InvalidSyntax
	case UnknownCommand:
		if !chat.Private {
			return
		}
		text = n.UnknownCommand
	default:
		text = n.InternalError
	}
	if err := n.Sender.Send(ctx, transport.Message{ChatID: chat.ID, Text: text}); err != nil {
		logger.Warn(ctx, "command", "notice.failed",
			slog.String("result", r.String()),
			slog.String("err", err.Error()),
		)
	}
}
