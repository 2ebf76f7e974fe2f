// Package transport describes the outbound capability the bot core needs
// from a messaging platform.
package transport

import (
	"context"

	"github.com/m3rciful/taskbot/core/future"
)

// ParseMode selects how message text is interpreted by the platform.
type ParseMode string

const (
	// PlainText sends text as is.
	PlainText ParseMode = ""
	// MarkdownV2 enables Telegram MarkdownV2 formatting; text must be escaped.
	MarkdownV2 ParseMode = "MarkdownV2"
)

// Button is an inline keyboard button carrying an opaque payload.
type Button struct {
	Text string
	Data string
}

// Markup is an inline keyboard laid out in rows.
type Markup struct {
	Rows [][]Button
}

// Empty reports whether m has no buttons.
func (m *Markup) Empty() bool {
	if m == nil {
		return true
	}
	for _, r := range m.Rows {
		if len(r) > 0 {
			return false
		}
	}
	return true
}

// Message is one outbound chat message.
type Message struct {
	ChatID    int64
	Text      string
	ParseMode ParseMode
	Markup    *Markup
}

// Sender is the outbound side of the transport.
// Send blocks until the platform accepted the message; SendAsync returns immediately.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	SendAsync(ctx context.Context, msg Message) *future.Future[struct{}]
	AnswerButtonPress(ctx context.Context, pressID string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
