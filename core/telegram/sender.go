package telegram

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/telegram/keyboard"
	"github.com/m3rciful/taskbot/core/telegram/sender"
	"github.com/m3rciful/taskbot/core/transport"
)

// API is the subset of *tele.Bot used for outbound calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	Delete(msg tele.Editable) error
}

// Sender implements transport.Sender over the Bot API. Every call goes through
// the dispatcher so that retries and the global rate apply uniformly.
type Sender struct {
	api  API
	disp *sender.Dispatcher
}

// NewSender returns a Sender calling api on disp's workers.
func NewSender(api API, disp *sender.Dispatcher) *Sender {
	return &Sender{api: api, disp: disp}
}

// SendAsync queues msg and returns a future completed once Telegram accepted it.
func (s *Sender) SendAsync(ctx context.Context, msg transport.Message) *future.Future[struct{}] {
	opts := &tele.SendOptions{
		ParseMode:   tele.ParseMode(msg.ParseMode),
		ReplyMarkup: keyboard.Inline(msg.Markup),
	}
	return s.disp.Submit(ctx, "send.text", "sendMessage", func() error {
		_, err := s.api.Send(tele.ChatID(msg.ChatID), msg.Text, opts)
		return err
	})
}

// Send queues msg and waits for the outcome.
func (s *Sender) Send(ctx context.Context, msg transport.Message) error {
	_, err := s.SendAsync(ctx, msg).Await(ctx)
	return err
}

// AnswerButtonPress acknowledges an inline button press without any text.
func (s *Sender) AnswerButtonPress(ctx context.Context, pressID string) error {
	f := s.disp.Submit(ctx, "callback.answer", "answerCallbackQuery", func() error {
		return s.api.Respond(&tele.Callback{ID: pressID})
	})
	_, err := f.Await(ctx)
	return err
}

// DeleteMessage removes a message from a chat.
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	f := s.disp.Submit(ctx, "message.delete", "deleteMessage", func() error {
		return s.api.Delete(msg)
	})
	_, err := f.Await(ctx)
	return err
}

var _ transport.Sender = (*Sender)(nil)
