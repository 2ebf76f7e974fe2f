// Package router triages inbound updates: commands go to the dispatcher,
// free text continues a pending dialog, button presses are replayed as commands.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/dialog"
	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/reconcile"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/transport"
	"github.com/m3rciful/taskbot/core/update"
)

// commandPattern matches "/name", "/name@bot" and either followed by arguments.
var commandPattern = regexp.MustCompile(`(?s)^/([^\s/@]+)(?:@([A-Za-z0-9_]+))?(\s.*)?$`)

// Options wires a Router.
type Options struct {
	// BotName is this bot's username; commands tagged for another bot are ignored.
	BotName    string
	Dispatcher *command.Dispatcher
	Notifier   command.Notifier
	Reconciler *reconcile.Reconciler
	States     *dialog.Store
	Tasks      storage.TaskStore
	Sender     transport.Sender
}

// Router is safe for concurrent use; it keeps no state between updates.
type Router struct {
	botName    string
	dispatcher *command.Dispatcher
	notifier   command.Notifier
	reconciler *reconcile.Reconciler
	states     *dialog.Store
	tasks      storage.TaskStore
	sender     transport.Sender
}

// New builds a Router from opts.
func New(opts Options) *Router {
	return &Router{
		botName:    strings.TrimPrefix(opts.BotName, "@"),
		dispatcher: opts.Dispatcher,
		notifier:   opts.Notifier,
		reconciler: opts.Reconciler,
		states:     opts.States,
		tasks:      opts.Tasks,
		sender:     opts.Sender,
	}
}

// pass is the per-update processing scope shared by synthetic re-entries.
type pass struct {
	session *reconcile.Session
}

// Handle processes one update to completion.
func (r *Router) Handle(ctx context.Context, u update.Update) {
	if logger.TraceIDFrom(ctx) == "" {
		ctx = logger.WithTrace(ctx, uuid.NewString(), "")
	}
	ctx = newSpan(ctx)
	p := &pass{session: r.reconciler.Session()}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "router", "router.panic",
				slog.Any("err", rec),
				slog.String("stack", string(debug.Stack())),
			)
			if cb, ok := u.(update.ChatBound); ok {
				r.notify(ctx, cb.InChat(), command.InternalError)
			}
		}
	}()

	switch u := u.(type) {
	case update.Message:
		logger.Debug(ctx, "router", "update.received", slog.String("kind", "message"))
		r.handleMessage(ctx, p, u)
	case update.ButtonPress:
		logger.Debug(ctx, "router", "update.received", slog.String("kind", "button"))
		r.handleButton(ctx, p, u)
	case update.Unsupported:
		logger.Debug(ctx, "router", "update.ignored",
			slog.String("kind", u.Kind),
			slog.String("reason", "unsupported"),
		)
	default:
		logger.Warn(ctx, "router", "update.ignored",
			slog.String("kind", fmt.Sprintf("%T", u)),
			slog.String("reason", "unknown_variant"),
		)
	}
}

func (r *Router) handleMessage(ctx context.Context, p *pass, msg update.Message) {
	if msg.Forwarded {
		logger.Debug(ctx, "router", "update.ignored", slog.String("reason", "forwarded"))
		return
	}
	m := commandPattern.FindStringSubmatch(msg.Text)
	if m == nil {
		r.handleFreeText(ctx, p, msg)
		return
	}
	if tag := m[2]; tag != "" && r.botName != "" && !strings.EqualFold(tag, r.botName) {
		logger.Debug(ctx, "router", "update.ignored",
			slog.String("reason", "foreign_bot"),
			slog.String("username", tag),
		)
		return
	}
	r.handleCommand(ctx, p, msg, "/"+m[1]+m[3])
}

func (r *Router) handleCommand(ctx context.Context, p *pass, msg update.Message, text string) {
	user, chat, err := r.ensureParticipants(ctx, p, msg)
	if err != nil {
		r.fail(ctx, msg, "reconcile.failed", err)
		return
	}
	if _, err := r.states.Delete(ctx, user.ID, chat.ID); err != nil {
		r.fail(ctx, msg, "dialog.clear_failed", err)
		return
	}
	r.dispatcher.Dispatch(ctx, command.Invocation{
		Text:    text,
		Message: msg,
		User:    user,
		Chat:    chat,
	})
}

func (r *Router) ensureParticipants(ctx context.Context, p *pass, msg update.Message) (storage.User, storage.Chat, error) {
	user, err := p.session.EnsureUser(ctx, msg.From)
	if err != nil {
		return storage.User{}, storage.Chat{}, err
	}
	chat, err := p.session.EnsureChat(ctx, msg.Chat, msg.From)
	if err != nil {
		return storage.User{}, storage.Chat{}, err
	}
	return user, chat, nil
}

func (r *Router) handleFreeText(ctx context.Context, p *pass, msg update.Message) {
	st, ix, err := r.pendingDialog(ctx, p, msg)
	if err != nil {
		r.fail(ctx, msg, "dialog.lookup_failed", err)
		return
	}
	if st == nil {
		r.notify(ctx, msg.Chat, command.UnknownCommand)
		return
	}

	ctx = logger.WithHandler(ctx, string(st.Type()))
	_, err = future.Call(func() (struct{}, error) {
		return struct{}{}, st.HandleMessage(ctx, ix)
	})
	if err != nil {
		r.fail(ctx, msg, "dialog.failed", err)
	}
}

// pendingDialog returns the state waiting for msg, or nil. Free text never creates users or chats.
func (r *Router) pendingDialog(ctx context.Context, p *pass, msg update.Message) (dialog.State, *dialog.Interaction, error) {
	user, err := p.session.LookupUser(ctx, msg.From)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	chat, err := p.session.LookupChat(ctx, msg.Chat)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	st, ok, err := r.states.Get(ctx, user.ID, chat.ID)
	if err != nil || !ok {
		return nil, nil, err
	}
	ix := &dialog.Interaction{
		Message: msg,
		User:    user,
		Chat:    chat,
		Tasks:   r.tasks,
		States:  r.states,
		Sender:  r.sender,
		Reenter: func(ctx context.Context, next update.Message) {
			r.handleMessage(newSpan(ctx), p, next)
		},
	}
	return st, ix, nil
}

func (r *Router) handleButton(ctx context.Context, p *pass, b update.ButtonPress) {
	defer func() {
		if err := r.sender.AnswerButtonPress(ctx, b.Press); err != nil {
			logger.Warn(ctx, "router", "callback.ack_failed", slog.String("err", err.Error()))
		}
	}()

	tag, arg := transport.ParsePayload(b.Data)
	switch tag {
	case transport.TagCommand:
		line := "/" + strings.TrimPrefix(strings.TrimSpace(arg), "/")
		r.handleMessage(newSpan(ctx), p, b.AsMessage(line))
	case transport.TagDeleteMessage:
		if !b.HasMsg {
			return
		}
		if err := r.sender.DeleteMessage(ctx, b.Chat.ID, b.MsgID); err != nil {
			logger.Warn(ctx, "router", "callback.delete_failed", slog.String("err", err.Error()))
		}
	default:
		logger.Warn(ctx, "router", "callback.unknown_tag",
			slog.String("payload", logger.SanitizeLimit(b.Data, 64)),
		)
	}
}

// fail logs err with the raw input and sends the generic failure notice.
func (r *Router) fail(ctx context.Context, msg update.Message, event string, err error) {
	attrs := []slog.Attr{
		slog.String("input", logger.SanitizeLimit(msg.Text, 512)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	}
	var pe *future.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	logger.Error(ctx, "router", event, attrs...)
	r.notify(ctx, msg.Chat, command.InternalError)
}

func (r *Router) notify(ctx context.Context, chat update.Chat, res command.Result) {
	if r.notifier != nil {
		r.notifier.Notify(ctx, chat, res)
	}
}

func newSpan(ctx context.Context) context.Context {
	return logger.WithTrace(ctx, "", uuid.NewString()[:8])
}
