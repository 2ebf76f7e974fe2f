package command

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/update"
)

// Invocation is one command line to execute on behalf of a reconciled user in a reconciled chat.
type Invocation struct {
	// Text is the command line with any @bot tag already stripped, e.g. "/tasks show 3".
	Text    string
	Message update.Message
	User    storage.User
	Chat    storage.Chat
}

// Dispatcher resolves command lines against a Registry and runs them.
type Dispatcher struct {
	registry *Registry
	notifier Notifier
}

// NewDispatcher wires a registry with the notifier that renders non-success results.
func NewDispatcher(reg *Registry, n Notifier) *Dispatcher {
	return &Dispatcher{registry: reg, notifier: n}
}

// Registry returns the registry commands are resolved against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch resolves and executes inv and performs exactly one notification for its result.
// Handler errors and panics, synchronous or not, become InternalError.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	in := NewInput(inv.Text)
	label := strings.TrimPrefix(in.ReadToken(), "/")

	cmd, ok := d.registry.Lookup(label)
	if !ok {
		d.finish(ctx, inv, label, UnknownCommand, start)
		return UnknownCommand
	}

	ctx = logger.WithHandler(ctx, cmd.Name)
	cc := &Context{
		Input:   in,
		Name:    cmd.Name,
		Label:   label,
		Message: inv.Message,
		User:    inv.User,
		Chat:    inv.Chat,
	}

	res, err := d.execute(ctx, cmd.Handler, cc)
	if err != nil {
		d.logFailure(ctx, inv, cmd.Name, err)
		res = InternalError
	}
	d.finish(ctx, inv, cmd.Name, res, start)
	return res
}

func (d *Dispatcher) execute(ctx context.Context, h Handler, cc *Context) (Result, error) {
	f, err := future.Call(func() (*future.Future[Result], error) {
		return h.Execute(ctx, cc), nil
	})
	if err != nil {
		return InternalError, err
	}
	if f == nil {
		return InternalError, errors.New("command: handler returned no result")
	}
	return f.Await(ctx)
}

func (d *Dispatcher) finish(ctx context.Context, inv Invocation, name string, res Result, start time.Time) {
	logger.Info(ctx, "command", "command.dispatched",
		slog.String("command", name),
		slog.String("result", res.String()),
		slog.Bool("synthetic", inv.Message.Synthetic),
		slog.Duration("duration", logger.Took(start)),
	)
	if d.notifier != nil {
		d.notifier.Notify(ctx, inv.Message.Chat, res)
	}
}

func (d *Dispatcher) logFailure(ctx context.Context, inv Invocation, name string, err error) {
	attrs := []slog.Attr{
		slog.String("command", name),
		slog.String("input", logger.SanitizeLimit(inv.Text, 512)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_kind", errorKind(err)),
	}
	var pe *future.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	logger.Error(ctx, "command", "command.failed", attrs...)
}

// errorKind names the concrete error type for log filtering.
func errorKind(err error) string {
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
