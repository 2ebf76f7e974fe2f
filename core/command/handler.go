package command

import (
	"context"

	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/update"
)

// Context is what a handler receives for one invocation.
type Context struct {
	// Input is positioned right after the command label.
	Input *Input
	// Name is the canonical command name; Label is what the user typed (an alias, maybe).
	Name    string
	Label   string
	Message update.Message
	User    storage.User
	Chat    storage.Chat
}

// Private reports whether the command came from a one-to-one chat.
func (c *Context) Private() bool { return c.Message.Chat.Private }

// PlatformChatID returns the Telegram chat id replies go to.
func (c *Context) PlatformChatID() int64 { return c.Message.Chat.ID }

// Handler executes a command. Expected problems are reported through Result;
// errors and panics are turned into InternalError by the dispatcher.
type Handler interface {
	Execute(ctx context.Context, cc *Context) *future.Future[Result]
}

// HandlerFunc adapts a synchronous function; its outcome is delivered as an already resolved future.
type HandlerFunc func(ctx context.Context, cc *Context) (Result, error)

func (f HandlerFunc) Execute(ctx context.Context, cc *Context) *future.Future[Result] {
	res, err := future.Call(func() (Result, error) { return f(ctx, cc) })
	if err != nil {
		return future.Failed[Result](err)
	}
	return future.Resolved(res)
}

// AsyncHandlerFunc adapts a function that already returns a future.
type AsyncHandlerFunc func(ctx context.Context, cc *Context) *future.Future[Result]

func (f AsyncHandlerFunc) Execute(ctx context.Context, cc *Context) *future.Future[Result] {
	return f(ctx, cc)
}
