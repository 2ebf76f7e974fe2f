// Package commands holds the bot's user-facing commands.
package commands

import (
	"context"
	"time"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/dialog"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/transport"
)

// DefaultPageSize is used when Deps.PageSize is not positive.
const DefaultPageSize = 5

// Deps are the collaborators the command handlers need.
type Deps struct {
	Users    storage.UserStore
	Tasks    storage.TaskStore
	States   *dialog.Store
	Sender   transport.Sender
	PageSize int
	// Location is used to render timestamps; nil means UTC.
	Location *time.Location
}

// Register adds every command to reg.
func Register(reg *command.Registry, d Deps) error {
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	start := &Start{Registry: reg, Sender: d.Sender}
	if err := reg.Register(command.Command{
		Name:        "start",
		Description: "Show what this bot can do",
		Aliases:     []string{"help"},
		Handler:     command.AsyncHandlerFunc(start.Execute),
	}); err != nil {
		return err
	}
	tasks := &Tasks{deps: d}
	return reg.Register(command.Command{
		Name:        "tasks",
		Description: "Manage the tasks of this chat",
		Handler:     command.HandlerFunc(tasks.Execute),
	})
}

func send(ctx context.Context, s transport.Sender, cc *command.Context, text string, mode transport.ParseMode, markup *transport.Markup) error {
	return s.Send(ctx, transport.Message{
		ChatID:    cc.PlatformChatID(),
		Text:      text,
		ParseMode: mode,
		Markup:    markup,
	})
}
