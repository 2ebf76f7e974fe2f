package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/logger"
)

// MenuCommands lists the visible commands in the form the Bot API expects.
func MenuCommands(reg *command.Registry) []tele.Command {
	cmds := reg.Commands(true)
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, tele.Command{Text: c.Name, Description: c.Description})
	}
	return out
}

// CommandSetter is the part of *tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the command menu. Failures are logged and otherwise ignored.
func SetupCommands(ctx context.Context, bot CommandSetter, reg *command.Registry) {
	cmds := MenuCommands(reg)
	if err := bot.SetCommands(cmds); err != nil {
		logger.LogEvent(ctx, logger.TWire, slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "register.commands.set",
		slog.Int("count", len(cmds)),
	)
}
