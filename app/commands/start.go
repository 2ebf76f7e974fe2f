package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/future"
	"github.com/m3rciful/taskbot/core/transport"
)

// Start lists the visible commands. Aliases never show up.
type Start struct {
	Registry *command.Registry
	Sender   transport.Sender
}

// Execute sends the help text without waiting on the caller's goroutine.
func (s *Start) Execute(ctx context.Context, cc *command.Context) *future.Future[command.Result] {
	var b strings.Builder
	if cc.Private() {
		b.WriteString("👋 Hi! I keep a shared task list for this chat.\n\n")
	}
	for _, cmd := range s.Registry.Commands(true) {
		fmt.Fprintf(&b, "/%s - %s\n", cmd.Name, cmd.Description)
	}
	sent := s.Sender.SendAsync(ctx, transport.Message{
		ChatID: cc.PlatformChatID(),
		Text:   strings.TrimRight(b.String(), "\n"),
	})
	return future.Then(sent, func(struct{}) (command.Result, error) {
		return command.Success, nil
	})
}
