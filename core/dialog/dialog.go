// Package dialog implements the per (user, chat) conversation states that
// capture the next free-text message as the answer to a pending prompt.
//
// A state is stored as a type tag plus a small JSON payload. Commands always
// clear the pending state; a successful answer clears it too and usually
// continues with a synthesized command such as "/tasks show 12".
package dialog

import (
	"context"
	"errors"

	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/transport"
	"github.com/m3rciful/taskbot/core/update"
)

// Type is the stable tag a state is persisted under.
type Type string

const (
	TypeNewTaskName            Type = "reading_new_task_name"
	TypeNewTaskDescription     Type = "reading_new_task_description"
	TypeUpdatedTaskName        Type = "reading_updated_task_name"
	TypeUpdatedTaskDescription Type = "reading_updated_task_description"
	TypeNewTaskComment         Type = "reading_new_task_comment"
)

// State is one pending dialog step.
type State interface {
	Type() Type
	// Prompt is the text that asks the user for the answer this state expects.
	Prompt() string
	// HandleMessage consumes the next free-text message of the same (user, chat).
	HandleMessage(ctx context.Context, ix *Interaction) error
}

// Interaction is everything a state transition may touch.
type Interaction struct {
	Message update.Message
	User    storage.User
	Chat    storage.Chat
	Tasks   storage.TaskStore
	States  *Store
	Sender  transport.Sender
	// Reenter feeds a synthesized message back into the router.
	Reenter func(ctx context.Context, msg update.Message)
}

// Reply sends plain text to the chat the message came from.
func (ix *Interaction) Reply(ctx context.Context, text string) error {
	return ix.Sender.Send(ctx, transport.Message{ChatID: ix.Message.Chat.ID, Text: text})
}

// Continue synthesizes text as a new message from the same sender and re-enters the router.
func (ix *Interaction) Continue(ctx context.Context, text string) {
	if ix.Reenter != nil {
		ix.Reenter(ctx, ix.Message.Synthesize(text))
	}
}

// lookupTask loads a task that belongs to the interaction's chat.
// A task from another chat is reported as storage.ErrNotFound.
func (ix *Interaction) lookupTask(ctx context.Context, id int64) (storage.Task, error) {
	task, err := ix.Tasks.GetByID(ctx, id)
	if err != nil {
		return storage.Task{}, err
	}
	if task.ChatID != ix.Chat.ID {
		return storage.Task{}, storage.ErrNotFound
	}
	return task, nil
}

// ErrStateGone is returned when a terminal transition lost the race to delete its own state.
var ErrStateGone = errors.New("dialog: state already consumed")
