package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/taskbot/core/command"
	"github.com/m3rciful/taskbot/core/dialog"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/telegram/format"
	"github.com/m3rciful/taskbot/core/telegram/keyboard"
	"github.com/m3rciful/taskbot/core/transport"
)

// Reply texts shared with tests.
const (
	TextNoTasks       = "📭 There are no tasks in this chat yet."
	TextTaskDeleted   = "🗑 Task deleted."
	TextCancelled     = "👌 Cancelled."
	TextTasksUsage    = "Usage:\n/tasks new - create a task\n/tasks list [page] - list tasks\n/tasks show <id> - show a task"
	textNoComments    = "No comments yet."
	textCommentGone   = "❌ Comment not found."
	textNotYours      = "⛔ You can only delete your own comments."
	textCommentDelete = "🗑 Comment deleted."
)

// Tasks implements /tasks and its subcommands.
type Tasks struct {
	deps Deps
}

// Execute dispatches on the first argument.
func (t *Tasks) Execute(ctx context.Context, cc *command.Context) (command.Result, error) {
	switch sub := cc.Input.ReadToken(); sub {
	case "new":
		return t.begin(ctx, cc, &dialog.NewTaskName{})
	case "list":
		return t.list(ctx, cc, readPage(cc.Input))
	case "show":
		return t.withTask(ctx, cc, t.show)
	case "edit-name":
		return t.withTask(ctx, cc, func(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error) {
			return t.begin(ctx, cc, &dialog.UpdatedTaskName{TaskID: task.ID})
		})
	case "edit-description":
		return t.withTask(ctx, cc, func(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error) {
			return t.begin(ctx, cc, &dialog.UpdatedTaskDescription{TaskID: task.ID})
		})
	case "delete-request":
		return t.withTask(ctx, cc, t.deleteRequest)
	case "delete-confirm":
		return t.deleteConfirm(ctx, cc)
	case "comments":
		return t.withTask(ctx, cc, t.comments)
	case "cancel":
		// The router already cleared any pending dialog before dispatching.
		return t.reply(ctx, cc, TextCancelled, nil)
	default:
		return t.help(ctx, cc)
	}
}

type taskFunc func(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error)

// withTask reads a task id argument and loads the task from the current chat.
// A malformed id renders the usage text; a missing task is reported to the user.
func (t *Tasks) withTask(ctx context.Context, cc *command.Context, fn taskFunc) (command.Result, error) {
	id, err := cc.Input.ReadInt64()
	if err != nil {
		return t.help(ctx, cc)
	}
	task, found, err := t.lookup(ctx, cc, id)
	if err != nil {
		return command.InternalError, err
	}
	if !found {
		return t.reply(ctx, cc, dialog.TextTaskNotFound, nil)
	}
	return fn(ctx, cc, task)
}

// lookup treats tasks of other chats as absent.
func (t *Tasks) lookup(ctx context.Context, cc *command.Context, id int64) (storage.Task, bool, error) {
	task, err := t.deps.Tasks.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Task{}, false, nil
	}
	if err != nil {
		return storage.Task{}, false, err
	}
	if task.ChatID != cc.Chat.ID {
		return storage.Task{}, false, nil
	}
	return task, true, nil
}

func (t *Tasks) begin(ctx context.Context, cc *command.Context, st dialog.State) (command.Result, error) {
	if err := t.deps.States.Set(ctx, cc.User.ID, cc.Chat.ID, st); err != nil {
		return command.InternalError, err
	}
	cancel := keyboard.Rows([]transport.Button{transport.CommandButton("✖️ Cancel", "tasks cancel")})
	return t.reply(ctx, cc, st.Prompt(), cancel)
}

func (t *Tasks) list(ctx context.Context, cc *command.Context, page int) (command.Result, error) {
	chatID := cc.Chat.ID
	filter := storage.TaskFilter{ChatID: &chatID}
	total, err := t.deps.Tasks.Count(ctx, filter)
	if err != nil {
		return command.InternalError, err
	}
	if total == 0 {
		create := keyboard.Rows([]transport.Button{transport.CommandButton("➕ Create a task", "tasks new")})
		return t.reply(ctx, cc, TextNoTasks, create)
	}

	page, pages := clampPage(page, total, t.deps.PageSize)
	tasks, err := t.deps.Tasks.Search(ctx, storage.TaskQuery{
		TaskFilter: filter,
		Limit:      t.deps.PageSize,
		Offset:     (page - 1) * t.deps.PageSize,
		Sort:       storage.SortByActivity,
	})
	if err != nil {
		return command.InternalError, err
	}

	buttons := make([]transport.Button, 0, len(tasks))
	for _, task := range tasks {
		buttons = append(buttons, transport.CommandButton("📌 "+task.Name, fmt.Sprintf("tasks show %d", task.ID)))
	}
	markup := keyboard.Append(keyboard.Column(buttons...),
		pager(page, pages, "tasks list"),
		[]transport.Button{transport.CommandButton("➕ New task", "tasks new")},
	)
	text := fmt.Sprintf("📋 Tasks: %d (page %d/%d)", total, page, pages)
	return t.reply(ctx, cc, text, markup)
}

func (t *Tasks) show(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error) {
	count, err := t.deps.Tasks.Comments().CountByTask(ctx, task.ID)
	if err != nil {
		return command.InternalError, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📌 %s\n\n", format.Bold(task.Name))
	fmt.Fprintf(&b, "👤 Created by %s on %s\n",
		format.Escape(t.userName(ctx, task.CreatedByID)),
		format.Escape(format.Time(task.CreatedAt, t.deps.Location)))
	if task.UpdatedAt != nil {
		by := "someone"
		if task.UpdatedByID != nil {
			by = t.userName(ctx, *task.UpdatedByID)
		}
		fmt.Fprintf(&b, "✏️ Updated by %s on %s\n",
			format.Escape(by),
			format.Escape(format.Time(*task.UpdatedAt, t.deps.Location)))
	}
	if task.Description != nil {
		b.WriteString("\n" + format.Quote(*task.Description) + "\n")
	}
	fmt.Fprintf(&b, "\n💬 Comments: %d", count)

	id := task.ID
	markup := keyboard.Rows(
		[]transport.Button{
			transport.CommandButton("✏️ Name", fmt.Sprintf("tasks edit-name %d", id)),
			transport.CommandButton("✏️ Description", fmt.Sprintf("tasks edit-description %d", id)),
		},
		[]transport.Button{
			transport.CommandButton("💬 Comments", fmt.Sprintf("tasks comments %d", id)),
			transport.CommandButton("🗑 Delete", fmt.Sprintf("tasks delete-request %d", id)),
		},
		[]transport.Button{transport.CommandButton("⬅️ All tasks", "tasks list")},
	)
	return t.replyMarkdown(ctx, cc, b.String(), markup)
}

func (t *Tasks) deleteRequest(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error) {
	text := "🗑 Delete task " + format.Bold(task.Name) + format.Escape("?")
	markup := keyboard.Rows([]transport.Button{
		transport.CommandButton("Yes, delete", fmt.Sprintf("tasks delete-confirm %d", task.ID)),
		transport.DeleteButton("✖️ Keep it"),
	})
	return t.replyMarkdown(ctx, cc, text, markup)
}

func (t *Tasks) deleteConfirm(ctx context.Context, cc *command.Context) (command.Result, error) {
	id, err := cc.Input.ReadInt64()
	if err != nil {
		return t.help(ctx, cc)
	}
	task, found, err := t.lookup(ctx, cc, id)
	if err != nil {
		return command.InternalError, err
	}
	text := dialog.TextTaskNotFound
	if found {
		deleted, err := t.deps.Tasks.Delete(ctx, task.ID)
		if err != nil {
			return command.InternalError, err
		}
		if deleted {
			text = TextTaskDeleted
		}
	}
	if res, err := t.reply(ctx, cc, text, nil); err != nil || res != command.Success {
		return res, err
	}
	return t.list(ctx, cc, 1)
}

func (t *Tasks) help(ctx context.Context, cc *command.Context) (command.Result, error) {
	markup := keyboard.Rows([]transport.Button{
		transport.CommandButton("➕ New task", "tasks new"),
		transport.CommandButton("📋 All tasks", "tasks list"),
	})
	return t.reply(ctx, cc, TextTasksUsage, markup)
}

func (t *Tasks) reply(ctx context.Context, cc *command.Context, text string, markup *transport.Markup) (command.Result, error) {
	if err := send(ctx, t.deps.Sender, cc, text, transport.PlainText, markup); err != nil {
		return command.InternalError, err
	}
	return command.Success, nil
}

func (t *Tasks) replyMarkdown(ctx context.Context, cc *command.Context, text string, markup *transport.Markup) (command.Result, error) {
	if err := send(ctx, t.deps.Sender, cc, text, transport.MarkdownV2, markup); err != nil {
		return command.InternalError, err
	}
	return command.Success, nil
}

// userName renders a local user for display.
func (t *Tasks) userName(ctx context.Context, id int64) string {
	u, err := t.deps.Users.GetByID(ctx, id)
	if err != nil {
		return "unknown user"
	}
	if h := u.HandleOrEmpty(); h != "" {
		return "@" + h
	}
	return fmt.Sprintf("user %d", u.PlatformID)
}

// readPage parses an optional 1-based page number; anything unusable means the first page.
func readPage(in *command.Input) int {
	p, err := in.ReadInt()
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// clampPage returns page, or 1 when it is out of range, with the page count.
func clampPage(page, total, size int) (int, int) {
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 || page > pages {
		page = 1
	}
	return page, pages
}

// pager returns previous/next buttons for base ("tasks list", "tasks comments 3 list").
func pager(page, pages int, base string) []transport.Button {
	var row []transport.Button
	if page > 1 {
		row = append(row, transport.CommandButton("◀️ Previous", fmt.Sprintf("%s %d", base, page-1)))
	}
	if page < pages {
		row = append(row, transport.CommandButton("Next ▶️", fmt.Sprintf("%s %d", base, page+1)))
	}
	return row
}
