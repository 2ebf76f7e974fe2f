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

// comments handles "/tasks comments N [list [page] | add | delete C]".
func (t *Tasks) comments(ctx context.Context, cc *command.Context, task storage.Task) (command.Result, error) {
	switch sub := cc.Input.ReadToken(); sub {
	case "", "list":
		return t.listComments(ctx, cc, task, readPage(cc.Input))
	case "add":
		return t.begin(ctx, cc, &dialog.NewTaskComment{TaskID: task.ID})
	case "delete":
		id, err := cc.Input.ReadInt64()
		if err != nil {
			return command.InvalidSyntax, nil
		}
		return t.deleteComment(ctx, cc, task, id)
	default:
		return command.InvalidSyntax, nil
	}
}

func (t *Tasks) listComments(ctx context.Context, cc *command.Context, task storage.Task, page int) (command.Result, error) {
	store := t.deps.Tasks.Comments()
	total, err := store.CountByTask(ctx, task.ID)
	if err != nil {
		return command.InternalError, err
	}
	page, pages := clampPage(page, total, t.deps.PageSize)

	var b strings.Builder
	fmt.Fprintf(&b, "💬 Comments on %s", format.Bold(task.Name))
	if total > 0 {
		b.WriteString(format.Escape(fmt.Sprintf(" (page %d/%d)", page, pages)))
	}
	b.WriteString("\n\n")

	var own []transport.Button
	if total == 0 {
		b.WriteString(format.Italic(textNoComments))
	} else {
		list, err := store.ListByTask(ctx, storage.CommentQuery{
			TaskID:      task.ID,
			Limit:       t.deps.PageSize,
			Offset:      (page - 1) * t.deps.PageSize,
			NewestFirst: true,
		})
		if err != nil {
			return command.InternalError, err
		}
		for i, c := range list {
			n := (page-1)*t.deps.PageSize + i + 1
			fmt.Fprintf(&b, "%s %s\n%s\n\n",
				format.Bold(fmt.Sprintf("#%d %s", n, t.userName(ctx, c.AuthorID))),
				format.Escape("· "+format.Time(c.PostedAt, t.deps.Location)),
				format.Escape(c.Content))
			if c.AuthorID == cc.User.ID {
				own = append(own, transport.CommandButton(fmt.Sprintf("🗑 #%d", n),
					fmt.Sprintf("tasks comments %d delete %d", task.ID, c.ID)))
			}
		}
	}

	markup := keyboard.Append(keyboard.Chunk(own, 4),
		pager(page, pages, fmt.Sprintf("tasks comments %d list", task.ID)),
		[]transport.Button{
			transport.CommandButton("➕ Add comment", fmt.Sprintf("tasks comments %d add", task.ID)),
			transport.CommandButton("⬅️ Back to task", fmt.Sprintf("tasks show %d", task.ID)),
		},
	)
	return t.replyMarkdown(ctx, cc, strings.TrimRight(b.String(), "\n"), markup)
}

func (t *Tasks) deleteComment(ctx context.Context, cc *command.Context, task storage.Task, id int64) (command.Result, error) {
	store := t.deps.Tasks.Comments()
	c, err := store.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && c.TaskID != task.ID) {
		return t.reply(ctx, cc, textCommentGone, nil)
	}
	if err != nil {
		return command.InternalError, err
	}
	if c.AuthorID != cc.User.ID {
		return t.reply(ctx, cc, textNotYours, nil)
	}
	if _, err := store.Delete(ctx, c.ID); err != nil {
		return command.InternalError, err
	}
	if res, err := t.reply(ctx, cc, textCommentDelete, nil); err != nil || res != command.Success {
		return res, err
	}
	return t.listComments(ctx, cc, task, 1)
}
