package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
)

// User-facing texts.
const (
	TextTaskCreated  = "✅ Task created!"
	TextTaskUpdated  = "✅ Task updated!"
	TextCommentAdded = "✅ Comment added!"
	TextTaskNotFound = "❌ Task not found."

	textNameBlank        = "⚠️ The task name cannot be empty. Please send a name."
	textDescriptionBlank = "⚠️ The description cannot be empty. Send - to leave it out."
	textCommentBlank     = "⚠️ The comment cannot be empty. Please send some text."
)

// skipSentinels are single-character answers meaning "no description".
var skipSentinels = map[string]struct{}{"-": {}, "–": {}, "—": {}}

// IsSkip reports whether text asks to leave an optional value out.
func IsSkip(text string) bool {
	_, ok := skipSentinels[strings.TrimSpace(text)]
	return ok
}

func tooLong(what string, max int) string {
	return fmt.Sprintf("⚠️ The %s is too long (max %d characters). Please send a shorter one.", what, max)
}

// checkOrExplain returns the reply explaining why text failed validation, or "" when it passed.
func checkOrExplain(err error, blank, long string) (string, error) {
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, storage.ErrBlank):
		return blank, nil
	case errors.Is(err, storage.ErrTooLong):
		return long, nil
	default:
		return "", err
	}
}

// finish deletes the state being consumed. It returns ErrStateGone when a
// concurrent message already consumed it, in which case the caller stops.
func finish(ctx context.Context, ix *Interaction, t Type) error {
	removed, err := ix.States.Delete(ctx, ix.User.ID, ix.Chat.ID)
	if err != nil {
		return err
	}
	if !removed {
		logger.Debug(ctx, "dialog", "dialog.duplicate_dropped", slog.String("dialog", string(t)))
		return ErrStateGone
	}
	logger.Debug(ctx, "dialog", "dialog.transition",
		slog.String("dialog", string(t)),
		slog.String("to", "none"),
	)
	return nil
}

// NewTaskName waits for the name of a task to be created.
type NewTaskName struct{}

func (*NewTaskName) Type() Type { return TypeNewTaskName }

func (*NewTaskName) Prompt() string {
	return "📝 Send the name of the new task."
}

func (s *NewTaskName) HandleMessage(ctx context.Context, ix *Interaction) error {
	name := strings.TrimSpace(ix.Message.Text)
	reply, err := checkOrExplain(storage.ValidateTaskName(name), textNameBlank, tooLong("name", storage.TaskNameMaxLength))
	if err != nil {
		return err
	}
	if reply != "" {
		return ix.Reply(ctx, reply)
	}
	next := &NewTaskDescription{TaskName: name}
	if err := ix.States.Set(ctx, ix.User.ID, ix.Chat.ID, next); err != nil {
		return err
	}
	return ix.Reply(ctx, next.Prompt())
}

// NewTaskDescription waits for the description of a task whose name is already known.
type NewTaskDescription struct {
	TaskName string `json:"task_name"`
}

func (*NewTaskDescription) Type() Type { return TypeNewTaskDescription }

func (*NewTaskDescription) Prompt() string {
	return "🧾 Send a description for the task, or - to skip."
}

func (s *NewTaskDescription) validate() error {
	if strings.TrimSpace(s.TaskName) == "" {
		return errors.New("task_name is required")
	}
	return nil
}

func (s *NewTaskDescription) HandleMessage(ctx context.Context, ix *Interaction) error {
	description, reply, err := readDescription(ix.Message.Text)
	if err != nil {
		return err
	}
	if reply != "" {
		return ix.Reply(ctx, reply)
	}
	if err := finish(ctx, ix, s.Type()); err != nil {
		return ignoreGone(err)
	}
	task, err := ix.Tasks.Create(ctx, storage.NewTask{
		ChatID:      ix.Chat.ID,
		Name:        s.TaskName,
		Description: description,
		CreatedByID: ix.User.ID,
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	logger.Info(ctx, "dialog", "task.created", slog.Int64("task_id", task.ID))
	if err := ix.Reply(ctx, TextTaskCreated); err != nil {
		return err
	}
	ix.Continue(ctx, fmt.Sprintf("/tasks show %d", task.ID))
	return nil
}

// UpdatedTaskName waits for the new name of an existing task.
type UpdatedTaskName struct {
	TaskID int64 `json:"task_id"`
}

func (*UpdatedTaskName) Type() Type { return TypeUpdatedTaskName }

func (*UpdatedTaskName) Prompt() string {
	return "✏️ Send the new name of the task."
}

func (s *UpdatedTaskName) validate() error { return requireTaskID(s.TaskID) }

func (s *UpdatedTaskName) HandleMessage(ctx context.Context, ix *Interaction) error {
	name := strings.TrimSpace(ix.Message.Text)
	reply, err := checkOrExplain(storage.ValidateTaskName(name), textNameBlank, tooLong("name", storage.TaskNameMaxLength))
	if err != nil {
		return err
	}
	if reply != "" {
		return ix.Reply(ctx, reply)
	}
	return updateTask(ctx, ix, s.Type(), s.TaskID, func(tasks storage.TaskStore) error {
		return tasks.UpdateName(ctx, s.TaskID, name, ix.User.ID)
	})
}

// UpdatedTaskDescription waits for the new description of an existing task.
type UpdatedTaskDescription struct {
	TaskID int64 `json:"task_id"`
}

func (*UpdatedTaskDescription) Type() Type { return TypeUpdatedTaskDescription }

func (*UpdatedTaskDescription) Prompt() string {
	return "✏️ Send the new description of the task, or - to remove it."
}

func (s *UpdatedTaskDescription) validate() error { return requireTaskID(s.TaskID) }

func (s *UpdatedTaskDescription) HandleMessage(ctx context.Context, ix *Interaction) error {
	description, reply, err := readDescription(ix.Message.Text)
	if err != nil {
		return err
	}
	if reply != "" {
		return ix.Reply(ctx, reply)
	}
	return updateTask(ctx, ix, s.Type(), s.TaskID, func(tasks storage.TaskStore) error {
		return tasks.UpdateDescription(ctx, s.TaskID, description, ix.User.ID)
	})
}

// NewTaskComment waits for the text of a comment on an existing task.
type NewTaskComment struct {
	TaskID int64 `json:"task_id"`
}

func (*NewTaskComment) Type() Type { return TypeNewTaskComment }

func (*NewTaskComment) Prompt() string {
	return "💬 Send your comment."
}

func (s *NewTaskComment) validate() error { return requireTaskID(s.TaskID) }

func (s *NewTaskComment) HandleMessage(ctx context.Context, ix *Interaction) error {
	content := strings.TrimSpace(ix.Message.Text)
	reply, err := checkOrExplain(storage.ValidateComment(content), textCommentBlank, tooLong("comment", storage.CommentMaxLength))
	if err != nil {
		return err
	}
	if reply != "" {
		return ix.Reply(ctx, reply)
	}
	if err := finish(ctx, ix, s.Type()); err != nil {
		return ignoreGone(err)
	}
	if _, err := ix.lookupTask(ctx, s.TaskID); err != nil {
		return replyNotFound(ctx, ix, err)
	}
	c, err := ix.Tasks.Comments().Create(ctx, s.TaskID, ix.User.ID, content)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	logger.Info(ctx, "dialog", "comment.created",
		slog.Int64("task_id", s.TaskID),
		slog.Int64("comment_id", c.ID),
	)
	if err := ix.Reply(ctx, TextCommentAdded); err != nil {
		return err
	}
	ix.Continue(ctx, fmt.Sprintf("/tasks comments %d", s.TaskID))
	return nil
}

func updateTask(ctx context.Context, ix *Interaction, t Type, taskID int64, apply func(storage.TaskStore) error) error {
	if err := finish(ctx, ix, t); err != nil {
		return ignoreGone(err)
	}
	if _, err := ix.lookupTask(ctx, taskID); err != nil {
		return replyNotFound(ctx, ix, err)
	}
	if err := apply(ix.Tasks); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ix.Reply(ctx, TextTaskNotFound)
		}
		return fmt.Errorf("update task %d: %w", taskID, err)
	}
	logger.Info(ctx, "dialog", "task.updated", slog.Int64("task_id", taskID), slog.String("dialog", string(t)))
	if err := ix.Reply(ctx, TextTaskUpdated); err != nil {
		return err
	}
	ix.Continue(ctx, fmt.Sprintf("/tasks show %d", taskID))
	return nil
}

// readDescription turns the answer into an optional description.
func readDescription(text string) (*string, string, error) {
	if IsSkip(text) {
		return nil, "", nil
	}
	d := strings.TrimSpace(text)
	reply, err := checkOrExplain(storage.ValidateTaskDescription(&d), textDescriptionBlank,
		tooLong("description", storage.TaskDescriptionMaxLength))
	if err != nil || reply != "" {
		return nil, reply, err
	}
	return &d, "", nil
}

func replyNotFound(ctx context.Context, ix *Interaction, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ix.Reply(ctx, TextTaskNotFound)
	}
	return err
}

func ignoreGone(err error) error {
	if errors.Is(err, ErrStateGone) {
		return nil
	}
	return err
}

func requireTaskID(id int64) error {
	if id <= 0 {
		return errors.New("task_id must be positive")
	}
	return nil
}

var (
	_ State = (*NewTaskName)(nil)
	_ State = (*NewTaskDescription)(nil)
	_ State = (*UpdatedTaskName)(nil)
	_ State = (*UpdatedTaskDescription)(nil)
	_ State = (*NewTaskComment)(nil)
)
