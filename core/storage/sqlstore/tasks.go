package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/taskbot/core/storage"
)

type taskStore struct{ s *Store }

const taskColumns = `id, chat_id, name, description, created_by_id, created_at, updated_by_id, updated_at`

func (t taskStore) Comments() storage.CommentStore { return commentStore(t) }

func (t taskStore) Create(ctx context.Context, in storage.NewTask) (storage.Task, error) {
	if err := storage.ValidateTaskName(in.Name); err != nil {
		return storage.Task{}, storage.Invalid("name", err)
	}
	if err := storage.ValidateTaskDescription(in.Description); err != nil {
		return storage.Task{}, storage.Invalid("description", err)
	}
	var rec storage.Task
	err := t.s.get(ctx, &rec,
		`INSERT INTO tasks (chat_id, name, description, created_by_id, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING `+taskColumns,
		in.ChatID, in.Name, in.Description, in.CreatedByID, t.s.stamp())
	return rec, err
}

func (t taskStore) GetByID(ctx context.Context, id int64) (storage.Task, error) {
	var rec storage.Task
	err := t.s.get(ctx, &rec, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return rec, err
}

// where renders the filter as a WHERE clause with its arguments.
func where(f storage.TaskFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ChatID != nil {
		conds = append(conds, "chat_id = ?")
		args = append(args, *f.ChatID)
	}
	if f.CreatedByID != nil {
		conds = append(conds, "created_by_id = ?")
		args = append(args, *f.CreatedByID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t taskStore) Search(ctx context.Context, q storage.TaskQuery) ([]storage.Task, error) {
	clause, args := where(q.TaskFilter)
	key := "COALESCE(updated_at, created_at)"
	if q.Sort == storage.SortByCreated {
		key = "created_at"
	}
	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY %s %s, id %s`, taskColumns, clause, key, dir, dir)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		if q.Limit <= 0 {
			// SQLite requires a LIMIT before OFFSET; -1 means unbounded there and
			// PostgreSQL accepts LIMIT ALL.
			query += limitAll(t.s.db)
		}
		query += " OFFSET ?"
		args = append(args, q.Offset)
	}
	list := []storage.Task{}
	if err := t.s.sel(ctx, &list, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func limitAll(db *sqlx.DB) string {
	if db.DriverName() == "postgres" {
		return " LIMIT ALL"
	}
	return " LIMIT -1"
}

func (t taskStore) Count(ctx context.Context, f storage.TaskFilter) (int, error) {
	clause, args := where(f)
	var n int
	err := t.s.get(ctx, &n, `SELECT COUNT(*) FROM tasks`+clause, args...)
	return n, err
}

func (t taskStore) UpdateName(ctx context.Context, id int64, name string, by int64) error {
	if err := storage.ValidateTaskName(name); err != nil {
		return storage.Invalid("name", err)
	}
	return t.update(ctx, id, "name", name, by)
}

func (t taskStore) UpdateDescription(ctx context.Context, id int64, description *string, by int64) error {
	if err := storage.ValidateTaskDescription(description); err != nil {
		return storage.Invalid("description", err)
	}
	return t.update(ctx, id, "description", description, by)
}

func (t taskStore) update(ctx context.Context, id int64, column string, value any, by int64) error {
	ok, err := exec(ctx, t.s.db,
		`UPDATE tasks SET `+column+` = ?, updated_by_id = ?, updated_at = ? WHERE id = ?`,
		value, by, t.s.stamp(), id)
	if err == nil && !ok {
		return storage.ErrNotFound
	}
	return err
}

// Delete removes the task and its comments in one transaction.
func (t taskStore) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := t.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := exec(ctx, tx, `DELETE FROM task_comments WHERE task_id = ?`, id); err != nil {
		return false, err
	}
	ok, err := exec(ctx, tx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return ok, nil
}

type commentStore struct{ s *Store }

const commentColumns = `id, task_id, author_id, content, posted_at, updated_at`

func (c commentStore) Create(ctx context.Context, taskID, authorID int64, content string) (storage.Comment, error) {
	if err := storage.ValidateComment(content); err != nil {
		return storage.Comment{}, storage.Invalid("content", err)
	}
	if _, err := (taskStore(c)).GetByID(ctx, taskID); err != nil {
		return storage.Comment{}, err
	}
	var rec storage.Comment
	err := c.s.get(ctx, &rec,
		`INSERT INTO task_comments (task_id, author_id, content, posted_at) VALUES (?, ?, ?, ?) RETURNING `+commentColumns,
		taskID, authorID, content, c.s.stamp())
	return rec, err
}

func (c commentStore) GetByID(ctx context.Context, id int64) (storage.Comment, error) {
	var rec storage.Comment
	err := c.s.get(ctx, &rec, `SELECT `+commentColumns+` FROM task_comments WHERE id = ?`, id)
	return rec, err
}

func (c commentStore) ListByTask(ctx context.Context, q storage.CommentQuery) ([]storage.Comment, error) {
	dir := "ASC"
	if q.NewestFirst {
		dir = "DESC"
	}
	query := `SELECT ` + commentColumns + ` FROM task_comments WHERE task_id = ? ORDER BY id ` + dir
	args := []any{q.TaskID}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		if q.Limit <= 0 {
			query += limitAll(c.s.db)
		}
		query += " OFFSET ?"
		args = append(args, q.Offset)
	}
	list := []storage.Comment{}
	if err := c.s.sel(ctx, &list, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

func (c commentStore) CountByTask(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := c.s.get(ctx, &n, `SELECT COUNT(*) FROM task_comments WHERE task_id = ?`, taskID)
	return n, err
}

func (c commentStore) UpdateContent(ctx context.Context, id int64, content string) error {
	if err := storage.ValidateComment(content); err != nil {
		return storage.Invalid("content", err)
	}
	ok, err := exec(ctx, c.s.db, `UPDATE task_comments SET content = ?, updated_at = ? WHERE id = ?`, content, c.s.stamp(), id)
	if err == nil && !ok {
		return storage.ErrNotFound
	}
	return err
}

func (c commentStore) Delete(ctx context.Context, id int64) (bool, error) {
	return exec(ctx, c.s.db, `DELETE FROM task_comments WHERE id = ?`, id)
}
