package storage

import "time"

// User is the local record of a Telegram user.
type User struct {
	ID         int64      `db:"id"`
	PlatformID int64      `db:"platform_id"`
	Handle     *string    `db:"handle"`
	JoinedAt   time.Time  `db:"joined_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
}

// HandleOrEmpty returns the username without the pointer.
func (u User) HandleOrEmpty() string {
	if u.Handle == nil {
		return ""
	}
	return *u.Handle
}

// Chat is the local record of a Telegram chat the bot has seen.
type Chat struct {
	ID            int64      `db:"id"`
	PlatformID    int64      `db:"platform_id"`
	InstalledByID int64      `db:"installed_by_id"`
	InstalledAt   time.Time  `db:"installed_at"`
	UpdatedByID   *int64     `db:"updated_by_id"`
	UpdatedAt     *time.Time `db:"updated_at"`
}

// Task belongs to exactly one chat.
type Task struct {
	ID          int64      `db:"id"`
	ChatID      int64      `db:"chat_id"`
	Name        string     `db:"name"`
	Description *string    `db:"description"`
	CreatedByID int64      `db:"created_by_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedByID *int64     `db:"updated_by_id"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// LastActivity is the update time when present, the creation time otherwise.
func (t Task) LastActivity() time.Time {
	if t.UpdatedAt != nil {
		return *t.UpdatedAt
	}
	return t.CreatedAt
}

// Comment is a note attached to a task.
type Comment struct {
	ID        int64      `db:"id"`
	TaskID    int64      `db:"task_id"`
	AuthorID  int64      `db:"author_id"`
	Content   string     `db:"content"`
	PostedAt  time.Time  `db:"posted_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// DialogRecord is the persisted form of a pending dialog state.
type DialogRecord struct {
	UserID    int64     `db:"user_id"`
	ChatID    int64     `db:"chat_id"`
	Type      string    `db:"type"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewTask carries the fields of a task to be created.
type NewTask struct {
	ChatID      int64
	Name        string
	Description *string
	CreatedByID int64
}

// TaskSort selects the ordering of task searches.
type TaskSort int

const (
	// SortByActivity orders by updated_at, falling back to created_at.
	SortByActivity TaskSort = iota
	// SortByCreated orders by created_at.
	SortByCreated
)

// TaskFilter narrows task searches and counts. Nil fields are ignored.
type TaskFilter struct {
	ChatID      *int64
	CreatedByID *int64
}

// TaskQuery is a paged task search.
type TaskQuery struct {
	TaskFilter
	Limit     int
	Offset    int
	Sort      TaskSort
	Ascending bool
}

// CommentQuery is a paged listing of one task's comments.
type CommentQuery struct {
	TaskID      int64
	Limit       int
	Offset      int
	NewestFirst bool
}
