package storage

import (
	"context"
	"time"
)

// UserStore persists users. Create reports ErrDuplicate when the platform id is taken.
type UserStore interface {
	Create(ctx context.Context, platformID int64, handle *string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByPlatformID(ctx context.Context, platformID int64) (User, error)
	UpdateHandle(ctx context.Context, id int64, handle *string, at time.Time) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// ChatStore persists chats. Create reports ErrDuplicate when the platform id is taken.
type ChatStore interface {
	Create(ctx context.Context, platformID, installedByID int64) (Chat, error)
	GetByID(ctx context.Context, id int64) (Chat, error)
	GetByPlatformID(ctx context.Context, platformID int64) (Chat, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// TaskStore persists tasks and owns the nested comment store.
type TaskStore interface {
	Create(ctx context.Context, t NewTask) (Task, error)
	GetByID(ctx context.Context, id int64) (Task, error)
	Search(ctx context.Context, q TaskQuery) ([]Task, error)
	Count(ctx context.Context, f TaskFilter) (int, error)
	UpdateName(ctx context.Context, id int64, name string, by int64) error
	UpdateDescription(ctx context.Context, id int64, description *string, by int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	Comments() CommentStore
}

// CommentStore persists task comments.
type CommentStore interface {
	Create(ctx context.Context, taskID, authorID int64, content string) (Comment, error)
	GetByID(ctx context.Context, id int64) (Comment, error)
	ListByTask(ctx context.Context, q CommentQuery) ([]Comment, error)
	CountByTask(ctx context.Context, taskID int64) (int, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// DialogStateStore persists at most one dialog record per (user, chat).
type DialogStateStore interface {
	Get(ctx context.Context, userID, chatID int64) (DialogRecord, error)
	// Set inserts or replaces the record for its (user, chat).
	Set(ctx context.Context, rec DialogRecord) error
	Delete(ctx context.Context, userID, chatID int64) (bool, error)
	// DeleteOlderThan removes records last written before cutoff and returns how many.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Storage groups every store of one backend.
type Storage interface {
	Users() UserStore
	Chats() ChatStore
	Tasks() TaskStore
	DialogStates() DialogStateStore
	Close() error
}
