// Package memstore keeps all records in process memory. It backs tests and
// the "memory" storage type.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/taskbot/core/storage"
)

type dialogKey struct{ userID, chatID int64 }

// Store implements storage.Storage with maps guarded by a single RWMutex.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	seq      int64
	users    map[int64]storage.User
	chats    map[int64]storage.Chat
	tasks    map[int64]storage.Task
	comments map[int64]storage.Comment
	dialogs  map[dialogKey]storage.DialogRecord
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		users:    make(map[int64]storage.User),
		chats:    make(map[int64]storage.Chat),
		tasks:    make(map[int64]storage.Task),
		comments: make(map[int64]storage.Comment),
		dialogs:  make(map[dialogKey]storage.DialogRecord),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Users() storage.UserStore               { return userStore{s} }
func (s *Store) Chats() storage.ChatStore               { return chatStore{s} }
func (s *Store) Tasks() storage.TaskStore               { return taskStore{s} }
func (s *Store) DialogStates() storage.DialogStateStore { return dialogStore{s} }
func (s *Store) Close() error                           { return nil }

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, platformID int64, handle *string) (storage.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.PlatformID == platformID {
			return storage.User{}, storage.ErrDuplicate
		}
	}
	rec := storage.User{ID: u.s.nextID(), PlatformID: platformID, Handle: cloneString(handle), JoinedAt: u.s.stamp()}
	u.s.users[rec.ID] = rec
	return rec, nil
}

func (u userStore) GetByID(_ context.Context, id int64) (storage.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	rec, ok := u.s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return rec, nil
}

func (u userStore) GetByPlatformID(_ context.Context, platformID int64) (storage.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, rec := range u.s.users {
		if rec.PlatformID == platformID {
			return rec, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (u userStore) UpdateHandle(_ context.Context, id int64, handle *string, at time.Time) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	rec, ok := u.s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	at = at.UTC()
	rec.Handle = cloneString(handle)
	rec.UpdatedAt = &at
	u.s.users[id] = rec
	return nil
}

func (u userStore) Delete(_ context.Context, id int64) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[id]; !ok {
		return false, nil
	}
	delete(u.s.users, id)
	return true, nil
}

type chatStore struct{ s *Store }

func (c chatStore) Create(_ context.Context, platformID, installedByID int64) (storage.Chat, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.users[installedByID]; !ok {
		return storage.Chat{}, storage.Invalid("installed_by_id", storage.ErrNotFound)
	}
	for _, existing := range c.s.chats {
		if existing.PlatformID == platformID {
			return storage.Chat{}, storage.ErrDuplicate
		}
	}
	rec := storage.Chat{ID: c.s.nextID(), PlatformID: platformID, InstalledByID: installedByID, InstalledAt: c.s.stamp()}
	c.s.chats[rec.ID] = rec
	return rec, nil
}

func (c chatStore) GetByID(_ context.Context, id int64) (storage.Chat, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	rec, ok := c.s.chats[id]
	if !ok {
		return storage.Chat{}, storage.ErrNotFound
	}
	return rec, nil
}

func (c chatStore) GetByPlatformID(_ context.Context, platformID int64) (storage.Chat, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, rec := range c.s.chats {
		if rec.PlatformID == platformID {
			return rec, nil
		}
	}
	return storage.Chat{}, storage.ErrNotFound
}

func (c chatStore) Delete(_ context.Context, id int64) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.chats[id]; !ok {
		return false, nil
	}
	delete(c.s.chats, id)
	return true, nil
}

type taskStore struct{ s *Store }

func (t taskStore) Comments() storage.CommentStore { return commentStore(t) }

func (t taskStore) Create(_ context.Context, in storage.NewTask) (storage.Task, error) {
	if err := storage.ValidateTaskName(in.Name); err != nil {
		return storage.Task{}, storage.Invalid("name", err)
	}
	if err := storage.ValidateTaskDescription(in.Description); err != nil {
		return storage.Task{}, storage.Invalid("description", err)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec := storage.Task{
		ID:          t.s.nextID(),
		ChatID:      in.ChatID,
		Name:        in.Name,
		Description: cloneString(in.Description),
		CreatedByID: in.CreatedByID,
		CreatedAt:   t.s.stamp(),
	}
	t.s.tasks[rec.ID] = rec
	return rec, nil
}

func (t taskStore) GetByID(_ context.Context, id int64) (storage.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.tasks[id]
	if !ok {
		return storage.Task{}, storage.ErrNotFound
	}
	return rec, nil
}

func (t taskStore) filtered(f storage.TaskFilter) []storage.Task {
	out := make([]storage.Task, 0, len(t.s.tasks))
	for _, rec := range t.s.tasks {
		if f.ChatID != nil && rec.ChatID != *f.ChatID {
			continue
		}
		if f.CreatedByID != nil && rec.CreatedByID != *f.CreatedByID {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (t taskStore) Search(_ context.Context, q storage.TaskQuery) ([]storage.Task, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	list := t.filtered(q.TaskFilter)
	key := func(x storage.Task) time.Time {
		if q.Sort == storage.SortByCreated {
			return x.CreatedAt
		}
		return x.LastActivity()
	}
	sort.Slice(list, func(i, j int) bool {
		ki, kj := key(list[i]), key(list[j])
		if ki.Equal(kj) {
			if q.Ascending {
				return list[i].ID < list[j].ID
			}
			return list[i].ID > list[j].ID
		}
		if q.Ascending {
			return ki.Before(kj)
		}
		return ki.After(kj)
	})
	return page(list, q.Offset, q.Limit), nil
}

func (t taskStore) Count(_ context.Context, f storage.TaskFilter) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return len(t.filtered(f)), nil
}

func (t taskStore) UpdateName(_ context.Context, id int64, name string, by int64) error {
	if err := storage.ValidateTaskName(name); err != nil {
		return storage.Invalid("name", err)
	}
	return t.mutate(id, by, func(rec *storage.Task) { rec.Name = name })
}

func (t taskStore) UpdateDescription(_ context.Context, id int64, description *string, by int64) error {
	if err := storage.ValidateTaskDescription(description); err != nil {
		return storage.Invalid("description", err)
	}
	return t.mutate(id, by, func(rec *storage.Task) { rec.Description = cloneString(description) })
}

func (t taskStore) mutate(id, by int64, apply func(*storage.Task)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	rec, ok := t.s.tasks[id]
	if !ok {
		return storage.ErrNotFound
	}
	apply(&rec)
	at := t.s.stamp()
	rec.UpdatedAt = &at
	rec.UpdatedByID = &by
	t.s.tasks[id] = rec
	return nil
}

func (t taskStore) Delete(_ context.Context, id int64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.tasks[id]; !ok {
		return false, nil
	}
	delete(t.s.tasks, id)
	for cid, c := range t.s.comments {
		if c.TaskID == id {
			delete(t.s.comments, cid)
		}
	}
	return true, nil
}

type commentStore struct{ s *Store }

func (c commentStore) Create(_ context.Context, taskID, authorID int64, content string) (storage.Comment, error) {
	if err := storage.ValidateComment(content); err != nil {
		return storage.Comment{}, storage.Invalid("content", err)
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.tasks[taskID]; !ok {
		return storage.Comment{}, storage.ErrNotFound
	}
	rec := storage.Comment{ID: c.s.nextID(), TaskID: taskID, AuthorID: authorID, Content: content, PostedAt: c.s.stamp()}
	c.s.comments[rec.ID] = rec
	return rec, nil
}

func (c commentStore) GetByID(_ context.Context, id int64) (storage.Comment, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	rec, ok := c.s.comments[id]
	if !ok {
		return storage.Comment{}, storage.ErrNotFound
	}
	return rec, nil
}

func (c commentStore) ListByTask(_ context.Context, q storage.CommentQuery) ([]storage.Comment, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var list []storage.Comment
	for _, rec := range c.s.comments {
		if rec.TaskID == q.TaskID {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if q.NewestFirst {
			return list[i].ID > list[j].ID
		}
		return list[i].ID < list[j].ID
	})
	return page(list, q.Offset, q.Limit), nil
}

func (c commentStore) CountByTask(_ context.Context, taskID int64) (int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	n := 0
	for _, rec := range c.s.comments {
		if rec.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (c commentStore) UpdateContent(_ context.Context, id int64, content string) error {
	if err := storage.ValidateComment(content); err != nil {
		return storage.Invalid("content", err)
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	rec, ok := c.s.comments[id]
	if !ok {
		return storage.ErrNotFound
	}
	at := c.s.stamp()
	rec.Content = content
	rec.UpdatedAt = &at
	c.s.comments[id] = rec
	return nil
}

func (c commentStore) Delete(_ context.Context, id int64) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.comments[id]; !ok {
		return false, nil
	}
	delete(c.s.comments, id)
	return true, nil
}

type dialogStore struct{ s *Store }

func (d dialogStore) Get(_ context.Context, userID, chatID int64) (storage.DialogRecord, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	rec, ok := d.s.dialogs[dialogKey{userID, chatID}]
	if !ok {
		return storage.DialogRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (d dialogStore) Set(_ context.Context, rec storage.DialogRecord) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = d.s.stamp()
	}
	d.s.dialogs[dialogKey{rec.UserID, rec.ChatID}] = rec
	return nil
}

func (d dialogStore) Delete(_ context.Context, userID, chatID int64) (bool, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	k := dialogKey{userID, chatID}
	if _, ok := d.s.dialogs[k]; !ok {
		return false, nil
	}
	delete(d.s.dialogs, k)
	return true, nil
}

func (d dialogStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	var n int64
	for k, rec := range d.s.dialogs {
		if rec.UpdatedAt.Before(cutoff) {
			delete(d.s.dialogs, k)
			n++
		}
	}
	return n, nil
}

func page[T any](list []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

var _ storage.Storage = (*Store)(nil)
