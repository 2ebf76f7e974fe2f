package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3rciful/taskbot/core/database"
	"github.com/m3rciful/taskbot/core/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "taskbot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate: %v", err)
	}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := New(db, WithClock(clock.now))
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

// seed creates a user and a chat installed by that user.
func seed(t *testing.T, s *Store) (storage.User, storage.Chat) {
	t.Helper()
	ctx := context.Background()
	u, err := s.Users().Create(ctx, 1001, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	c, err := s.Chats().Create(ctx, -500, u.ID)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return u, c
}

func TestUsersAndChats(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()
	u, c := seed(t, s)

	if _, err := s.Users().Create(ctx, 1001, nil); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate user: %v", err)
	}
	if _, err := s.Chats().Create(ctx, -500, u.ID); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate chat: %v", err)
	}
	if _, err := s.Users().GetByPlatformID(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}

	handle := "alice"
	clock.advance(time.Minute)
	if err := s.Users().UpdateHandle(ctx, u.ID, &handle, clock.now()); err != nil {
		t.Fatalf("update handle: %v", err)
	}
	got, err := s.Users().GetByPlatformID(ctx, 1001)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.HandleOrEmpty() != "alice" || got.UpdatedAt == nil || !got.UpdatedAt.Equal(clock.now()) {
		t.Fatalf("handle not stored: %+v", got)
	}
	if !got.JoinedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("joined_at = %v", got.JoinedAt)
	}
	if err := s.Users().UpdateHandle(ctx, 999, nil, clock.now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing user: %v", err)
	}

	chat, err := s.Chats().GetByPlatformID(ctx, -500)
	if err != nil || chat.ID != c.ID || chat.InstalledByID != u.ID {
		t.Fatalf("get chat = %+v, %v", chat, err)
	}
}

func TestTaskSearchOrderAndPaging(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()
	u, c := seed(t, s)

	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		task, err := s.Tasks().Create(ctx, storage.NewTask{ChatID: c.ID, Name: name, CreatedByID: u.ID})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids = append(ids, task.ID)
		clock.advance(time.Minute)
	}
	if err := s.Tasks().UpdateName(ctx, ids[0], "a2", u.ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	chatID := c.ID
	got, err := s.Tasks().Search(ctx, storage.TaskQuery{TaskFilter: storage.TaskFilter{ChatID: &chatID}, Limit: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[0] || got[1].ID != ids[2] {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Name != "a2" || got[0].UpdatedByID == nil || *got[0].UpdatedByID != u.ID {
		t.Fatalf("update not stored: %+v", got[0])
	}

	rest, err := s.Tasks().Search(ctx, storage.TaskQuery{TaskFilter: storage.TaskFilter{ChatID: &chatID}, Offset: 2})
	if err != nil || len(rest) != 1 || rest[0].ID != ids[1] {
		t.Fatalf("offset page = %+v, %v", rest, err)
	}

	byCreated, err := s.Tasks().Search(ctx, storage.TaskQuery{Sort: storage.SortByCreated, Ascending: true})
	if err != nil || len(byCreated) != 3 || byCreated[0].ID != ids[0] || byCreated[2].ID != ids[2] {
		t.Fatalf("created order = %+v, %v", byCreated, err)
	}

	n, err := s.Tasks().Count(ctx, storage.TaskFilter{ChatID: &chatID})
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	other := int64(777)
	if n, _ := s.Tasks().Count(ctx, storage.TaskFilter{ChatID: &other}); n != 0 {
		t.Fatalf("foreign count = %d", n)
	}
}

func TestTaskValidationAndMissing(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	u, c := seed(t, s)

	if _, err := s.Tasks().Create(ctx, storage.NewTask{ChatID: c.ID, Name: " ", CreatedByID: u.ID}); !errors.Is(err, storage.ErrBlank) {
		t.Fatalf("blank name: %v", err)
	}
	if err := s.Tasks().UpdateName(ctx, 404, "x", u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if _, err := s.Tasks().GetByID(ctx, 404); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if _, err := s.Tasks().Comments().Create(ctx, 404, u.ID, "hi"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("comment on missing task: %v", err)
	}
}

func TestDeleteTaskDropsComments(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()
	u, c := seed(t, s)

	task, err := s.Tasks().Create(ctx, storage.NewTask{ChatID: c.ID, Name: "t", CreatedByID: u.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, text := range []string{"first", "second"} {
		if _, err := s.Tasks().Comments().Create(ctx, task.ID, u.ID, text); err != nil {
			t.Fatalf("comment: %v", err)
		}
		clock.advance(time.Second)
	}
	list, err := s.Tasks().Comments().ListByTask(ctx, storage.CommentQuery{TaskID: task.ID, NewestFirst: true})
	if err != nil || len(list) != 2 || list[0].Content != "second" {
		t.Fatalf("list = %+v, %v", list, err)
	}

	ok, err := s.Tasks().Delete(ctx, task.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if n, _ := s.Tasks().Comments().CountByTask(ctx, task.ID); n != 0 {
		t.Fatalf("comments left: %d", n)
	}
	if ok, _ := s.Tasks().Delete(ctx, task.ID); ok {
		t.Fatal("second delete must report false")
	}
}

func TestDialogUpsertAndPurge(t *testing.T) {
	s, clock := openTestStore(t)
	ctx := context.Background()
	u, c := seed(t, s)
	u2, err := s.Users().Create(ctx, 1002, nil)
	if err != nil {
		t.Fatalf("second user: %v", err)
	}

	d := s.DialogStates()
	if err := d.Set(ctx, storage.DialogRecord{UserID: u.ID, ChatID: c.ID, Type: "a", Data: "{}"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := d.Set(ctx, storage.DialogRecord{UserID: u.ID, ChatID: c.ID, Type: "b", Data: `{"task_id":1}`}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rec, err := d.Get(ctx, u.ID, c.ID)
	if err != nil || rec.Type != "b" || rec.Data != `{"task_id":1}` {
		t.Fatalf("get = %+v, %v", rec, err)
	}

	clock.advance(2 * time.Hour)
	if err := d.Set(ctx, storage.DialogRecord{UserID: u2.ID, ChatID: c.ID, Type: "a", Data: "{}"}); err != nil {
		t.Fatalf("set fresh: %v", err)
	}
	n, err := d.DeleteOlderThan(ctx, clock.now().Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if _, err := d.Get(ctx, u.ID, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale state kept: %v", err)
	}
	if ok, err := d.Delete(ctx, u2.ID, c.ID); err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	if ok, _ := d.Delete(ctx, u2.ID, c.ID); ok {
		t.Fatal("second delete must report false")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	if err := database.RunMigrations(s.DB()); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
