package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/storage/memstore"
	"github.com/m3rciful/taskbot/core/update"
)

// countingUsers wraps a UserStore and counts calls.
type countingUsers struct {
	storage.UserStore
	mu      sync.Mutex
	gets    int
	creates int
	updates int
}

func (c *countingUsers) GetByPlatformID(ctx context.Context, id int64) (storage.User, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.UserStore.GetByPlatformID(ctx, id)
}

func (c *countingUsers) Create(ctx context.Context, id int64, handle *string) (storage.User, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.UserStore.Create(ctx, id, handle)
}

func (c *countingUsers) UpdateHandle(ctx context.Context, id int64, handle *string, at time.Time) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.UserStore.UpdateHandle(ctx, id, handle, at)
}

// racingUsers simulates losing a creation race: the first lookup misses, Create
// reports a duplicate and the winner becomes visible afterwards.
type racingUsers struct {
	storage.UserStore
	winner  *storage.User
	visible bool
}

func (r *racingUsers) GetByPlatformID(_ context.Context, _ int64) (storage.User, error) {
	if !r.visible || r.winner == nil {
		return storage.User{}, storage.ErrNotFound
	}
	return *r.winner, nil
}

func (r *racingUsers) Create(context.Context, int64, *string) (storage.User, error) {
	r.visible = true
	return storage.User{}, storage.ErrDuplicate
}

func (r *racingUsers) UpdateHandle(context.Context, int64, *string, time.Time) error { return nil }

func TestEnsureUserIsIdempotent(t *testing.T) {
	store := memstore.New()
	users := &countingUsers{UserStore: store.Users()}
	r := New(users, store.Chats())
	ctx := context.Background()
	pu := update.User{ID: 42, Username: "alice"}

	first, err := r.Session().EnsureUser(ctx, pu)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := r.Session().EnsureUser(ctx, pu)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID || first.HandleOrEmpty() != "alice" || second.HandleOrEmpty() != "alice" {
		t.Fatalf("records differ: %+v vs %+v", first, second)
	}
	if second.UpdatedAt != nil {
		t.Fatalf("unchanged handle must not stamp updated_at: %+v", second)
	}
	if users.creates != 1 || users.updates != 0 {
		t.Fatalf("creates=%d updates=%d", users.creates, users.updates)
	}
}

func TestEnsureUserRefreshesHandle(t *testing.T) {
	store := memstore.New()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(store.Users(), store.Chats(), WithClock(func() time.Time { return at }))
	ctx := context.Background()

	if _, err := r.Session().EnsureUser(ctx, update.User{ID: 1, Username: "old"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := r.Session().EnsureUser(ctx, update.User{ID: 1, Username: "new"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if u.HandleOrEmpty() != "new" || u.UpdatedAt == nil || !u.UpdatedAt.Equal(at) {
		t.Fatalf("projection not refreshed: %+v", u)
	}
	stored, _ := store.Users().GetByPlatformID(ctx, 1)
	if stored.HandleOrEmpty() != "new" {
		t.Fatalf("handle not persisted: %+v", stored)
	}

	u, err = r.Session().EnsureUser(ctx, update.User{ID: 1})
	if err != nil || u.Handle != nil {
		t.Fatalf("empty username must clear handle: %+v, %v", u, err)
	}
}

func TestSessionCachesPerUpdate(t *testing.T) {
	store := memstore.New()
	users := &countingUsers{UserStore: store.Users()}
	r := New(users, store.Chats())
	ctx := context.Background()
	s := r.Session()
	pu := update.User{ID: 9, Username: "bob"}

	if _, err := s.EnsureChat(ctx, update.Chat{ID: -100, Private: false}, pu); err != nil {
		t.Fatalf("chat: %v", err)
	}
	gets := users.gets
	for i := 0; i < 3; i++ {
		if _, err := s.EnsureUser(ctx, pu); err != nil {
			t.Fatalf("user: %v", err)
		}
	}
	if users.gets != gets {
		t.Fatalf("session did not cache the user: %d lookups", users.gets-gets)
	}
}

func TestEnsureChatRecordsInstaller(t *testing.T) {
	store := memstore.New()
	r := New(store.Users(), store.Chats())
	ctx := context.Background()

	chat, err := r.Session().EnsureChat(ctx, update.Chat{ID: 77, Private: true}, update.User{ID: 5})
	if err != nil {
		t.Fatalf("ensure chat: %v", err)
	}
	user, _ := store.Users().GetByPlatformID(ctx, 5)
	if chat.InstalledByID != user.ID {
		t.Fatalf("installer = %d, want %d", chat.InstalledByID, user.ID)
	}
	again, err := r.Session().EnsureChat(ctx, update.Chat{ID: 77, Private: true}, update.User{ID: 6})
	if err != nil || again.ID != chat.ID || again.InstalledByID != user.ID {
		t.Fatalf("second sighting changed chat: %+v, %v", again, err)
	}
}

func TestEnsureUserResolvesDuplicateRace(t *testing.T) {
	winner := storage.User{ID: 3, PlatformID: 42}
	r := New(&racingUsers{winner: &winner}, memstore.New().Chats())

	got, err := r.Session().EnsureUser(context.Background(), update.User{ID: 42})
	if err != nil {
		t.Fatalf("race must resolve: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("got %+v, want winner %+v", got, winner)
	}
}

func TestEnsureUserInconsistentIsFatal(t *testing.T) {
	r := New(&racingUsers{}, memstore.New().Chats())
	_, err := r.Session().EnsureUser(context.Background(), update.User{ID: 42})
	if !errors.Is(err, ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
}

func TestConcurrentFirstSightingCreatesOnce(t *testing.T) {
	store := memstore.New()
	r := New(store.Users(), store.Chats())
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := r.Session().EnsureChat(ctx, update.Chat{ID: 1000}, update.User{ID: 1, Username: "x"})
			ids[i], errs[i] = chat.ID, err
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("workers saw different chats: %v", ids)
		}
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	store := memstore.New()
	r := New(store.Users(), store.Chats())
	ctx := context.Background()
	if _, err := r.Session().LookupUser(ctx, update.User{ID: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Session().LookupChat(ctx, update.Chat{ID: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Users().GetByPlatformID(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("lookup created a user")
	}
}
