// Package reconcile maps platform identities onto local user and chat records,
// creating them on first sight and tolerating concurrent creators.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
	"github.com/m3rciful/taskbot/core/update"
)

// ErrInconsistent reports that a create was rejected as a duplicate but the
// record could not be found afterwards. It is never retried.
var ErrInconsistent = errors.New("reconcile: duplicate reported but record is missing")

// Reconciler is shared by all update workers.
type Reconciler struct {
	users storage.UserStore
	chats storage.ChatStore
	now   func() time.Time
	group singleflight.Group
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the clock used to stamp handle updates.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New returns a Reconciler over the given stores.
func New(users storage.UserStore, chats storage.ChatStore, opts ...Option) *Reconciler {
	r := &Reconciler{users: users, chats: chats, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session caches reconciled records for the processing of one update.
// It is not safe for concurrent use.
type Session struct {
	r    *Reconciler
	user *storage.User
	chat *storage.Chat
}

// Session starts a per-update cache.
func (r *Reconciler) Session() *Session {
	return &Session{r: r}
}

// EnsureUser returns the local record for u, creating it or refreshing its handle as needed.
func (s *Session) EnsureUser(ctx context.Context, u update.User) (storage.User, error) {
	if s.user != nil && s.user.PlatformID == u.ID {
		return *s.user, nil
	}
	user, err := s.r.ensureUser(ctx, u)
	if err != nil {
		return storage.User{}, err
	}
	s.user = &user
	return user, nil
}

// EnsureChat returns the local record for c. A new chat is attributed to the
// user who sent the update, who is reconciled first.
func (s *Session) EnsureChat(ctx context.Context, c update.Chat, by update.User) (storage.Chat, error) {
	if s.chat != nil && s.chat.PlatformID == c.ID {
		return *s.chat, nil
	}
	installer, err := s.EnsureUser(ctx, by)
	if err != nil {
		return storage.Chat{}, err
	}
	chat, err := s.r.ensureChat(ctx, c, installer.ID)
	if err != nil {
		return storage.Chat{}, err
	}
	s.chat = &chat
	return chat, nil
}

// LookupUser returns the existing record for u without creating one.
// A changed handle is still refreshed.
func (s *Session) LookupUser(ctx context.Context, u update.User) (storage.User, error) {
	if s.user != nil && s.user.PlatformID == u.ID {
		return *s.user, nil
	}
	user, err := s.r.users.GetByPlatformID(ctx, u.ID)
	if err != nil {
		return storage.User{}, err
	}
	if user, err = s.r.refreshHandle(ctx, user, u); err != nil {
		return storage.User{}, err
	}
	s.user = &user
	return user, nil
}

// LookupChat returns the existing record for c without creating one.
func (s *Session) LookupChat(ctx context.Context, c update.Chat) (storage.Chat, error) {
	if s.chat != nil && s.chat.PlatformID == c.ID {
		return *s.chat, nil
	}
	chat, err := s.r.chats.GetByPlatformID(ctx, c.ID)
	if err != nil {
		return storage.Chat{}, err
	}
	s.chat = &chat
	return chat, nil
}

func (r *Reconciler) ensureUser(ctx context.Context, u update.User) (storage.User, error) {
	// Collapse concurrent first sightings in this process; the duplicate path covers the rest.
	v, err, _ := r.group.Do("user:"+strconv.FormatInt(u.ID, 10), func() (any, error) {
		return getOrCreate(ctx, "user", u.ID,
			func() (storage.User, error) { return r.users.GetByPlatformID(ctx, u.ID) },
			func() (storage.User, error) { return r.users.Create(ctx, u.ID, handleOf(u)) },
		)
	})
	if err != nil {
		return storage.User{}, err
	}
	return r.refreshHandle(ctx, v.(storage.User), u)
}

func (r *Reconciler) ensureChat(ctx context.Context, c update.Chat, installedByID int64) (storage.Chat, error) {
	v, err, _ := r.group.Do("chat:"+strconv.FormatInt(c.ID, 10), func() (any, error) {
		return getOrCreate(ctx, "chat", c.ID,
			func() (storage.Chat, error) { return r.chats.GetByPlatformID(ctx, c.ID) },
			func() (storage.Chat, error) { return r.chats.Create(ctx, c.ID, installedByID) },
		)
	})
	if err != nil {
		return storage.Chat{}, err
	}
	return v.(storage.Chat), nil
}

// getOrCreate looks a record up, creates it when absent and resolves a
// duplicate by fetching the winner.
func getOrCreate[T any](ctx context.Context, kind string, platformID int64, get, create func() (T, error)) (T, error) {
	var zero T
	rec, err := get()
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return zero, fmt.Errorf("reconcile %s %d: lookup: %w", kind, platformID, err)
	}

	rec, err = create()
	if err == nil {
		logger.Info(ctx, "reconcile", kind+".created", slog.Int64("platform_id", platformID))
		return rec, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return zero, fmt.Errorf("reconcile %s %d: create: %w", kind, platformID, err)
	}

	logger.Debug(ctx, "reconcile", "reconcile.conflict",
		slog.String("kind", kind),
		slog.Int64("platform_id", platformID),
	)
	rec, err = get()
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, storage.ErrNotFound):
		logger.Error(ctx, "reconcile", "reconcile.inconsistent",
			slog.String("kind", kind),
			slog.Int64("platform_id", platformID),
		)
		return zero, fmt.Errorf("%s %d: %w", kind, platformID, ErrInconsistent)
	default:
		return zero, fmt.Errorf("reconcile %s %d: refetch: %w", kind, platformID, err)
	}
}

// refreshHandle persists a changed username and returns the updated projection.
func (r *Reconciler) refreshHandle(ctx context.Context, user storage.User, u update.User) (storage.User, error) {
	handle := handleOf(u)
	if sameHandle(user.Handle, handle) {
		return user, nil
	}
	at := r.now().UTC()
	if err := r.users.UpdateHandle(ctx, user.ID, handle, at); err != nil {
		return storage.User{}, fmt.Errorf("reconcile user %d: update handle: %w", u.ID, err)
	}
	user.Handle = handle
	user.UpdatedAt = &at
	return user, nil
}

func handleOf(u update.User) *string {
	if u.Username == "" {
		return nil
	}
	h := u.Username
	return &h
}

func sameHandle(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
