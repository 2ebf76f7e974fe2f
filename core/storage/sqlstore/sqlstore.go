// Package sqlstore implements storage.Storage over database/sql through sqlx.
// Queries are written with "?" placeholders and rebound for the driver, so
// one implementation serves both PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/m3rciful/taskbot/core/storage"
)

// Store wraps an open, migrated database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over db. The schema must already be migrated.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Users() storage.UserStore               { return userStore{s} }
func (s *Store) Chats() storage.ChatStore               { return chatStore{s} }
func (s *Store) Tasks() storage.TaskStore               { return taskStore{s} }
func (s *Store) DialogStates() storage.DialogStateStore { return dialogStore{s} }

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the pool for health checks and migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	return mapErr(err)
}

func (s *Store) sel(ctx context.Context, dest any, query string, args ...any) error {
	return mapErr(s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...))
}

// exec runs a statement and reports whether it touched any row.
func exec(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (bool, error) {
	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// mapErr turns driver errors into the storage sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", storage.ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

type userStore struct{ s *Store }

const userColumns = `id, platform_id, handle, joined_at, updated_at`

func (u userStore) Create(ctx context.Context, platformID int64, handle *string) (storage.User, error) {
	var rec storage.User
	err := u.s.get(ctx, &rec,
		`INSERT INTO users (platform_id, handle, joined_at) VALUES (?, ?, ?) RETURNING `+userColumns,
		platformID, handle, u.s.stamp())
	return rec, err
}

func (u userStore) GetByID(ctx context.Context, id int64) (storage.User, error) {
	var rec storage.User
	err := u.s.get(ctx, &rec, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return rec, err
}

func (u userStore) GetByPlatformID(ctx context.Context, platformID int64) (storage.User, error) {
	var rec storage.User
	err := u.s.get(ctx, &rec, `SELECT `+userColumns+` FROM users WHERE platform_id = ?`, platformID)
	return rec, err
}

func (u userStore) UpdateHandle(ctx context.Context, id int64, handle *string, at time.Time) error {
	ok, err := exec(ctx, u.s.db, `UPDATE users SET handle = ?, updated_at = ? WHERE id = ?`, handle, at.UTC(), id)
	if err == nil && !ok {
		return storage.ErrNotFound
	}
	return err
}

func (u userStore) Delete(ctx context.Context, id int64) (bool, error) {
	return exec(ctx, u.s.db, `DELETE FROM users WHERE id = ?`, id)
}

type chatStore struct{ s *Store }

const chatColumns = `id, platform_id, installed_by_id, installed_at, updated_by_id, updated_at`

func (c chatStore) Create(ctx context.Context, platformID, installedByID int64) (storage.Chat, error) {
	var rec storage.Chat
	err := c.s.get(ctx, &rec,
		`INSERT INTO chats (platform_id, installed_by_id, installed_at) VALUES (?, ?, ?) RETURNING `+chatColumns,
		platformID, installedByID, c.s.stamp())
	return rec, err
}

func (c chatStore) GetByID(ctx context.Context, id int64) (storage.Chat, error) {
	var rec storage.Chat
	err := c.s.get(ctx, &rec, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, id)
	return rec, err
}

func (c chatStore) GetByPlatformID(ctx context.Context, platformID int64) (storage.Chat, error) {
	var rec storage.Chat
	err := c.s.get(ctx, &rec, `SELECT `+chatColumns+` FROM chats WHERE platform_id = ?`, platformID)
	return rec, err
}

func (c chatStore) Delete(ctx context.Context, id int64) (bool, error) {
	return exec(ctx, c.s.db, `DELETE FROM chats WHERE id = ?`, id)
}

var _ storage.Storage = (*Store)(nil)
