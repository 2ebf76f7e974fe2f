package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/storage"
)

// Store reads and writes typed states on top of a storage.DialogStateStore.
type Store struct {
	backend storage.DialogStateStore
	codec   *Codec
	now     func() time.Time
}

// NewStore wraps backend with the built-in codec.
func NewStore(backend storage.DialogStateStore) *Store {
	return &Store{backend: backend, codec: NewCodec(), now: time.Now}
}

// Codec exposes the codec so callers can register extra states.
func (s *Store) Codec() *Codec { return s.codec }

// Get returns the pending state for (userID, chatID); ok is false when there is none.
// A record that no longer decodes is logged and removed.
func (s *Store) Get(ctx context.Context, userID, chatID int64) (State, bool, error) {
	rec, err := s.backend.Get(ctx, userID, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dialog: get: %w", err)
	}
	st, err := s.codec.Decode(Type(rec.Type), []byte(rec.Data))
	if err != nil {
		logger.Warn(ctx, "dialog", "dialog.decode_failed",
			slog.String("dialog", rec.Type),
			slog.String("err", err.Error()),
		)
		if _, derr := s.backend.Delete(ctx, userID, chatID); derr != nil {
			return nil, false, fmt.Errorf("dialog: drop undecodable state: %w", derr)
		}
		return nil, false, nil
	}
	return st, true, nil
}

// Set replaces the pending state for (userID, chatID).
func (s *Store) Set(ctx context.Context, userID, chatID int64, st State) error {
	t, data, err := s.codec.Encode(st)
	if err != nil {
		return err
	}
	rec := storage.DialogRecord{
		UserID:    userID,
		ChatID:    chatID,
		Type:      string(t),
		Data:      string(data),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.backend.Set(ctx, rec); err != nil {
		return fmt.Errorf("dialog: set %s: %w", t, err)
	}
	logger.Debug(ctx, "dialog", "dialog.transition", slog.String("dialog", string(t)))
	return nil
}

// Delete clears the pending state and reports whether one existed.
func (s *Store) Delete(ctx context.Context, userID, chatID int64) (bool, error) {
	ok, err := s.backend.Delete(ctx, userID, chatID)
	if err != nil {
		return false, fmt.Errorf("dialog: delete: %w", err)
	}
	return ok, nil
}

// PurgeExpired removes states not written for longer than ttl.
func (s *Store) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := s.backend.DeleteOlderThan(ctx, s.now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("dialog: purge: %w", err)
	}
	return n, nil
}

// WithClock overrides the clock used to stamp and expire states.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}
