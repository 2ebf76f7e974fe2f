package sqlstore

import (
	"context"
	"time"

	"github.com/m3rciful/taskbot/core/storage"
)

type dialogStore struct{ s *Store }

func (d dialogStore) Get(ctx context.Context, userID, chatID int64) (storage.DialogRecord, error) {
	var rec storage.DialogRecord
	err := d.s.get(ctx, &rec,
		`SELECT user_id, chat_id, type, data, updated_at FROM dialog_states WHERE user_id = ? AND chat_id = ?`,
		userID, chatID)
	return rec, err
}

func (d dialogStore) Set(ctx context.Context, rec storage.DialogRecord) error {
	at := rec.UpdatedAt
	if at.IsZero() {
		at = d.s.stamp()
	}
	_, err := exec(ctx, d.s.db,
		`INSERT INTO dialog_states (user_id, chat_id, type, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, chat_id) DO UPDATE
		 SET type = excluded.type, data = excluded.data, updated_at = excluded.updated_at`,
		rec.UserID, rec.ChatID, rec.Type, rec.Data, at.UTC())
	return err
}

func (d dialogStore) Delete(ctx context.Context, userID, chatID int64) (bool, error) {
	return exec(ctx, d.s.db, `DELETE FROM dialog_states WHERE user_id = ? AND chat_id = ?`, userID, chatID)
}

func (d dialogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.s.db.ExecContext(ctx, d.s.db.Rebind(`DELETE FROM dialog_states WHERE updated_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}
