package callbacks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/pkg/logger"
	"call-screener/pkg/utils"
)

// PostgresStore persists callbacks in the callbacks table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const callbackColumns = `id, call_id, user_id, caller_number, scheduled_time, status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallback(row rowScanner) (Callback, error) {
	var (
		cb    Callback
		notes sql.NullString
	)
	if err := row.Scan(&cb.ID, &cb.CallID, &cb.UserID, &cb.CallerNumber, &cb.ScheduledTime,
		&cb.Status, &notes, &cb.CreatedAt, &cb.UpdatedAt); err != nil {
		return Callback{}, err
	}
	if notes.Valid {
		cb.Notes = &notes.String
	}
	cb.ScheduledTime = cb.ScheduledTime.UTC()
	cb.CreatedAt = cb.CreatedAt.UTC()
	cb.UpdatedAt = cb.UpdatedAt.UTC()
	return cb, nil
}

func (s *PostgresStore) Insert(ctx context.Context, cb Callback) error {
	err := utils.Retry(ctx, logger.From(ctx), "callbacks.insert", utils.WriteRetryMaxElapsed, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO callbacks (`+callbackColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, cb.ID, cb.CallID, cb.UserID, cb.CallerNumber, cb.ScheduledTime, string(cb.Status),
			cb.Notes, cb.CreatedAt, cb.UpdatedAt)
		return err
	})
	return apperrors.Wrap(apperrors.ErrUnavailable, "callbacks.insert", err)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Callback, error) {
	var cb Callback
	err := utils.Retry(ctx, logger.From(ctx), "callbacks.get", utils.ReadRetryMaxElapsed, func() error {
		var err error
		cb, err = scanCallback(s.db.QueryRowContext(ctx, `SELECT `+callbackColumns+` FROM callbacks WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Callback{}, apperrors.New(apperrors.ErrNotFound, "callbacks.get", "callback %s", id)
	}
	if err != nil {
		return Callback{}, apperrors.Wrap(apperrors.ErrUnavailable, "callbacks.get", err)
	}
	return cb, nil
}

type fnError struct{ err error }

func (e fnError) Error() string { return e.err.Error() }
func (e fnError) Unwrap() error { return e.err }

func (s *PostgresStore) Mutate(ctx context.Context, id string, fn func(cb *Callback) error) (Callback, error) {
	var out Callback
	err := utils.Retry(ctx, logger.From(ctx), "callbacks.mutate", utils.WriteRetryMaxElapsed, func() error {
		return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
			cur, err := scanCallback(tx.QueryRowContext(ctx,
				`SELECT `+callbackColumns+` FROM callbacks WHERE id = $1 FOR UPDATE`, id))
			if err != nil {
				return err
			}
			if err := fn(&cur); err != nil {
				return fnError{err: err}
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE callbacks SET status = $2, notes = $3, scheduled_time = $4, updated_at = $5
				WHERE id = $1
			`, cur.ID, string(cur.Status), cur.Notes, cur.ScheduledTime, cur.UpdatedAt); err != nil {
				return err
			}
			out = cur
			return nil
		})
	})

	var fe fnError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &fe):
		return Callback{}, fe.err
	case errors.Is(err, sql.ErrNoRows):
		return Callback{}, apperrors.New(apperrors.ErrNotFound, "callbacks.mutate", "callback %s", id)
	default:
		return Callback{}, apperrors.Wrap(apperrors.ErrUnavailable, "callbacks.mutate", err)
	}
}

func (s *PostgresStore) ListScheduled(ctx context.Context, before time.Time) ([]Callback, error) {
	query := `SELECT ` + callbackColumns + ` FROM callbacks WHERE status = 'scheduled'`
	args := []any{}
	if !before.IsZero() {
		query += ` AND scheduled_time < $1`
		args = append(args, before)
	}
	query += ` ORDER BY scheduled_time ASC, id ASC`

	out := []Callback{}
	err := utils.Retry(ctx, logger.From(ctx), "callbacks.list_scheduled", utils.ReadRetryMaxElapsed, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			cb, err := scanCallback(rows)
			if err != nil {
				return err
			}
			out = append(out, cb)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "callbacks.list_scheduled", err)
	}
	return out, nil
}
