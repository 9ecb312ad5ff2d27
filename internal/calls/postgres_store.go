package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/pkg/logger"
	"call-screener/pkg/utils"
)

// PostgresStore persists calls in the calls table.
// Mutate uses SELECT ... FOR UPDATE inside a transaction so concurrent processes
// sharing the database are serialized on the row as well.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const callColumns = `id, user_id, caller_number, caller_name, status, started_at, ended_at,
	duration_seconds, transcription, spam_score, intent, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c        Call
		name     sql.NullString
		ended    sql.NullTime
		duration sql.NullInt64
		text     sql.NullString
		spam     sql.NullFloat64
		intent   sql.NullString
	)
	err := row.Scan(&c.ID, &c.UserID, &c.CallerNumber, &name, &c.Status, &c.StartedAt, &ended,
		&duration, &text, &spam, &intent, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Call{}, err
	}
	if name.Valid {
		c.CallerName = &name.String
	}
	if ended.Valid {
		t := ended.Time.UTC()
		c.EndedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	if text.Valid {
		c.Transcription = &text.String
	}
	if spam.Valid {
		c.SpamScore = &spam.Float64
	}
	if intent.Valid {
		c.Intent = &intent.String
	}
	c.StartedAt = c.StartedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c Call) error {
	err := utils.Retry(ctx, logger.From(ctx), "calls.insert", utils.WriteRetryMaxElapsed, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO calls (`+callColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, c.ID, c.UserID, c.CallerNumber, c.CallerName, string(c.Status), c.StartedAt, c.EndedAt,
			c.DurationSeconds, c.Transcription, c.SpamScore, c.Intent, c.CreatedAt, c.UpdatedAt)
		return err
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, "calls.insert", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Call, error) {
	var c Call
	err := utils.Retry(ctx, logger.From(ctx), "calls.get", utils.ReadRetryMaxElapsed, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)
		var err error
		c, err = scanCall(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, apperrors.New(apperrors.ErrNotFound, "calls.get", "call %s", id)
	}
	if err != nil {
		return Call{}, apperrors.Wrap(apperrors.ErrUnavailable, "calls.get", err)
	}
	return c, nil
}

// errFnRejected marks an error produced by the caller's mutation func so it is
// returned untouched instead of being classified as a storage failure.
type errFnRejected struct{ err error }

func (e errFnRejected) Error() string { return e.err.Error() }
func (e errFnRejected) Unwrap() error { return e.err }

func (s *PostgresStore) Mutate(ctx context.Context, id string, fn func(c *Call) error) (Call, error) {
	var out Call
	err := utils.Retry(ctx, logger.From(ctx), "calls.mutate", utils.WriteRetryMaxElapsed, func() error {
		return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1 FOR UPDATE`, id)
			cur, err := scanCall(row)
			if err != nil {
				return err
			}
			if err := fn(&cur); err != nil {
				return errFnRejected{err: err}
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE calls
				SET status = $2, ended_at = $3, duration_seconds = $4,
				    transcription = $5, spam_score = $6, intent = $7, updated_at = $8
				WHERE id = $1
			`, cur.ID, string(cur.Status), cur.EndedAt, cur.DurationSeconds,
				cur.Transcription, cur.SpamScore, cur.Intent, cur.UpdatedAt)
			if err != nil {
				return err
			}
			out = cur
			return nil
		})
	})

	var rejected errFnRejected
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &rejected):
		return Call{}, rejected.err
	case errors.Is(err, sql.ErrNoRows):
		return Call{}, apperrors.New(apperrors.ErrNotFound, "calls.mutate", "call %s", id)
	default:
		return Call{}, apperrors.Wrap(apperrors.ErrUnavailable, "calls.mutate", err)
	}
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	return s.list(ctx, "calls.list_recent",
		`SELECT `+callColumns+` FROM calls ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Call, error) {
	return s.list(ctx, "calls.list_by_user", `
		SELECT `+callColumns+` FROM calls
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`, userID, from, to)
}

func (s *PostgresStore) list(ctx context.Context, op, query string, args ...any) ([]Call, error) {
	var out []Call
	err := utils.Retry(ctx, logger.From(ctx), op, utils.ReadRetryMaxElapsed, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			c, err := scanCall(rows)
			if err != nil {
				return fmt.Errorf("scan call: %w", err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, op, err)
	}
	if out == nil {
		out = []Call{}
	}
	return out, nil
}
