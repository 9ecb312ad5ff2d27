package audit

import (
	"context"
	"database/sql"

	"call-screener/internal/apperrors"
	"call-screener/pkg/logger"
	"call-screener/pkg/utils"
)

// PostgresRepo writes to the audit_events table, which only ever receives INSERTs.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	err := utils.Retry(ctx, logger.From(ctx), "audit.append", utils.WriteRetryMaxElapsed, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO audit_events (id, type, actor_user_id, actor_role, owner_user_id,
				call_id, callback_id, from_status, to_status, message, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.OwnerUserID,
			e.CallID, e.CallbackID, e.FromStatus, e.ToStatus, e.Message, e.CreatedAt)
		return err
	})
	return apperrors.Wrap(apperrors.ErrUnavailable, "audit.append", err)
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	out := []Event{}
	err := utils.Retry(ctx, logger.From(ctx), "audit.list_by_call", utils.ReadRetryMaxElapsed, func() error {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, type, actor_user_id, actor_role, owner_user_id,
				call_id, callback_id, from_status, to_status, message, created_at
			FROM audit_events
			WHERE call_id = $1
			ORDER BY created_at ASC, id ASC
		`, callID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var e Event
			if err := rows.Scan(&e.ID, &e.Type, &e.ActorUserID, &e.ActorRole, &e.OwnerUserID,
				&e.CallID, &e.CallbackID, &e.FromStatus, &e.ToStatus, &e.Message, &e.CreatedAt); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "audit.list_by_call", err)
	}
	return out, nil
}
