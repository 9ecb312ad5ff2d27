package callbacks

import (
	"context"

	"call-screener/internal/audit"
)

// AuditAdapter bridges scheduler status changes to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogCallbackStatusChange(ctx context.Context, cb Callback, from Status) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.LogCallbackStatus(ctx, cb.UserID, cb.CallID, cb.ID, string(from), string(cb.Status), cb.UpdatedAt)
}
