package calls

import (
	"context"

	"call-screener/internal/audit"
)

// AuditAdapter bridges lifecycle status changes to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogCallStatusChange(ctx context.Context, e StatusChange) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.LogCallStatus(ctx, e.UserID, e.CallID, string(e.From), string(e.To), e.At)
}
