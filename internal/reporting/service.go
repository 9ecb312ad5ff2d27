// Package reporting aggregates call history for a user.
package reporting

import (
	"context"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
)

// DefaultSpamThreshold is the spam score from which a call counts as spam.
const DefaultSpamThreshold = 0.7

// MaxRange bounds a single summary query.
const MaxRange = 366 * 24 * time.Hour

// Repository reads immutable call history. calls.Store satisfies it.
type Repository interface {
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo          Repository
	spamThreshold float64
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, spamThreshold: DefaultSpamThreshold}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	const op = "reporting.calls_summary"
	if strings.TrimSpace(req.UserID) == "" {
		return CallsSummary{}, apperrors.New(apperrors.ErrValidation, op, "user_id is required")
	}
	from, to := req.Range.From.UTC(), req.Range.To.UTC()
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return CallsSummary{}, apperrors.New(apperrors.ErrValidation, op, "range must satisfy from < to")
	}
	if to.Sub(from) > MaxRange {
		return CallsSummary{}, apperrors.New(apperrors.ErrValidation, op, "range exceeds %s", MaxRange)
	}

	rows, err := s.repo.ListByUser(ctx, req.UserID, from, to)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{
		UserID:        req.UserID,
		Range:         TimeRange{From: from, To: to},
		SpamThreshold: s.spamThreshold,
		Intents:       map[string]int{},
	}
	ended := 0
	for _, c := range rows {
		out.TotalCalls++
		switch c.Status {
		case calls.CallStatusRinging:
			out.RingingCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		case calls.CallStatusBlocked:
			out.BlockedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		}
		if c.DurationSeconds != nil {
			ended++
			out.TotalDurationSeconds += *c.DurationSeconds
		}
		if c.Transcription != nil {
			out.ScreenedCalls++
		}
		if c.SpamScore != nil && *c.SpamScore >= s.spamThreshold {
			out.SpamFlaggedCalls++
		}
		if c.Intent != nil && *c.Intent != "" {
			out.Intents[*c.Intent]++
		}
	}
	// Only ended calls have a duration.
	if ended > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / ended
	}
	return out, nil
}
