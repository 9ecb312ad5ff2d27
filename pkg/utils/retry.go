package utils

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	retryInitialInterval = 50 * time.Millisecond
	retryMaxInterval     = 2 * time.Second

	// ReadRetryMaxElapsed bounds retries of single-row reads and list queries.
	ReadRetryMaxElapsed = 5 * time.Second
	// WriteRetryMaxElapsed bounds retries of transactional writes.
	WriteRetryMaxElapsed = 10 * time.Second
)

// RetryPolicy returns a context-aware exponential backoff.
func RetryPolicy(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Retry runs op until it succeeds, returns a non-transient error, or the policy gives up.
// Only errors recognised by IsTransient are retried; everything else is returned on first sight.
func Retry(ctx context.Context, log *slog.Logger, opName string, maxElapsed time.Duration, op func() error) error {
	if log == nil {
		log = slog.Default()
	}
	notify := func(err error, d time.Duration) {
		log.Warn("retrying db operation", "op", opName, "err", err, "after", d)
	}

	err := backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, RetryPolicy(ctx, maxElapsed), notify)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// IsTransient reports whether err looks like a temporary database or network condition.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 53: insufficient resources,
		// 40001: serialization failure, 40P01: deadlock.
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "40001" ||
			pgErr.Code == "40P01"
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "bad connection"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
