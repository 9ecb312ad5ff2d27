package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no rows", sql.ErrNoRows, false},
		{"canceled", context.Canceled, false},
		{"conn done", sql.ErrConnDone, true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"plain", errors.New("syntax error"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("syntax error")
	err := Retry(context.Background(), nil, "test", time.Second, func() error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, "test", 5*time.Second, func() error {
		calls++
		if calls < 3 {
			return sql.ErrConnDone
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}
