package utils

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE calls").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE calls SET status = 'missed'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackAndRepanics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			panic("kaboom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_ReturnsCommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(sql.ErrConnDone)

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresDSN(t *testing.T) {
	got := PostgresDSN("db", 5432, "app", "p@ss", "screener", "disable")
	assert.Equal(t, "postgres://app:p%40ss@db:5432/screener?application_name=call-screener&sslmode=disable", got)
}

func TestPingPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = PingPostgres(context.Background(), db, 0)
	assert.ErrorContains(t, err, "db ping failed")
}

func TestWithTx_JoinsRollbackFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

	boom := errors.New("row changed")
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "rollback: connection lost")
}

func TestOpenPostgres_RetriesUntilDatabaseAnswers(t *testing.T) {
	const dsn = "open-postgres-retry"
	mockDB, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connection refused"))
	mock.ExpectPing()

	db, err := OpenPostgres(context.Background(), nil, "sqlmock", dsn, PostgresPoolConfig{ConnectWait: 2 * time.Second})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	_ = db.Close()
}

func TestOpenPostgres_DoesNotRetryPermanentFailures(t *testing.T) {
	const dsn = "open-postgres-auth"
	mockDB, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("password authentication failed for user \"app\""))

	_, err = OpenPostgres(context.Background(), nil, "sqlmock", dsn, PostgresPoolConfig{ConnectWait: 2 * time.Second})
	assert.ErrorContains(t, err, "password authentication failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
