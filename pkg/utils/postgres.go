package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// applicationName tags the service's sessions in pg_stat_activity.
const applicationName = "call-screener"

// PostgresPoolConfig sizes the database/sql pool. Zero values take defaults.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// PingTimeout bounds one connectivity check.
	PingTimeout time.Duration
	// ConnectWait is how long OpenPostgres keeps retrying a database that is not
	// accepting connections yet. Zero means a single attempt.
	ConnectWait time.Duration
}

func (c PostgresPoolConfig) withDefaults() PostgresPoolConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	return c
}

// PostgresDSN builds the pgx connection URL for the calls database. It embeds the
// password, so keep it out of logs.
func PostgresDSN(host string, port int, user, password, name, sslMode string) string {
	q := url.Values{"application_name": []string{applicationName}}
	if sslMode != "" {
		q.Set("sslmode", sslMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + strconv.Itoa(port),
		Path:     "/" + name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// OpenPostgres opens the pool (driverName "pgx" registers through pgx/v5/stdlib)
// and waits for the database to answer. Transient connection failures are retried
// with backoff for up to pool.ConnectWait, so the API can start alongside Postgres.
func OpenPostgres(ctx context.Context, log *slog.Logger, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	ping := func() error { return PingPostgres(ctx, db, pool.PingTimeout) }
	if pool.ConnectWait > 0 {
		err = Retry(ctx, log, "postgres.connect", pool.ConnectWait, ping)
	} else {
		err = ping()
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PingPostgres is the database probe used at startup and by /health.
// A non-positive timeout means 5s.
func PingPostgres(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// TxFunc is one transactional read-modify-write against the stores.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fn in a transaction and commits when it returns nil. On error the
// transaction is rolled back; a failed rollback is joined to fn's error. A panic
// rolls back and propagates.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
