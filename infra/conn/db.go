package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mstgnz/storepay/infra/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps *sql.DB with the dialect it was opened with
type DB struct {
	*sql.DB
	Driver string
}

// Open connects to the database, retrying the ping a few times so the service
// can start before the database container is ready
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var lastErr error
	for attempts := 1; attempts <= 5; attempts++ {
		database, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		if driver == DriverSQLite {
			database.SetMaxOpenConns(10)
			database.SetMaxIdleConns(5)
			database.SetConnMaxLifetime(0)
		} else {
			database.SetMaxOpenConns(25)
			database.SetMaxIdleConns(5)
			database.SetConnMaxLifetime(5 * time.Minute)
			database.SetConnMaxIdleTime(2 * time.Minute)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = database.PingContext(pingCtx)
		cancel()
		if err == nil {
			logger.Info("Database connected", logger.LogContext{Fields: map[string]any{"driver": driver}})
			return &DB{DB: database, Driver: driver}, nil
		}

		lastErr = err
		database.Close()
		logger.Warn(fmt.Sprintf("Attempt %d: failed to ping database: %v", attempts, err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempts) * 500 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after 5 attempts: %w", lastErr)
}

func sqlitePath(dsn string) string {
	if idx := strings.Index(dsn, "?"); idx != -1 {
		return strings.TrimPrefix(dsn[:idx], "file:")
	}
	return strings.TrimPrefix(dsn, "file:")
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=20000&_txlock=immediate&_foreign_keys=on"
}

// Rebind rewrites '?' placeholders to '$n' for postgres
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsBusy reports whether err is a transient SQLite lock error
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Retry executes op again when SQLite reports a busy database
func Retry(ctx context.Context, maxRetries int, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		// 10ms, 20ms, 40ms, ...
		backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		logger.Error("Failed to close database connection", err)
		return err
	}
	logger.Info("Database connection closed")
	return nil
}
