package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/transcribot/transcribot/internal/logger"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

type DB struct {
	conn    *sql.DB
	dialect dialect
}

// NewDB opens a Postgres connection. An empty dsn means no database is
// configured and returns nil, nil.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, nil
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	return newDB(conn, dialectPostgres)
}

// NewSQLiteDB opens an embedded SQLite database at path (":memory:" works).
func NewSQLiteDB(path string) (*DB, error) {
	if path == "" {
		return nil, nil
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	conn.SetMaxOpenConns(1)

	return newDB(conn, dialectSQLite)
}

func newDB(conn *sql.DB, d dialect) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dialect: d}

	if err := db.initTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.Info("Database connection established successfully", map[string]interface{}{
		"driver": db.driverName(),
	})
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db != nil && db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping is used by the health endpoint
func (db *DB) Ping(ctx context.Context) error {
	if db == nil {
		return fmt.Errorf("database not configured")
	}
	return db.conn.PingContext(ctx)
}

func (db *DB) driverName() string {
	if db.dialect == dialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

func (db *DB) initTables(ctx context.Context) error {
	timestamp := "TIMESTAMP WITH TIME ZONE"
	serial := "BIGSERIAL PRIMARY KEY"
	if db.dialect == dialectSQLite {
		timestamp = "TIMESTAMP"
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username VARCHAR(255) NOT NULL DEFAULT '',
		interface_language VARCHAR(16) NOT NULL DEFAULT 'en',
		subscribed BOOLEAN NOT NULL DEFAULT FALSE,
		subscription_until %[1]s,
		stripe_customer_id VARCHAR(255) NOT NULL DEFAULT '',
		stripe_subscription_id VARCHAR(255) NOT NULL DEFAULT '',
		created_at %[1]s NOT NULL,
		updated_at %[1]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_stripe_subscription_id ON users(stripe_subscription_id);

	CREATE TABLE IF NOT EXISTS usage_records (
		user_id BIGINT NOT NULL,
		usage_date VARCHAR(10) NOT NULL,
		request_count INTEGER NOT NULL DEFAULT 0,
		updated_at %[1]s NOT NULL,
		UNIQUE (user_id, usage_date)
	);

	CREATE TABLE IF NOT EXISTS request_history (
		id %[2]s,
		user_id BIGINT NOT NULL,
		file_name VARCHAR(255) NOT NULL DEFAULT '',
		media_kind VARCHAR(16) NOT NULL DEFAULT '',
		source_language VARCHAR(16) NOT NULL DEFAULT '',
		target_languages VARCHAR(255) NOT NULL DEFAULT '',
		transcript_chars INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL,
		error_code VARCHAR(64) NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at %[1]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_request_history_user_id ON request_history(user_id);

	CREATE TABLE IF NOT EXISTS subscription_change_log (
		id %[2]s,
		user_id BIGINT NOT NULL,
		subscription_id VARCHAR(255) NOT NULL,
		operation VARCHAR(50) NOT NULL,
		created_at %[1]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_subscription_change_log_user_id ON subscription_change_log(user_id);
	`, timestamp, serial)

	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// rebind rewrites ? placeholders into $n for Postgres
func (db *DB) rebind(query string) string {
	if db.dialect != dialectPostgres {
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

// GetGlobalStats aggregates user and job counts. today is a usage_date key.
func (db *DB) GetGlobalStats(ctx context.Context, today string) (*GlobalStats, error) {
	if db == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := db.rebind(`
	SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM users WHERE subscribed = ?),
		(SELECT COALESCE(SUM(request_count), 0) FROM usage_records WHERE usage_date = ?),
		(SELECT COUNT(*) FROM request_history)
	`)

	stats := &GlobalStats{}
	err := db.conn.QueryRowContext(ctx, query, true, today).Scan(
		&stats.TotalUsers,
		&stats.SubscribedUsers,
		&stats.JobsToday,
		&stats.TotalJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get global stats: %w", err)
	}

	return stats, nil
}
