package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// Postgres error codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Database struct {
	Conn *sql.DB
}

// NewDatabase opens a pool and pings it once with a 5 second budget.
func NewDatabase(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

// Connect keeps calling NewDatabase with a fixed backoff until it succeeds
// or ctx is cancelled.
func Connect(ctx context.Context, dsn string, retryEvery time.Duration) (*Database, error) {
	for attempt := 1; ; attempt++ {
		database, err := NewDatabase(dsn)
		if err == nil {
			return database, nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", retryEvery).Msg("database unavailable")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(retryEvery):
		}
	}
}

// Monitor pings the pool every interval and logs when connectivity is lost
// and regained. database/sql re-dials broken connections on its own, so the
// monitor never terminates the process.
func (d *Database) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := d.Conn.PingContext(pingCtx)
			cancel()

			switch {
			case err != nil && healthy:
				healthy = false
				log.Error().Err(err).Msg("database disconnected, attempting to reconnect")
			case err != nil:
				log.Warn().Err(err).Msg("database still unreachable")
			case !healthy:
				healthy = true
				log.Info().Msg("database reconnected")
			}
		}
	}
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name VARCHAR(100) NOT NULL,
            email VARCHAR(255) UNIQUE NOT NULL,
            password VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE TABLE IF NOT EXISTS connections (
            id TEXT PRIMARY KEY,
            user_a TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            user_b TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            user_low TEXT NOT NULL,
            user_high TEXT NOT NULL,
            status VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (user_a <> user_b)
        )`,

		// One record per unordered pair.
		`CREATE UNIQUE INDEX IF NOT EXISTS connections_pair_idx ON connections (user_low, user_high)`,

		`CREATE TABLE IF NOT EXISTS connection_members (
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            connection_id TEXT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
            PRIMARY KEY (user_id, connection_id)
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            seq BIGSERIAL,
            connection_id TEXT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
            sender_id TEXT NOT NULL,
            content TEXT NOT NULL,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS messages_connection_idx ON messages (connection_id, created_at, seq)`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Bound derives a context that expires after timeout. A non-positive timeout
// only adds cancellation.
func Bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
