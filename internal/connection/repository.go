package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/db"

	"github.com/google/uuid"
)

// Repository is the durable connection store. Implementations enforce
// one record per unordered pair themselves; callers never check first.
type Repository interface {
	Create(ctx context.Context, userA, userB string, status Status) (*Connection, error)
	Upsert(ctx context.Context, userA, userB string, status Status) (*Connection, bool, error)
	Get(ctx context.Context, id string) (*Connection, error)
	ListFor(ctx context.Context, userID string) ([]Connection, error)
	// UpdateStatus sets the status to `to` only while it is still `from`.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Connection, error)
	Delete(ctx context.Context, id string) error
}

const (
	connectionColumns = `id, user_a, user_b, status, created_at, updated_at`

	insertConnectionQuery = `INSERT INTO connections (id, user_a, user_b, user_low, user_high, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_low, user_high) DO NOTHING
		RETURNING ` + connectionColumns

	upsertConnectionQuery = `INSERT INTO connections (id, user_a, user_b, user_low, user_high, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_low, user_high) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
		RETURNING ` + connectionColumns + `, (xmax = 0) AS inserted`

	insertMembersQuery = `INSERT INTO connection_members (user_id, connection_id)
		VALUES ($1, $3), ($2, $3)
		ON CONFLICT DO NOTHING`

	connectionByIDQuery = `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	connectionsForUserQuery = `SELECT c.id, c.user_a, c.user_b, c.status, c.created_at, c.updated_at
		FROM connections c
		JOIN connection_members m ON m.connection_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at ASC`

	updateStatusQuery = `UPDATE connections SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + connectionColumns

	connectionExistsQuery = `SELECT 1 FROM connections WHERE id = $1`

	// Membership rows go with the connection through ON DELETE CASCADE, in
	// the same statement.
	deleteConnectionQuery = `DELETE FROM connections WHERE id = $1`
)

type PostgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresRepository(conn *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: conn, timeout: timeout}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner, extra ...any) (*Connection, error) {
	c := &Connection{}
	dest := append([]any{&c.ID, &c.UserA, &c.UserB, &c.Status, &c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userA, userB string, status Status) (*Connection, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create connection: %w", err)
	}
	defer tx.Rollback()

	low, high := pairKey(userA, userB)
	c, err := scanConnection(tx.QueryRowContext(ctx, insertConnectionQuery, uuid.NewString(), userA, userB, low, high, string(status)))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrAlreadyExists
		case db.IsUniqueViolation(err):
			return nil, ErrAlreadyExists
		case db.IsForeignKeyViolation(err):
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("insert connection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertMembersQuery, c.UserA, c.UserB, c.ID); err != nil {
		return nil, fmt.Errorf("insert connection members: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create connection: %w", err)
	}
	return c, nil
}

// Upsert inserts the pair or, if it already exists in either order, moves it
// to status. The bool reports whether a new record was created.
func (r *PostgresRepository) Upsert(ctx context.Context, userA, userB string, status Status) (*Connection, bool, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin upsert connection: %w", err)
	}
	defer tx.Rollback()

	var inserted bool
	low, high := pairKey(userA, userB)
	c, err := scanConnection(tx.QueryRowContext(ctx, upsertConnectionQuery, uuid.NewString(), userA, userB, low, high, string(status)), &inserted)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, false, ErrUnknownUser
		}
		return nil, false, fmt.Errorf("upsert connection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertMembersQuery, c.UserA, c.UserB, c.ID); err != nil {
		return nil, false, fmt.Errorf("insert connection members: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit upsert connection: %w", err)
	}
	return c, inserted, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Connection, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	c, err := scanConnection(r.db.QueryRowContext(ctx, connectionByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select connection: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListFor(ctx context.Context, userID string) ([]Connection, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, connectionsForUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	connections := []Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, *c)
	}
	return connections, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to Status) (*Connection, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	c, err := scanConnection(r.db.QueryRowContext(ctx, updateStatusQuery, id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missOrChanged(ctx, id)
		}
		return nil, fmt.Errorf("update connection status: %w", err)
	}
	return c, nil
}

// missOrChanged explains an UPDATE that matched no row.
func (r *PostgresRepository) missOrChanged(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, connectionExistsQuery, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("update connection status: %w", err)
	}
	return ErrStatusChanged
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, deleteConnectionQuery, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
