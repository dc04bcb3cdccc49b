package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/db"

	"github.com/google/uuid"
)

// Repository is the connection-scoped message log.
type Repository interface {
	Append(ctx context.Context, connectionID, senderID, content string) (*Message, error)
	ListFor(ctx context.Context, connectionID string) ([]Message, error)
	MarkRead(ctx context.Context, connectionID, readerID string) (int64, error)
	Get(ctx context.Context, id string) (*Message, error)
	Delete(ctx context.Context, id string) error
}

const (
	messageColumns = `id, connection_id, sender_id, content, read, created_at`

	// The connection_id foreign key rejects messages for unknown connections.
	insertMessageQuery = `INSERT INTO messages (id, connection_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageColumns

	messagesForConnectionQuery = `SELECT ` + messageColumns + ` FROM messages
		WHERE connection_id = $1
		ORDER BY created_at ASC, seq ASC`

	markReadQuery = `UPDATE messages SET read = TRUE
		WHERE connection_id = $1 AND sender_id <> $2 AND read = FALSE`

	messageByIDQuery = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	deleteMessageQuery = `DELETE FROM messages WHERE id = $1`
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

func scanMessage(row rowScanner) (*Message, error) {
	m := &Message{}
	if err := row.Scan(&m.ID, &m.ConnectionID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) Append(ctx context.Context, connectionID, senderID, content string) (*Message, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	m, err := scanMessage(r.db.QueryRowContext(ctx, insertMessageQuery, uuid.NewString(), connectionID, senderID, content))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListFor(ctx context.Context, connectionID string) ([]Message, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, messagesForConnectionQuery, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, connectionID, readerID string) (int64, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, markReadQuery, connectionID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Message, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	m, err := scanMessage(r.db.QueryRowContext(ctx, messageByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select message: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, deleteMessageQuery, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
