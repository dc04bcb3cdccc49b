package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pairchat/internal/apperr"
	"pairchat/internal/db"
)

var (
	ErrNotFound    = apperr.New(apperr.NotFound, "User not found")
	ErrEmailExists = apperr.New(apperr.Conflict, "User already exists")
)

type Repository interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}

const (
	insertUserQuery  = `INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4) RETURNING created_at`
	userByEmailQuery = `SELECT id, name, email, password, created_at FROM users WHERE email = $1`
	userByIDQuery    = `SELECT id, name, email, password, created_at FROM users WHERE id = $1`
)

type PostgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresRepository(conn *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: conn, timeout: timeout}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u *User) (*User, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, insertUserQuery, u.ID, u.Name, u.Email, u.Password).Scan(&u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, userByEmailQuery, email)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, userByIDQuery, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (*User, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	u := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := r.byEmail[key]; ok {
		return nil, ErrEmailExists
	}
	u.CreatedAt = time.Now().UTC()
	stored := *u
	r.byID[u.ID] = &stored
	r.byEmail[key] = u.ID
	return u, nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}
