package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Storage is a Postgres-backed implementation of the storage interface.
type Storage struct {
	db *sql.DB
}

// New opens a Postgres connection and verifies it with a ping.
func New(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Storage{db: db}, nil
}

// NewWithDB wraps an existing connection (for testing).
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Migrate creates the tables if they do not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	online        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
	id             UUID PRIMARY KEY,
	description    TEXT NOT NULL,
	current_bid    NUMERIC(12,2) NOT NULL,
	buy_now_price  NUMERIC(12,2) NOT NULL,
	remaining_time INTEGER NOT NULL,
	winning_user   TEXT NOT NULL DEFAULT '',
	owner          TEXT NOT NULL,
	sold           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Item operations

func (s *Storage) SaveItem(ctx context.Context, item *models.Item) error {
	const query = `
		INSERT INTO items (id, description, current_bid, buy_now_price, remaining_time, winning_user, owner, sold, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			description    = EXCLUDED.description,
			current_bid    = EXCLUDED.current_bid,
			buy_now_price  = EXCLUDED.buy_now_price,
			remaining_time = EXCLUDED.remaining_time,
			winning_user   = EXCLUDED.winning_user,
			owner          = EXCLUDED.owner,
			sold           = EXCLUDED.sold`
	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Description, item.CurrentBid, item.BuyNowPrice,
		item.RemainingTime, item.WinningUser, item.Owner, item.Sold, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

func (s *Storage) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	const query = `
		SELECT id, description, current_bid, buy_now_price, remaining_time, winning_user, owner, sold, created_at
		FROM items WHERE id = $1`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (s *Storage) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrItemNotFound
	}
	return nil
}

func (s *Storage) ListItems(ctx context.Context) ([]*models.Item, error) {
	const query = `
		SELECT id, description, current_bid, buy_now_price, remaining_time, winning_user, owner, sold, created_at
		FROM items ORDER BY created_at`
	return s.queryItems(ctx, query)
}

func (s *Storage) ListOpenItems(ctx context.Context) ([]*models.Item, error) {
	const query = `
		SELECT id, description, current_bid, buy_now_price, remaining_time, winning_user, owner, sold, created_at
		FROM items WHERE sold = FALSE AND remaining_time > 0 ORDER BY created_at`
	return s.queryItems(ctx, query)
}

func (s *Storage) queryItems(ctx context.Context, query string) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	err := row.Scan(&item.ID, &item.Description, &item.CurrentBid, &item.BuyNowPrice,
		&item.RemainingTime, &item.WinningUser, &item.Owner, &item.Sold, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (id, name, email, username, password_hash, online, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name          = EXCLUDED.name,
			email         = EXCLUDED.email,
			username      = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			online        = EXCLUDED.online`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Username, user.PasswordHash, user.Online, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, username, password_hash, online, created_at FROM users WHERE id = $1`, id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, username, password_hash, online, created_at FROM users WHERE username = $1`, username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, username, password_hash, online, created_at FROM users WHERE email = $1`, email)
}

func (s *Storage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.Username, &user.PasswordHash, &user.Online, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const query = `SELECT id, name, email, username, password_hash, online, created_at FROM users ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Username,
			&user.PasswordHash, &user.Online, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
