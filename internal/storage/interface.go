package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/gavelhouse/gavel/internal/models"
)

// Store-level sentinel errors.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrUserNotFound = errors.New("user not found")
)

// Store defines the persistence boundary for items and users.
//
// SaveItem is a full-record replace with last-writer-wins semantics; a
// GetItem after SaveItem by the same caller observes the write. Serialization
// of concurrent writers for the same item is the caller's responsibility.
type Store interface {
	// Item operations
	SaveItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context) ([]*models.Item, error)
	ListOpenItems(ctx context.Context) ([]*models.Item, error)

	// User operations
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	Close() error
}
