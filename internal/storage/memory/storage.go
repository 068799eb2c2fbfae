package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
//
// Records are copied on every read and write so that callers can mutate the
// returned values without racing the store; a write is only visible after the
// next SaveItem/SaveUser.
type Storage struct {
	mu sync.RWMutex

	items         map[uuid.UUID]*models.Item
	users         map[uuid.UUID]*models.User
	usernameIndex map[string]uuid.UUID
	emailIndex    map[string]uuid.UUID
}

// New creates a new in-memory storage instance.
func New() *Storage {
	return &Storage{
		items:         make(map[uuid.UUID]*models.Item),
		users:         make(map[uuid.UUID]*models.User),
		usernameIndex: make(map[string]uuid.UUID),
		emailIndex:    make(map[string]uuid.UUID),
	}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Item operations

func (s *Storage) SaveItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Storage) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, storage.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *Storage) DeleteItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrItemNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Storage) ListItems(ctx context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		cp := *item
		items = append(items, &cp)
	}
	return items, nil
}

func (s *Storage) ListOpenItems(ctx context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*models.Item
	for _, item := range s.items {
		if item.Open() {
			cp := *item
			items = append(items, &cp)
		}
	}
	return items, nil
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	s.usernameIndex[user.Username] = user.ID
	s.emailIndex[user.Email] = user.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		cp := *user
		users = append(users, &cp)
	}
	return users, nil
}

// Close is a no-op for in-memory storage.
func (s *Storage) Close() error {
	return nil
}
