package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// Item operations

func (s *Storage) SaveItem(ctx context.Context, item *models.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	// Pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, itemKey(item.ID), data, 0)
	pipe.SAdd(ctx, itemsIndexKey(), item.ID.String())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	data, err := s.client.Get(ctx, itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrItemNotFound
		}
		return nil, err
	}

	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Storage) DeleteItem(ctx context.Context, id uuid.UUID) error {
	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, itemKey(id))
	pipe.SRem(ctx, itemsIndexKey(), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return storage.ErrItemNotFound
	}
	return nil
}

func (s *Storage) ListItems(ctx context.Context) ([]*models.Item, error) {
	ids, err := s.client.SMembers(ctx, itemsIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*models.Item, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		item, err := s.GetItem(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrItemNotFound) {
				// Index entry outlived the record; skip it.
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Storage) ListOpenItems(ctx context.Context) ([]*models.Item, error) {
	all, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	var items []*models.Item
	for _, item := range all {
		if item.Open() {
			items = append(items, item)
		}
	}
	return items, nil
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(userRecord{User: user, PasswordHash: user.PasswordHash})
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.SAdd(ctx, usersIndexKey(), user.ID.String())
	pipe.Set(ctx, usernameIndexKey(user.Username), user.ID.String(), 0)
	pipe.Set(ctx, emailIndexKey(user.Email), user.ID.String(), 0)
	_, err = pipe.Exec(ctx)
	return err
}

// userRecord carries the password hash alongside the user, since
// models.User deliberately excludes it from JSON.
type userRecord struct {
	User         *models.User `json:"user"`
	PasswordHash string       `json:"password_hash"`
}

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	user := rec.User
	user.PasswordHash = rec.PasswordHash
	return user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserByIndex(ctx, usernameIndexKey(username))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserByIndex(ctx, emailIndexKey(email))
}

func (s *Storage) getUserByIndex(ctx context.Context, indexKey string) (*models.User, error) {
	idStr, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, storage.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	ids, err := s.client.SMembers(ctx, usersIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		user, err := s.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
