package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

type RedisStorageSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *Storage
	ctx   context.Context
}

func (s *RedisStorageSuite) SetupTest() {
	mini, err := miniredis.Run()
	s.Require().NoError(err)
	s.mini = mini

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	s.store = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *RedisStorageSuite) TearDownTest() {
	s.store.Close()
	s.mini.Close()
}

func (s *RedisStorageSuite) testItem(remaining int) *models.Item {
	return &models.Item{
		ID:            uuid.New(),
		Description:   "vintage clock",
		CurrentBid:    decimal.RequireFromString("10.00"),
		BuyNowPrice:   decimal.RequireFromString("100.00"),
		RemainingTime: remaining,
		Owner:         "alice",
	}
}

func (s *RedisStorageSuite) testUser(username string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hashed",
	}
}

func (s *RedisStorageSuite) TestItemRoundTrip() {
	item := s.testItem(60)
	s.Require().NoError(s.store.SaveItem(s.ctx, item))

	got, err := s.store.GetItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.ID, got.ID)
	s.True(got.CurrentBid.Equal(item.CurrentBid))
	s.Equal(60, got.RemainingTime)
}

func (s *RedisStorageSuite) TestGetItemNotFound() {
	_, err := s.store.GetItem(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrItemNotFound)
}

func (s *RedisStorageSuite) TestSaveItemOverwrites() {
	item := s.testItem(60)
	s.Require().NoError(s.store.SaveItem(s.ctx, item))

	item.CurrentBid = decimal.RequireFromString("25.00")
	item.WinningUser = "bob"
	s.Require().NoError(s.store.SaveItem(s.ctx, item))

	got, err := s.store.GetItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.True(got.CurrentBid.Equal(decimal.RequireFromString("25.00")))
	s.Equal("bob", got.WinningUser)
}

func (s *RedisStorageSuite) TestDeleteItem() {
	item := s.testItem(60)
	s.Require().NoError(s.store.SaveItem(s.ctx, item))
	s.Require().NoError(s.store.DeleteItem(s.ctx, item.ID))

	_, err := s.store.GetItem(s.ctx, item.ID)
	s.ErrorIs(err, storage.ErrItemNotFound)

	s.ErrorIs(s.store.DeleteItem(s.ctx, item.ID), storage.ErrItemNotFound)
}

func (s *RedisStorageSuite) TestListOpenItems() {
	open := s.testItem(60)
	expired := s.testItem(0)
	sold := s.testItem(30)
	sold.Sold = true

	s.Require().NoError(s.store.SaveItem(s.ctx, open))
	s.Require().NoError(s.store.SaveItem(s.ctx, expired))
	s.Require().NoError(s.store.SaveItem(s.ctx, sold))

	all, err := s.store.ListItems(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	openItems, err := s.store.ListOpenItems(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(openItems, 1)
	s.Equal(open.ID, openItems[0].ID)
}

func (s *RedisStorageSuite) TestUserRoundTrip() {
	user := s.testUser("alice")
	s.Require().NoError(s.store.SaveUser(s.ctx, user))

	byID, err := s.store.GetUser(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)
	s.Equal("hashed", byID.PasswordHash, "hash survives storage despite being JSON-hidden")

	byUsername, err := s.store.GetUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.ID, byUsername.ID)

	byEmail, err := s.store.GetUserByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)
}

func (s *RedisStorageSuite) TestUserNotFound() {
	_, err := s.store.GetUser(s.ctx, uuid.New())
	s.ErrorIs(err, storage.ErrUserNotFound)

	_, err = s.store.GetUserByUsername(s.ctx, "nobody")
	s.ErrorIs(err, storage.ErrUserNotFound)

	_, err = s.store.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, storage.ErrUserNotFound)
}

func (s *RedisStorageSuite) TestListUsers() {
	s.Require().NoError(s.store.SaveUser(s.ctx, s.testUser("alice")))
	s.Require().NoError(s.store.SaveUser(s.ctx, s.testUser("bob")))

	users, err := s.store.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 2)
}

func TestRedisStorageSuite(t *testing.T) {
	suite.Run(t, new(RedisStorageSuite))
}
