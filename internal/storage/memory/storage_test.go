package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gavelhouse/gavel/internal/models"
	"github.com/gavelhouse/gavel/internal/storage"
)

func testItem(remaining int) *models.Item {
	return &models.Item{
		ID:            uuid.New(),
		Description:   "vintage clock",
		CurrentBid:    decimal.RequireFromString("10.00"),
		BuyNowPrice:   decimal.RequireFromString("100.00"),
		RemainingTime: remaining,
		Owner:         "alice",
	}
}

func testUser(username string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hashed",
	}
}

func TestItemRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := testItem(60)
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.True(t, got.CurrentBid.Equal(item.CurrentBid))
}

func TestGetItemNotFound(t *testing.T) {
	s := New()
	_, err := s.GetItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func TestSaveItemOverwrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := testItem(60)
	require.NoError(t, s.SaveItem(ctx, item))

	item.CurrentBid = decimal.RequireFromString("25.00")
	item.WinningUser = "bob"
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentBid.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, "bob", got.WinningUser)
}

func TestReturnedItemIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := testItem(60)
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	got.RemainingTime = 0

	again, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, again.RemainingTime, "mutating a read result must not change the store")
}

func TestDeleteItem(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := testItem(60)
	require.NoError(t, s.SaveItem(ctx, item))
	require.NoError(t, s.DeleteItem(ctx, item.ID))

	_, err := s.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)

	assert.ErrorIs(t, s.DeleteItem(ctx, item.ID), storage.ErrItemNotFound)
}

func TestListOpenItems(t *testing.T) {
	s := New()
	ctx := context.Background()

	open := testItem(60)
	expired := testItem(0)
	sold := testItem(30)
	sold.Sold = true

	require.NoError(t, s.SaveItem(ctx, open))
	require.NoError(t, s.SaveItem(ctx, expired))
	require.NoError(t, s.SaveItem(ctx, sold))

	all, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	openItems, err := s.ListOpenItems(ctx)
	require.NoError(t, err)
	require.Len(t, openItems, 1)
	assert.Equal(t, open.ID, openItems[0].ID)
}

func TestUserRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	user := testUser("alice")
	require.NoError(t, s.SaveUser(ctx, user))

	byID, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "hashed", byID.PasswordHash)

	byUsername, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestUserNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, testUser("alice")))
	require.NoError(t, s.SaveUser(ctx, testUser("bob")))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
