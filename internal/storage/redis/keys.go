package redis

import (
	"fmt"

	"github.com/google/uuid"
)

// Key prefix for all auction data
const keyPrefix = "gavel"

func itemKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:item:%s", keyPrefix, id)
}

// itemsIndexKey returns the Redis key for the SET of all item IDs
func itemsIndexKey() string {
	return fmt.Sprintf("%s:idx:items", keyPrefix)
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> user_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}
