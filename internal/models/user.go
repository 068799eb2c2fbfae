package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered participant.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Online       bool      `json:"online"`
	CreatedAt    time.Time `json:"created_at"`
}
