package users

import (
	"time"

	"github.com/google/uuid"
)

// MaxUsernameLength matches the users.username column
const MaxUsernameLength = 150

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never return in JSON
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type RegisterCommand struct {
	Username     string
	Email        string
	Password     string
	Confirmation string
}
