package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/commerce/pkg/events"
)

type UserRepository interface {
	// CreateUser returns ErrUsernameTaken when the username is already in use
	CreateUser(ctx context.Context, tx pgx.Tx, user *User) error
	// GetUserByID and GetUserByUsername return nil, nil when no user matches
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}
