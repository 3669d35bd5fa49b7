package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/floroz/commerce/pkg/auth"
	"github.com/floroz/commerce/pkg/events"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrPasswordMismatch   = errors.New("passwords must match")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
)

type Service struct {
	userRepo   UserRepository
	outboxRepo OutboxRepository
	txManager  TransactionManager
}

func NewService(userRepo UserRepository, outboxRepo OutboxRepository, txManager TransactionManager) *Service {
	return &Service{
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
	}
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	username := strings.TrimSpace(cmd.Username)
	email := strings.TrimSpace(cmd.Email)

	if cmd.Password != cmd.Confirmation {
		return nil, ErrPasswordMismatch
	}
	if err := validateUser(username, email, cmd.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The unique index still guards against a concurrent registration.
	if err := s.userRepo.CreateUser(ctx, tx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	event, err := events.NewOutboxEvent(events.EventTypeUserRegistered, map[string]any{
		"user_id":    user.ID.String(),
		"username":   user.Username,
		"created_at": user.CreatedAt.Format(time.RFC3339Nano),
	}, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func validateUser(username, email, password string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if email != "" && (!strings.Contains(email, "@") || len(email) < 3) {
		return errors.New("invalid email format")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	return nil
}
