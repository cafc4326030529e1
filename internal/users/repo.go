package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrDuplicate    = errors.New("username or email already taken")
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords
	// so login failures never reveal which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repo defines persistence operations for users.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
}
