package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

type Repo interface {
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	// ClaimWelcome marks the welcome bonus as granted. It returns true for exactly one caller.
	ClaimWelcome(ctx context.Context, userID string) (bool, error)
	// ReleaseWelcome undoes a claim whose grant failed.
	ReleaseWelcome(ctx context.Context, userID string) error
}
