package repository

import (
	"context"
	"errors"
	"task-manager-api/model"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record violates a unique constraint")
)

// IUserRepository defines the contract for user persistence. Implementations
// normalize username and email before every lookup and write, and never hash
// passwords: PasswordHash is stored as given.
//
// Writes after Create touch only the fields they name, so concurrent flows on
// the same account never overwrite each other's changes. Every write bumps
// UpdatedAt and returns ErrNotFound when no record matched its conditions.
type IUserRepository interface {
	// FindByUsernameOrEmail returns the first user matching either field.
	// An empty argument never matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	// Create inserts user and fills in ID, CreatedAt and UpdatedAt.
	// Returns ErrDuplicate when username or email is taken.
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmailVerificationToken(ctx context.Context, tokenHash string) (*model.User, error)
	FindByForgotPasswordToken(ctx context.Context, tokenHash string) (*model.User, error)

	SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiry time.Time) error
	SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiry time.Time) error
	// SetRefreshToken stores token as the current session. An empty token
	// clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// ReplaceRefreshToken stores next only while current is still the stored
	// token.
	ReplaceRefreshToken(ctx context.Context, id, current, next string) error
	// ReplacePasswordHash stores next only while current is still the stored
	// hash.
	ReplacePasswordHash(ctx context.Context, id, current, next string) error

	// ConsumeEmailVerificationToken marks the owner of tokenHash verified and
	// clears the token, provided it expires after now. Only one caller can
	// consume a given token.
	ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	// ConsumeForgotPasswordToken stores passwordHash for the owner of
	// tokenHash, clears the token and the refresh token, provided the token
	// expires after now. Only one caller can consume a given token.
	ConsumeForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error)
}
