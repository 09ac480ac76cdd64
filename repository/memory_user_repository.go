package repository

import (
	"context"
	"sync"
	"task-manager-api/model"
	"time"

	"github.com/google/uuid"
)

// InMemoryUserRepository keeps users in process memory. The username and
// email indexes play the part of the unique constraints of a real store.
type InMemoryUserRepository struct {
	mu         sync.RWMutex
	users      map[string]*model.User
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:      make(map[string]*model.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *InMemoryUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	username = model.NormalizeUsername(username)
	email = model.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byUsername[username]; ok && username != "" {
		return r.users[id].Clone(), nil
	}
	if id, ok := r.byEmail[email]; ok && email != "" {
		return r.users[id].Clone(), nil
	}
	return nil, ErrNotFound
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	user.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return ErrDuplicate
	}
	if _, taken := r.byEmail[user.Email]; taken {
		return ErrDuplicate
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = user.Clone()
	r.byUsername[user.Username] = user.ID
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *InMemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (r *InMemoryUserRepository) FindByEmailVerificationToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.findFirst(func(u *model.User) bool {
		return tokenHash != "" && u.EmailVerificationToken == tokenHash
	})
}

func (r *InMemoryUserRepository) FindByForgotPasswordToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.findFirst(func(u *model.User) bool {
		return tokenHash != "" && u.ForgotPasswordToken == tokenHash
	})
}

func (r *InMemoryUserRepository) findFirst(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// update applies fn to the stored record of id under the write lock. fn
// reports whether its conditions held; a false result leaves UpdatedAt alone.
func (r *InMemoryUserRepository) update(id string, fn func(u *model.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || !fn(u) {
		return ErrNotFound
	}
	u.UpdatedAt = r.now().UTC()
	return nil
}

// consume applies fn to the first record matching under the write lock and
// returns a copy of the result.
func (r *InMemoryUserRepository) consume(match func(*model.User) bool, fn func(u *model.User)) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if match(u) {
			fn(u)
			u.UpdatedAt = r.now().UTC()
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryUserRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return r.update(id, func(u *model.User) bool {
		u.SetEmailVerificationToken(tokenHash, expiry)
		return true
	})
}

func (r *InMemoryUserRepository) SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return r.update(id, func(u *model.User) bool {
		u.SetForgotPasswordToken(tokenHash, expiry)
		return true
	})
}

func (r *InMemoryUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.update(id, func(u *model.User) bool {
		u.RefreshToken = token
		return true
	})
}

func (r *InMemoryUserRepository) ReplaceRefreshToken(ctx context.Context, id, current, next string) error {
	return r.update(id, func(u *model.User) bool {
		if current == "" || u.RefreshToken != current {
			return false
		}
		u.RefreshToken = next
		return true
	})
}

func (r *InMemoryUserRepository) ReplacePasswordHash(ctx context.Context, id, current, next string) error {
	return r.update(id, func(u *model.User) bool {
		if u.PasswordHash != current {
			return false
		}
		u.PasswordHash = next
		return true
	})
}

func (r *InMemoryUserRepository) ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.consume(func(u *model.User) bool {
		return tokenHash != "" && u.EmailVerificationToken == tokenHash &&
			u.EmailVerificationExpiry != nil && u.EmailVerificationExpiry.After(now)
	}, func(u *model.User) {
		u.IsEmailVerified = true
		u.ClearEmailVerificationToken()
	})
}

func (r *InMemoryUserRepository) ConsumeForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error) {
	return r.consume(func(u *model.User) bool {
		return tokenHash != "" && u.ForgotPasswordToken == tokenHash &&
			u.ForgotPasswordExpiry != nil && u.ForgotPasswordExpiry.After(now)
	}, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.RefreshToken = ""
		u.ClearForgotPasswordToken()
	})
}
