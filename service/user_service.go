package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"task-manager-api/logger"
	"task-manager-api/mailer"
	"task-manager-api/metrics"
	"task-manager-api/model"
	"task-manager-api/repository"
	"time"

	"github.com/sirupsen/logrus"
)

// VerifyEmailPath is appended to the public base URL to build verification links.
const VerifyEmailPath = "/api/v1/users/verify-email/"

const defaultCacheTTL = 10 * time.Minute

var (
	ErrUserAlreadyExists     = errors.New("user with email or username already exists")
	ErrTokenInvalidOrExpired = errors.New("token is invalid or expired")
	ErrEmailAlreadyVerified  = errors.New("email is already verified")
	ErrInvalidCredentials    = errors.New("invalid user credentials")
	ErrUserNotFound          = errors.New("user does not exist")
	ErrInvalidRefreshToken   = errors.New("refresh token is invalid, expired or used")
	ErrIncorrectPassword     = errors.New("invalid old password")
	ErrInternal              = errors.New("internal error")
)

type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Username string
	Password string
}

type LoginResult struct {
	User         *model.UserView `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

// UserServiceDeps groups the collaborators of UserService. Cache and
// Metrics are optional.
type UserServiceDeps struct {
	Repo     repository.IUserRepository
	Hasher   PasswordHasher
	Minter   TokenMinter
	Mailer   mailer.Mailer
	Cache    ICacheClient
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// UserService runs the account lifecycle: registration, email verification,
// sessions and password recovery.
type UserService struct {
	repo     repository.IUserRepository
	hasher   PasswordHasher
	minter   TokenMinter
	mailer   mailer.Mailer
	cache    ICacheClient
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewUserService(d UserServiceDeps) *UserService {
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	m := d.Mailer
	if m == nil {
		m = mailer.NoopMailer{}
	}
	return &UserService{
		repo:     d.Repo,
		hasher:   d.Hasher,
		minter:   d.Minter,
		mailer:   m,
		cache:    d.Cache,
		cacheTTL: ttl,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

func internalError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// RegisterUser creates an unverified account and mails a verification link
// built from baseURL.
func (s *UserService) RegisterUser(ctx context.Context, in RegisterInput, baseURL string) (view *model.UserView, err error) {
	defer func() { s.metrics.ObserveAuthEvent("register", err) }()

	username := model.NormalizeUsername(in.Username)
	email := model.NormalizeEmail(in.Email)

	_, err = s.repo.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, ErrUserAlreadyExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, internalError("lookup existing user", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	user := &model.User{
		Avatar:          model.DefaultAvatar(),
		Username:        username,
		Email:           email,
		FullName:        strings.TrimSpace(in.FullName),
		PasswordHash:    hash,
		IsEmailVerified: false,
	}
	if err = s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, internalError("create user", err)
	}

	token, err := s.minter.GenerateTemporaryToken()
	if err != nil {
		return nil, internalError("mint verification token", err)
	}
	if err = s.repo.SetEmailVerificationToken(ctx, user.ID, token.HashedToken, token.Expiry); err != nil {
		return nil, internalError("store verification token", err)
	}

	s.dispatch(ctx, "email_verification", mailer.Message{
		To:      user.Email,
		Subject: mailer.EmailVerificationSubject,
		Content: mailer.EmailVerificationContent(user.Username, verificationURL(baseURL, token.UnhashedToken)),
	})

	created, err := s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, internalError("re-read created user", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":  created.ID,
		"username": created.Username,
	}).Info("User registered")

	return created.View(), nil
}

// GenerateAccessAndRefreshTokens mints a session pair and stores the refresh
// token, replacing any previous one. Every failure is reported as ErrInternal.
func (s *UserService) GenerateAccessAndRefreshTokens(ctx context.Context, userID string) (*model.TokenPair, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, internalError("load user for tokens", err)
	}
	return s.issueSessionTokens(ctx, user)
}

func (s *UserService) mintSessionTokens(user *model.User) (*model.TokenPair, error) {
	access, err := s.minter.GenerateAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, internalError("mint access token", err)
	}
	refresh, err := s.minter.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, internalError("mint refresh token", err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issueSessionTokens mints a pair and stores its refresh token. Only the
// refresh token is written back.
func (s *UserService) issueSessionTokens(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	pair, err := s.mintSessionTokens(user)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, internalError("store refresh token", err)
	}
	user.RefreshToken = pair.RefreshToken
	s.invalidate(ctx, user.ID)
	return pair, nil
}

// VerifyEmail consumes a verification token. The store clears the hash in the
// same write that marks the account verified, so only one call can succeed.
func (s *UserService) VerifyEmail(ctx context.Context, plaintext string) (view *model.UserView, err error) {
	defer func() { s.metrics.ObserveAuthEvent("verify_email", err) }()

	user, err := s.repo.ConsumeEmailVerificationToken(ctx, HashTemporaryToken(plaintext), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalidOrExpired
		}
		return nil, internalError("consume verification token", err)
	}
	s.invalidate(ctx, user.ID)

	logger.Log.WithField("user_id", user.ID).Info("Email verified")
	return user.View(), nil
}

// LoginUser checks credentials and opens a session. Unknown accounts and
// wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) LoginUser(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	defer func() { s.metrics.ObserveAuthEvent("login", err) }()

	user, err := s.repo.FindByUsernameOrEmail(ctx, model.NormalizeUsername(in.Username), model.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internalError("lookup user for login", err)
	}
	if !s.hasher.Check(in.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueSessionTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	return &LoginResult{
		User:         user.View(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// LogoutUser drops the stored refresh token so it can no longer be exchanged.
func (s *UserService) LogoutUser(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.ObserveAuthEvent("logout", err) }()

	if err = s.repo.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return internalError("clear refresh token", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// RefreshAccessToken exchanges the current refresh token for a new pair.
// The presented token must match the stored one, so a rotated token is dead.
// The swap is conditional on the presented token, so two concurrent refreshes
// with the same token cannot both win.
func (s *UserService) RefreshAccessToken(ctx context.Context, refreshToken string) (pair *model.TokenPair, err error) {
	defer func() { s.metrics.ObserveAuthEvent("refresh", err) }()

	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.minter.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, internalError("load user for refresh", err)
	}
	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, ErrInvalidRefreshToken
	}

	pair, err = s.mintSessionTokens(user)
	if err != nil {
		return nil, err
	}
	if err = s.repo.ReplaceRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, internalError("rotate refresh token", err)
	}
	s.invalidate(ctx, user.ID)
	return pair, nil
}

// ResendEmailVerification replaces the pending verification token and mails
// a new link.
func (s *UserService) ResendEmailVerification(ctx context.Context, userID, baseURL string) (err error) {
	defer func() { s.metrics.ObserveAuthEvent("resend_verification", err) }()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	token, err := s.minter.GenerateTemporaryToken()
	if err != nil {
		return internalError("mint verification token", err)
	}
	if err = s.repo.SetEmailVerificationToken(ctx, user.ID, token.HashedToken, token.Expiry); err != nil {
		return internalError("store verification token", err)
	}
	s.invalidate(ctx, user.ID)

	s.dispatch(ctx, "email_verification", mailer.Message{
		To:      user.Email,
		Subject: mailer.EmailVerificationSubject,
		Content: mailer.EmailVerificationContent(user.Username, verificationURL(baseURL, token.UnhashedToken)),
	})
	return nil
}

// ForgotPasswordRequest mails a reset link to email. Unknown addresses
// succeed silently so the endpoint does not reveal which emails exist.
func (s *UserService) ForgotPasswordRequest(ctx context.Context, email, resetBaseURL string) (err error) {
	defer func() { s.metrics.ObserveAuthEvent("forgot_password", err) }()

	user, err := s.repo.FindByUsernameOrEmail(ctx, "", model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Log.Debug("Password reset requested for unknown email")
			return nil
		}
		return internalError("lookup user for reset", err)
	}

	token, err := s.minter.GenerateTemporaryToken()
	if err != nil {
		return internalError("mint reset token", err)
	}
	if err = s.repo.SetForgotPasswordToken(ctx, user.ID, token.HashedToken, token.Expiry); err != nil {
		return internalError("store reset token", err)
	}
	s.invalidate(ctx, user.ID)

	s.dispatch(ctx, "forgot_password", mailer.Message{
		To:      user.Email,
		Subject: mailer.ForgotPasswordSubject,
		Content: mailer.ForgotPasswordContent(user.Username, strings.TrimRight(resetBaseURL, "/")+"/"+token.UnhashedToken),
	})
	return nil
}

// ResetForgotPassword consumes a reset token and sets a new password. The
// stored refresh token is dropped, ending any open session. The lookup only
// rejects bad tokens before hashing. The conditional consume picks the winner.
func (s *UserService) ResetForgotPassword(ctx context.Context, plaintext, newPassword string) (err error) {
	defer func() { s.metrics.ObserveAuthEvent("reset_password", err) }()

	tokenHash := HashTemporaryToken(plaintext)
	user, err := s.repo.FindByForgotPasswordToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalidOrExpired
		}
		return internalError("lookup reset token", err)
	}
	if s.expired(user.ForgotPasswordExpiry) {
		return ErrTokenInvalidOrExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("hash password", err)
	}
	user, err = s.repo.ConsumeForgotPasswordToken(ctx, tokenHash, s.now(), hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalidOrExpired
		}
		return internalError("consume reset token", err)
	}
	s.invalidate(ctx, user.ID)

	logger.Log.WithField("user_id", user.ID).Info("Password reset")
	return nil
}

func (s *UserService) ChangeCurrentPassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { s.metrics.ObserveAuthEvent("change_password", err) }()

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Check(oldPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("hash password", err)
	}
	// A concurrent reset or change since the check above makes the old
	// password stale.
	if err = s.repo.ReplacePasswordHash(ctx, user.ID, user.PasswordHash, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIncorrectPassword
		}
		return internalError("save new password", err)
	}
	s.invalidate(ctx, user.ID)
	return nil
}

// GetCurrentUser returns the sanitized view of userID, using a cache-aside strategy.
func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*model.UserView, error) {
	key := currentUserCacheKey(userID)

	// 1. Try the cache.
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var view model.UserView
			if err := json.Unmarshal([]byte(cached), &view); err == nil {
				return &view, nil
			}
		}
	}

	// 2. Cache miss. Load from the store.
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := user.View()

	// 3. Populate the cache for later requests. A write that invalidates
	// between the load and this Set leaves a stale view for at most cacheTTL.
	if s.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				logger.Log.WithError(err).WithField("user_id", userID).Warn("Failed to cache current user")
			}
		}
	}
	return view, nil
}

func (s *UserService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("load user", err)
	}
	return user, nil
}

// expired treats a missing expiry as expired.
func (s *UserService) expired(expiry *time.Time) bool {
	return expiry == nil || !s.now().Before(*expiry)
}

func (s *UserService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, currentUserCacheKey(userID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate user cache")
	}
}

// dispatch sends msg after the account change is saved. Failures are logged
// and counted, never returned.
func (s *UserService) dispatch(ctx context.Context, kind string, msg mailer.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.MailFailed(kind)
		logger.Log.WithFields(logrus.Fields{
			"kind":  kind,
			"error": err.Error(),
		}).Error("Failed to send account email")
	}
}

func verificationURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + VerifyEmailPath + token
}
