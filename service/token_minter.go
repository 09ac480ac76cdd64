package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"task-manager-api/config"
	"task-manager-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// temporaryTokenBytes is the entropy of single-use tokens before hex encoding.
const temporaryTokenBytes = 20

var ErrMissingSigningSecret = errors.New("token signing secret is not configured")

// TokenMinter issues session tokens and single-use tokens.
type TokenMinter interface {
	GenerateAccessToken(userID, email, username string) (string, error)
	GenerateRefreshToken(userID string) (string, error)
	ParseAccessToken(token string) (*model.AccessClaims, error)
	ParseRefreshToken(token string) (*model.RefreshClaims, error)
	GenerateTemporaryToken() (model.TemporaryToken, error)
}

// JWTMinter signs HS256 tokens. Access and refresh tokens use separate
// secrets so one cannot be replayed as the other.
type JWTMinter struct {
	accessSecret    []byte
	accessTTL       time.Duration
	refreshSecret   []byte
	refreshTTL      time.Duration
	singleUseExpiry time.Duration
	now             func() time.Time
}

func NewJWTMinter(jwtCfg config.JWTConfig, tokenCfg config.TokenConfig) (*JWTMinter, error) {
	if jwtCfg.AccessSecret == "" || jwtCfg.RefreshSecret == "" {
		return nil, ErrMissingSigningSecret
	}
	return &JWTMinter{
		accessSecret:    []byte(jwtCfg.AccessSecret),
		accessTTL:       jwtCfg.AccessExpiry,
		refreshSecret:   []byte(jwtCfg.RefreshSecret),
		refreshTTL:      jwtCfg.RefreshExpiry,
		singleUseExpiry: tokenCfg.SingleUseExpiry,
		now:             time.Now,
	}, nil
}

func (m *JWTMinter) registeredClaims(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *JWTMinter) GenerateAccessToken(userID, email, username string) (string, error) {
	claims := &model.AccessClaims{
		UserID:           userID,
		Email:            email,
		Username:         username,
		RegisteredClaims: m.registeredClaims(userID, m.accessTTL),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

func (m *JWTMinter) GenerateRefreshToken(userID string) (string, error) {
	claims := &model.RefreshClaims{
		UserID:           userID,
		RegisteredClaims: m.registeredClaims(userID, m.refreshTTL),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

func (m *JWTMinter) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}

func (m *JWTMinter) ParseAccessToken(token string) (*model.AccessClaims, error) {
	claims := &model.AccessClaims{}
	if err := m.parse(token, claims, m.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTMinter) ParseRefreshToken(token string) (*model.RefreshClaims, error) {
	claims := &model.RefreshClaims{}
	if err := m.parse(token, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateTemporaryToken returns a random plaintext token, its SHA-256 digest
// and an expiry singleUseExpiry from now.
func (m *JWTMinter) GenerateTemporaryToken() (model.TemporaryToken, error) {
	raw := make([]byte, temporaryTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return model.TemporaryToken{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	unhashed := hex.EncodeToString(raw)
	return model.TemporaryToken{
		UnhashedToken: unhashed,
		HashedToken:   HashTemporaryToken(unhashed),
		Expiry:        m.now().Add(m.singleUseExpiry),
	}, nil
}

// HashTemporaryToken is the unsalted digest stored for single-use tokens.
// It must stay deterministic: lookups go by hash before the account is known.
func HashTemporaryToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
