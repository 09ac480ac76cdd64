package model

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are carried by short-lived access tokens.
type AccessClaims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshClaims carry the account id only.
type RefreshClaims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}
