// file: model/token.go

package model

import "time"

// TemporaryToken is a single-use token pair. Only HashedToken is persisted;
// UnhashedToken is mailed to the user and then dropped.
type TemporaryToken struct {
	UnhashedToken string
	HashedToken   string
	Expiry        time.Time
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
