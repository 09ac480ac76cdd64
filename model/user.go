package model

import (
	"strings"
	"time"
)

const DefaultAvatarURL = "https://placehold.co/600x400"

type Avatar struct {
	URL       string `json:"url" bson:"url"`
	LocalPath string `json:"localPath" bson:"localPath"`
}

func DefaultAvatar() Avatar {
	return Avatar{URL: DefaultAvatarURL, LocalPath: ""}
}

// User is the stored account record. Secret fields never leave the
// service layer; use View for anything sent to a client.
type User struct {
	ID              string    `json:"_id"`
	Avatar          Avatar    `json:"avatar"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName,omitempty"`
	PasswordHash    string    `json:"-"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	RefreshToken    string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Token hash and expiry are set and cleared together.
	EmailVerificationToken  string     `json:"-"`
	EmailVerificationExpiry *time.Time `json:"-"`
	ForgotPasswordToken     string     `json:"-"`
	ForgotPasswordExpiry    *time.Time `json:"-"`
}

// UserView is the sanitized representation of a User.
type UserView struct {
	ID              string    `json:"_id"`
	Avatar          Avatar    `json:"avatar"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName,omitempty"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (u *User) View() *UserView {
	return &UserView{
		ID:              u.ID,
		Avatar:          u.Avatar,
		Username:        u.Username,
		Email:           u.Email,
		FullName:        u.FullName,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// Clone returns a deep copy, so stores can hand out records without aliasing.
func (u *User) Clone() *User {
	c := *u
	if u.EmailVerificationExpiry != nil {
		t := *u.EmailVerificationExpiry
		c.EmailVerificationExpiry = &t
	}
	if u.ForgotPasswordExpiry != nil {
		t := *u.ForgotPasswordExpiry
		c.ForgotPasswordExpiry = &t
	}
	return &c
}

func (u *User) SetEmailVerificationToken(hash string, expiry time.Time) {
	u.EmailVerificationToken = hash
	u.EmailVerificationExpiry = &expiry
}

func (u *User) ClearEmailVerificationToken() {
	u.EmailVerificationToken = ""
	u.EmailVerificationExpiry = nil
}

func (u *User) SetForgotPasswordToken(hash string, expiry time.Time) {
	u.ForgotPasswordToken = hash
	u.ForgotPasswordExpiry = &expiry
}

func (u *User) ClearForgotPasswordToken() {
	u.ForgotPasswordToken = ""
	u.ForgotPasswordExpiry = nil
}

// Normalize applies the identity normalization every store relies on.
func (u *User) Normalize() {
	u.Username = NormalizeUsername(u.Username)
	u.Email = NormalizeEmail(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
