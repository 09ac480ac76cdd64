// file: model/request.go

package model

import "strings"

// RegisterRequest defines the payload for creating a new user.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,lowercase,min=3"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName,omitempty" validate:"omitempty"`
}

func (r *RegisterRequest) Trim() {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
}

// LoginRequest accepts either an email or a username.
type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"required_without=Username,omitempty,email"`
	Username string `json:"username,omitempty" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Trim() {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ForgotPasswordRequest) Trim() {
	r.Email = strings.TrimSpace(r.Email)
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}
