package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"task-manager-api/common"
	"task-manager-api/logger"
	"task-manager-api/model"
	"task-manager-api/service"

	"github.com/sirupsen/logrus"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"

	resetPasswordPath = "/api/v1/users/reset-password"
)

type UserHandler struct {
	service   *service.UserService
	publicURL string
	resetURL  string
}

// NewUserHandler creates a UserHandler. publicURL and resetURL are optional;
// when empty, emailed links are built from the incoming request.
func NewUserHandler(svc *service.UserService, publicURL, resetURL string) *UserHandler {
	return &UserHandler{
		service:   svc,
		publicURL: strings.TrimRight(publicURL, "/"),
		resetURL:  strings.TrimRight(resetURL, "/"),
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an unverified account and emails a verification link
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        user  body      model.RegisterRequest  true  "User registration info"
// @Success      201   {object}  common.ApiResponse
// @Failure      409   {object}  common.AppError
// @Failure      422   {object}  common.AppError
// @Router       /api/v1/users/register [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"username": req.Username,
	}).Info("Register request received")

	view, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	}, h.baseURL(r))
	if err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusCreated, map[string]interface{}{"user": view},
		"Users registered successfully and verification email has been sent on your email.").Send(w)
	return nil
}

// Login godoc
// @Summary      Log in
// @Description  Authenticates with username or email and returns an access/refresh token pair
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "Login credentials"
// @Success      200          {object}  common.ApiResponse
// @Failure      401          {object}  common.AppError
// @Failure      422          {object}  common.AppError
// @Router       /api/v1/users/login [post]
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"username": req.Username,
		"by_email": req.Email != "",
	}).Info("Login request received")

	result, err := h.service.LoginUser(r.Context(), service.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return mapServiceError(err)
	}

	setSessionCookies(w, result.AccessToken, result.RefreshToken)
	common.NewApiResponse(http.StatusOK, result, "User logged in successfully").Send(w)
	return nil
}

// VerifyEmail godoc
// @Summary      Verify email
// @Description  Consumes the single-use token sent by email
// @Tags         users
// @Produce      json
// @Param        verificationToken  path      string  true  "Verification token"
// @Success      200                {object}  common.ApiResponse
// @Failure      400                {object}  common.AppError
// @Router       /api/v1/users/verify-email/{verificationToken} [get]
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) *common.AppError {
	token := r.PathValue("verificationToken")
	if token == "" {
		return common.NewAppError(http.StatusBadRequest, "Email verification token is missing", nil)
	}

	view, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, map[string]bool{"isEmailVerified": view.IsEmailVerified}, "Email is verified").Send(w)
	return nil
}

// RefreshAccessToken godoc
// @Summary      Refresh tokens
// @Description  Exchanges the current refresh token (cookie or body) for a new token pair
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      model.RefreshTokenRequest  false  "Refresh token"
// @Success      200   {object}  common.ApiResponse
// @Failure      401   {object}  common.AppError
// @Router       /api/v1/users/refresh-token [post]
func (h *UserHandler) RefreshAccessToken(w http.ResponseWriter, r *http.Request) *common.AppError {
	incoming := ""
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		incoming = c.Value
	}
	if incoming == "" {
		var req model.RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return common.NewAppError(http.StatusBadRequest, "Invalid request body", err)
		}
		incoming = req.RefreshToken
	}
	if incoming == "" {
		return common.NewAppError(http.StatusUnauthorized, "Unauthorized request", nil)
	}

	pair, err := h.service.RefreshAccessToken(r.Context(), incoming)
	if err != nil {
		return mapServiceError(err)
	}

	setSessionCookies(w, pair.AccessToken, pair.RefreshToken)
	common.NewApiResponse(http.StatusOK, pair, "Access token refreshed").Send(w)
	return nil
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Emails a reset link when the address belongs to an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      model.ForgotPasswordRequest  true  "Account email"
// @Success      200   {object}  common.ApiResponse
// @Failure      422   {object}  common.AppError
// @Router       /api/v1/users/forgot-password [post]
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ForgotPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.service.ForgotPasswordRequest(r.Context(), req.Email, h.resetBaseURL(r)); err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, map[string]interface{}{}, "Password reset mail has been sent on your mail id").Send(w)
	return nil
}

// ResetPassword godoc
// @Summary      Reset a forgotten password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        resetToken  path      string                      true  "Reset token"
// @Param        body        body      model.ResetPasswordRequest  true  "New password"
// @Success      200         {object}  common.ApiResponse
// @Failure      400         {object}  common.AppError
// @Router       /api/v1/users/reset-password/{resetToken} [post]
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	token := r.PathValue("resetToken")
	if token == "" {
		return common.NewAppError(http.StatusBadRequest, "Password reset token is missing", nil)
	}

	var req model.ResetPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.service.ResetForgotPassword(r.Context(), token, req.NewPassword); err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, map[string]interface{}{}, "Password reset successfully").Send(w)
	return nil
}

// Logout godoc
// @Summary      Log out
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  common.ApiResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/v1/users/logout [post]
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFromRequest(r)
	if appErr != nil {
		return appErr
	}

	if err := h.service.LogoutUser(r.Context(), userID); err != nil {
		return mapServiceError(err)
	}

	clearSessionCookies(w)
	common.NewApiResponse(http.StatusOK, map[string]interface{}{}, "User logged out").Send(w)
	return nil
}

// CurrentUser godoc
// @Summary      Get the current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  common.ApiResponse
// @Failure      401  {object}  common.AppError
// @Router       /api/v1/users/current-user [get]
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFromRequest(r)
	if appErr != nil {
		return appErr
	}

	view, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, view, "Current user fetched successfully").Send(w)
	return nil
}

// ChangePassword godoc
// @Summary      Change the current password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      model.ChangePasswordRequest  true  "Old and new password"
// @Success      200   {object}  common.ApiResponse
// @Failure      400   {object}  common.AppError
// @Router       /api/v1/users/change-password [post]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFromRequest(r)
	if appErr != nil {
		return appErr
	}

	var req model.ChangePasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.service.ChangeCurrentPassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, map[string]interface{}{}, "Password changed successfully").Send(w)
	return nil
}

// ResendEmailVerification godoc
// @Summary      Resend the verification email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  common.ApiResponse
// @Failure      409  {object}  common.AppError
// @Router       /api/v1/users/resend-email-verification [post]
func (h *UserHandler) ResendEmailVerification(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFromRequest(r)
	if appErr != nil {
		return appErr
	}

	if err := h.service.ResendEmailVerification(r.Context(), userID, h.baseURL(r)); err != nil {
		return mapServiceError(err)
	}

	common.NewApiResponse(http.StatusOK, map[string]interface{}{}, "Mail has been sent to your mail ID").Send(w)
	return nil
}

// baseURL is the scheme://host prefix of emailed links. The request fallback
// trusts client headers; config validation requires publicURL once mail is
// enabled, so the fallback only serves local runs.
func (h *UserHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *UserHandler) resetBaseURL(r *http.Request) string {
	if h.resetURL != "" {
		return h.resetURL
	}
	return h.baseURL(r) + resetPasswordPath
}

func userIDFromRequest(r *http.Request) (string, *common.AppError) {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok || userID == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	return userID, nil
}

// mapServiceError translates lifecycle errors into HTTP errors.
func mapServiceError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrUserAlreadyExists):
		return common.NewAppError(http.StatusConflict, "User with email or username already exists", nil)
	case errors.Is(err, service.ErrTokenInvalidOrExpired):
		return common.NewAppError(http.StatusBadRequest, "Token is invalid or expired", nil)
	case errors.Is(err, service.ErrEmailAlreadyVerified):
		return common.NewAppError(http.StatusConflict, "Email is already verified", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		return common.NewAppError(http.StatusUnauthorized, "Invalid user credentials", nil)
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusNotFound, "User does not exist", nil)
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return common.NewAppError(http.StatusUnauthorized, "Refresh token is invalid, expired or used", nil)
	case errors.Is(err, service.ErrIncorrectPassword):
		return common.NewAppError(http.StatusBadRequest, "Invalid old password", nil)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Something went wrong", err)
	}
}

func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, accessToken, 0))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, refreshToken, 0))
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, "", -1))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, "", -1))
}
