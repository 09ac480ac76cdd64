package handler

import (
	"context"
	"net/http"
	"strings"
	"task-manager-api/common"
	"task-manager-api/service"
)

type contextKey string

const UserIDKey contextKey = "userID"

// NewAuthMiddleware verifies the access token from the accessToken cookie or
// the Authorization header and stores the user id in the request context.
func NewAuthMiddleware(minter service.TokenMinter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, appErr := accessTokenFromRequest(r)
			if appErr != nil {
				appErr.Send(w)
				return
			}

			claims, err := minter.ParseAccessToken(tokenString)
			if err != nil || claims.UserID == "" {
				common.NewAppError(http.StatusUnauthorized, "Invalid access token", err).Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessTokenFromRequest(r *http.Request) (string, *common.AppError) {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Unauthorized request", nil)
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil)
	}
	return headerParts[1], nil
}
