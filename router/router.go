package router

import (
	"net/http"
	_ "task-manager-api/docs"
	"task-manager-api/handler"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(userHandler *handler.UserHandler, authMiddleware func(http.Handler) http.Handler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/healthcheck", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Public user routes
	mux.Handle("POST /api/v1/users/register", handler.ErrorHandlingMiddleware(userHandler.Register))
	mux.Handle("POST /api/v1/users/login", handler.ErrorHandlingMiddleware(userHandler.Login))
	mux.Handle("GET /api/v1/users/verify-email/{verificationToken}", handler.ErrorHandlingMiddleware(userHandler.VerifyEmail))
	mux.Handle("POST /api/v1/users/refresh-token", handler.ErrorHandlingMiddleware(userHandler.RefreshAccessToken))
	mux.Handle("POST /api/v1/users/forgot-password", handler.ErrorHandlingMiddleware(userHandler.ForgotPassword))
	mux.Handle("POST /api/v1/users/reset-password/{resetToken}", handler.ErrorHandlingMiddleware(userHandler.ResetPassword))

	// Secured user routes
	mux.Handle("POST /api/v1/users/logout", authMiddleware(handler.ErrorHandlingMiddleware(userHandler.Logout)))
	mux.Handle("GET /api/v1/users/current-user", authMiddleware(handler.ErrorHandlingMiddleware(userHandler.CurrentUser)))
	mux.Handle("POST /api/v1/users/change-password", authMiddleware(handler.ErrorHandlingMiddleware(userHandler.ChangePassword)))
	mux.Handle("POST /api/v1/users/resend-email-verification", authMiddleware(handler.ErrorHandlingMiddleware(userHandler.ResendEmailVerification)))

	return handler.RequestLogger(mux)
}
