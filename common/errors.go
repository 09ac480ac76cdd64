package common

import (
	"encoding/json"
	"net/http"
	"task-manager-api/logger"

	"github.com/sirupsen/logrus"
)

// FieldError maps one request field to a message, e.g. {"email": "Email is invalid"}.
type FieldError map[string]string

type AppError struct {
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors"`
	Success    bool         `json:"success"`
	Err        error        `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		StatusCode: code,
		Message:    message,
		Errors:     []FieldError{},
		Success:    false,
		Err:        err,
	}
}

// NewValidationError is the 422 raised by the request validation gate.
func NewValidationError(errs []FieldError) *AppError {
	if errs == nil {
		errs = []FieldError{}
	}
	return &AppError{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "Received data is not valid",
		Errors:     errs,
		Success:    false,
	}
}

func (e *AppError) Send(w http.ResponseWriter) {
	if e.Err != nil {
		logger.Log.WithFields(logrus.Fields{
			"status_code":    e.StatusCode,
			"internal_error": e.Err.Error(),
		}).Error(e.Message)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(e)
}
