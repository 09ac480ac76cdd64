package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Messages keyed by "<json field>.<tag>".
var fieldMessages = map[string]string{
	"email.required":            "Email is required",
	"email.required_without":    "Email is required",
	"email.email":               "Email is invalid",
	"username.required":         "Username is required",
	"username.required_without": "Username is required",
	"username.lowercase":        "Username must be in lower case",
	"username.min":              "Username must be at least 3 characters long",
	"password.required":         "Password is required",
	"oldPassword.required":      "Old password is required",
	"newPassword.required":      "New password is required",
}

// Trimmer is implemented by payloads that sanitize their fields before validation.
type Trimmer interface {
	Trim()
}

// ValidateAndDecode decodes the JSON body into payload and runs the field
// checks. It returns nil when the payload is valid.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, "Invalid request body", err)
	}
	return Validate(payload)
}

// Validate runs the field checks against an already decoded payload.
func Validate(payload interface{}) *AppError {
	if t, ok := payload.(Trimmer); ok {
		t.Trim()
	}

	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewAppError(http.StatusInternalServerError, "Could not validate request", err)
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{fe.Field(): messageFor(fe)})
	}
	return NewValidationError(fieldErrors)
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
