package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"task-manager-api/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndDecode_Register(t *testing.T) {
	t.Run("valid payload is trimmed", func(t *testing.T) {
		body := `{"email":"  a@x.com ","username":" abc ","password":"pw1","fullName":"  Ada  "}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		var payload model.RegisterRequest
		appErr := ValidateAndDecode(req, &payload)

		require.Nil(t, appErr)
		assert.Equal(t, "a@x.com", payload.Email)
		assert.Equal(t, "abc", payload.Username)
		assert.Equal(t, "Ada", payload.FullName)
	})

	t.Run("field errors are reported as 422", func(t *testing.T) {
		body := `{"email":"not-an-email","username":"AB","password":""}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		var payload model.RegisterRequest
		appErr := ValidateAndDecode(req, &payload)

		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
		assert.Equal(t, "Received data is not valid", appErr.Message)
		assert.Contains(t, appErr.Errors, FieldError{"email": "Email is invalid"})
		assert.Contains(t, appErr.Errors, FieldError{"username": "Username must be in lower case"})
		assert.Contains(t, appErr.Errors, FieldError{"password": "Password is required"})
	})

	t.Run("short username", func(t *testing.T) {
		body := `{"email":"a@x.com","username":"ab","password":"pw"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		var payload model.RegisterRequest
		appErr := ValidateAndDecode(req, &payload)

		require.NotNil(t, appErr)
		assert.Equal(t, []FieldError{{"username": "Username must be at least 3 characters long"}}, appErr.Errors)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

		var payload model.RegisterRequest
		appErr := ValidateAndDecode(req, &payload)

		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	})
}

func TestValidate_Login(t *testing.T) {
	assert.Nil(t, Validate(&model.LoginRequest{Username: "abc", Password: "pw"}))
	assert.Nil(t, Validate(&model.LoginRequest{Email: "a@x.com", Password: "pw"}))

	appErr := Validate(&model.LoginRequest{Password: "pw"})
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Errors, FieldError{"email": "Email is required"})
}

func TestAppError_Send(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAppError(http.StatusConflict, "User with email or username already exists", nil).Send(rr)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"statusCode":409,"message":"User with email or username already exists","errors":[],"success":false}`, rr.Body.String())
}
