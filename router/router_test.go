package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"task-manager-api/config"
	"task-manager-api/handler"
	"task-manager-api/logger"
	"task-manager-api/mailer"
	"task-manager-api/metrics"
	"task-manager-api/repository"
	"task-manager-api/router"
	"task-manager-api/service"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *linkMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, mailer.ActionLink(msg.Content))
	return nil
}

func (m *linkMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	return m.links[len(m.links)-1]
}

func newTestRouter(t *testing.T) (http.Handler, *linkMailer) {
	t.Helper()
	minter, err := service.NewJWTMinter(config.JWTConfig{
		AccessSecret:  "access-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshExpiry: time.Hour,
	}, config.TokenConfig{SingleUseExpiry: 20 * time.Minute})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := &linkMailer{}
	svc := service.NewUserService(service.UserServiceDeps{
		Repo:    repository.NewInMemoryUserRepository(),
		Hasher:  service.NewBcryptHasher(),
		Minter:  minter,
		Mailer:  m,
		Metrics: metrics.NewMetrics(reg),
	})

	r := router.NewRouter(
		handler.NewUserHandler(svc, "https://api.example.com", ""),
		handler.NewAuthMiddleware(minter),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	return r, m
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := serve(r, "GET", "/api/v1/healthcheck", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"statusCode":200,"data":"OK","message":"Health check passed","success":true}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(handler.RequestIDHeader))
}

func TestRegisterAndVerify(t *testing.T) {
	r, m := newTestRouter(t)

	rr := serve(r, "POST", "/api/v1/users/register", `{"email":"a@x.com","username":"abc","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	link := m.last()
	require.True(t, strings.HasPrefix(link, "https://api.example.com/api/v1/users/verify-email/"))

	rr = serve(r, "GET", strings.TrimPrefix(link, "https://api.example.com"), "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(r, "POST", "/api/v1/users/register", `{"email":"a@x.com","username":"abc","password":"pw1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "User with email or username already exists")
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/v1/users/logout"},
		{"GET", "/api/v1/users/current-user"},
		{"POST", "/api/v1/users/change-password"},
		{"POST", "/api/v1/users/resend-email-verification"},
	} {
		rr := serve(r, route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := serve(r, "GET", "/api/v1/users/register", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	serve(r, "POST", "/api/v1/users/register", `{"email":"a@x.com","username":"abc","password":"pw1"}`)

	rr := serve(r, "GET", "/metrics", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `taskmanager_auth_events_total{event="register",outcome="success"} 1`)
}

func TestSwaggerDoc(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := serve(r, "GET", "/swagger/doc.json", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Task Manager API")
	assert.Contains(t, rr.Body.String(), "/api/v1/users/register")
}
