// ABOUTME: Contract tests for the HTTP route surface of the gateway
// ABOUTME: A removed or renamed route shows up here as 404/405 before it breaks a client

package contract

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/gateway"
	"github.com/2389/coven-acl/internal/store"
)

const someIdentity = "0x1111111111111111111111111111111111111111"

// expectedRoutes are served behind bearer auth, so without a token each one
// must answer 401 rather than 404 or 405.
var expectedRoutes = []struct {
	method string
	path   string
}{
	{http.MethodPost, "/api/deployments"},
	{http.MethodGet, "/api/deployments"},
	{http.MethodGet, "/api/deployments/d1"},
	{http.MethodGet, "/api/deployments/d1/admin"},
	{http.MethodPut, "/api/deployments/d1/admin"},
	{http.MethodPost, "/api/deployments/d1/authorizations"},
	{http.MethodGet, "/api/deployments/d1/authorizations/" + someIdentity},
	{http.MethodDelete, "/api/deployments/d1/authorizations/" + someIdentity},
	{http.MethodGet, "/api/deployments/d1/events"},
	{http.MethodGet, "/api/deployments/d1/events/stream"},
	{http.MethodGet, "/api/deployments/d1/audit"},
	{http.MethodPost, "/api/deployments/d1/token/mint"},
	{http.MethodPost, "/api/deployments/d1/token/transfer"},
	{http.MethodGet, "/api/deployments/d1/token/balances/" + someIdentity},
}

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Driver: config.DefaultDriver, Path: ":memory:"},
		Auth: config.AuthConfig{
			JWTSecret:       "contract-test-secret-0123456789abcdef",
			TokenTTL:        time.Hour,
			SignatureMaxAge: time.Minute,
		},
		Token: config.TokenConfig{Name: config.DefaultTokenName, Symbol: config.DefaultTokenSymbol},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := gateway.NewWithStore(t.Context(), cfg, store.NewMockStore(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw.Handler()
}

func TestRouteSurface(t *testing.T) {
	h := newHandler(t)

	for _, route := range expectedRoutes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestPublicRoutes(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// login is public; an empty body is a client error, not an auth failure
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWrongMethod(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/deployments/d1/admin", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
