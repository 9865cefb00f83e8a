package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

type staticAuthenticator struct {
	wallet string
	err    error
}

func (s *staticAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if token != "valid-token" {
		return "", apperr.Unauthorized("invalid token")
	}
	return s.wallet, nil
}

func okHandler(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = logging.GetWallet(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	auth := NewAuth(&staticAuthenticator{wallet: "NWallet1"}, logging.NewDefault("test"))

	rec := httptest.NewRecorder()
	auth.Required(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestAuthRequiredRejectsBadToken(t *testing.T) {
	auth := NewAuth(&staticAuthenticator{wallet: "NWallet1"}, logging.NewDefault("test"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	auth.Required(okHandler(nil)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiredStoresWallet(t *testing.T) {
	auth := NewAuth(&staticAuthenticator{wallet: "NWallet1"}, logging.NewDefault("test"))

	var seen string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	auth.Required(okHandler(&seen)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NWallet1", seen)
}

func TestAuthOptionalPassesAnonymous(t *testing.T) {
	auth := NewAuth(&staticAuthenticator{wallet: "NWallet1"}, logging.NewDefault("test"))

	var seen string
	rec := httptest.NewRecorder()
	auth.Optional(okHandler(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, bearerToken(req), "header %q", tc.header)
	}
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.NewDefault("test"))
	handler := rl.Handler(okHandler(nil))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimiterKeysByWallet(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDefault("test"))
	handler := rl.Handler(okHandler(nil))

	walletReq := func(wallet string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(logging.WithWallet(req.Context(), wallet))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, walletReq("NWalletA"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, walletReq("NWalletA"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a different wallet has its own bucket
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, walletReq("NWalletB"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cors := NewCORS([]string{"http://localhost:3000"})
	handler := cors.Handler(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	cors := NewCORS([]string{"http://localhost:3000"})
	handler := cors.Handler(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	cors := NewCORS([]string{"*"})
	handler := cors.Handler(okHandler(nil))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
