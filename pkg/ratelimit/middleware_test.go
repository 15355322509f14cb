package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestMiddleware_PerIP(t *testing.T) {
	m := NewMiddleware(&Config{PerIPEnabled: true, PerIPCapacity: 2, PerIPRefillRate: 0.001, IncludeHeaders: true})
	defer m.Close()
	handler := m.Handler(http.HandlerFunc(okHandler))

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := request("192.0.2.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit-IP"))
	assert.Equal(t, http.StatusOK, request("192.0.2.1").Code)

	limited := request("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1000", limited.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "ip", body["error"].(map[string]interface{})["limit"])

	assert.Equal(t, http.StatusOK, request("192.0.2.2").Code)
}

func TestMiddleware_PerAccount(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte("secret"), nil)
	m := NewMiddleware(&Config{PerAccountEnabled: true, PerAccountCapacity: 1, PerAccountRefillRate: 0.001})
	defer m.Close()

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(tokenAuth))
	r.Use(m.Handler)
	r.Get("/", okHandler)

	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "42"})
	require.NoError(t, err)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestMiddleware_Guard(t *testing.T) {
	m := NewMiddleware(&Config{})
	defer m.Close()

	r := chi.NewRouter()
	r.With(m.Guard("verify", EndpointLimit{Capacity: 1, RefillRate: 0.001})).Get("/verify", okHandler)
	r.Get("/status", okHandler)

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("/verify"))
	assert.Equal(t, http.StatusTooManyRequests, send("/verify"))
	assert.Equal(t, http.StatusOK, send("/status"))

	m.Reset("203.0.113.9")
	assert.Equal(t, http.StatusOK, send("/verify"))
	assert.Contains(t, m.GetStats(), "guard:verify")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.4 ")
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
