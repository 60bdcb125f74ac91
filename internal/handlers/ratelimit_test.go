package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
)

func TestIPLimiter_RefillsAndSweeps(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(60, 2)
	l.nowFunc = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, l.Allow("10.0.0.3"))
	assert.Len(t, l.buckets, 1)
}

func TestAuthRoutes_AreThrottledPerIP(t *testing.T) {
	r := NewRouter(Deps{Auth: fakeAuth{}, AuthLimiter: NewIPLimiter(10, 2), Logger: logging.Discard()})

	post := func(path, ip, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	login := `{"email":"ann@example.com","password":"Secret123"}`
	register := `{"email":"ann@example.com","password":"Secret123","name":"Ann"}`

	assert.Equal(t, http.StatusUnauthorized, post("/auth/login", "10.0.0.1", login))
	assert.Equal(t, http.StatusCreated, post("/auth/register", "10.0.0.1", register))
	assert.Equal(t, http.StatusTooManyRequests, post("/auth/login", "10.0.0.1", login))
	assert.Equal(t, http.StatusTooManyRequests, post("/auth/register", "10.0.0.1", register))

	assert.Equal(t, http.StatusUnauthorized, post("/auth/login", "10.0.0.2", login))
}

func TestAuthRoutes_UnthrottledWithoutLimiter(t *testing.T) {
	r := NewRouter(Deps{Auth: fakeAuth{}, Logger: logging.Discard()})
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ann@example.com","password":"Secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}
