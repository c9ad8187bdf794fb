package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/response"
	"github.com/stemsi/tutoria-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	claims *service.Claims
}

func (s stubValidator) ValidateToken(tokenStr string) (*service.Claims, error) {
	if tokenStr != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		role := ""
		if claims := GetClaims(c); claims != nil {
			role = string(claims.Role)
		}
		c.String(http.StatusOK, role)
	})
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	v := stubValidator{claims: &service.Claims{ActorID: uuid.New(), Role: model.RoleGuardian}}
	r := newEngine(RequireJWT(v))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, "/", tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	w := serve(r, "/", "Bearer good")
	assert.Equal(t, "GUARDIAN", w.Body.String())
}

func TestRequireWSAuth(t *testing.T) {
	v := stubValidator{claims: &service.Claims{ActorID: uuid.New(), Role: model.RoleAdmin}}
	r := newEngine(RequireWSAuth(v))

	assert.Equal(t, http.StatusOK, serve(r, "/?token=good", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/", "Bearer good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/?token=bad", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/", "").Code)
}

func TestRequireRole(t *testing.T) {
	v := stubValidator{claims: &service.Claims{ActorID: uuid.New(), Role: model.RoleInstructor}}

	allowed := newEngine(RequireJWT(v), RequireRole(model.RoleAdmin, model.RoleInstructor))
	assert.Equal(t, http.StatusOK, serve(allowed, "/", "Bearer good").Code)

	denied := newEngine(RequireJWT(v), RequireRole(model.RoleGuardian))
	assert.Equal(t, http.StatusForbidden, serve(denied, "/", "Bearer good").Code)

	noClaims := newEngine(RequireRole(model.RoleGuardian))
	assert.Equal(t, http.StatusUnauthorized, serve(noClaims, "/", "").Code)
}

func TestCacheControl(t *testing.T) {
	w := serve(newEngine(CacheControl(30*time.Second)), "/", "")
	assert.Equal(t, "private, max-age=30", w.Header().Get("Cache-Control"))

	w = serve(newEngine(CacheControl(0)), "/", "")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestReserveRateLimiter_WithoutRedisPassesThrough(t *testing.T) {
	rl := NewReserveRateLimiter(nil, 1, time.Minute, zerolog.Nop())
	r := newEngine(rl.Middleware())
	for range 3 {
		assert.Equal(t, http.StatusOK, serve(r, "/", "").Code)
	}
}

func TestReserveRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewReserveRateLimiter(rdb, 2, time.Minute, zerolog.Nop())
	// 649s sits 49s into the window that started at 600s.
	now := time.Unix(649, 0)
	rl.now = func() time.Time { return now }

	guardian := stubValidator{claims: &service.Claims{ActorID: uuid.New(), Role: model.RoleGuardian}}
	r := newEngine(RequireJWT(guardian), rl.Middleware())

	tests := []struct {
		wantStatus    int
		wantRemaining string
	}{
		{http.StatusOK, "1"},
		{http.StatusOK, "0"},
		{http.StatusTooManyRequests, "0"},
		{http.StatusTooManyRequests, "0"},
	}
	for i, tt := range tests {
		w := serve(r, "/", "Bearer good")
		require.Equal(t, tt.wantStatus, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, tt.wantRemaining, w.Header().Get("X-RateLimit-Remaining"))
		if tt.wantStatus != http.StatusTooManyRequests {
			assert.Empty(t, w.Header().Get("Retry-After"))
			continue
		}
		assert.Equal(t, "11", w.Header().Get("Retry-After"))
		var res response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.NotNil(t, res.Error)
		assert.Equal(t, response.ErrRateLimitExceeded, res.Error.Code)
	}

	key := config.CacheKey.ReserveRateKey(guardian.claims.ActorID.String(), 10)
	assert.Equal(t, "4", mustGet(t, mr, key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	t.Run("other actors keep their own budget", func(t *testing.T) {
		other := stubValidator{claims: &service.Claims{ActorID: uuid.New(), Role: model.RoleGuardian}}
		w := serve(newEngine(RequireJWT(other), rl.Middleware()), "/", "Bearer good")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("next window starts over", func(t *testing.T) {
		now = time.Unix(660, 0)
		w := serve(r, "/", "Bearer good")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("redis down lets requests through", func(t *testing.T) {
		mr.Close()
		w := serve(r, "/", "Bearer good")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestBrotli(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 64}))
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("seat ", 100)) })

	get := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/small", "gzip, br")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	w = get("/large", "gzip")
	assert.Empty(t, w.Header().Get("Content-Encoding"))

	w = get("/large", "gzip, br;q=1.0")
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	assert.NoError(t, err)
	assert.Equal(t, strings.Repeat("seat ", 100), string(plain))
}
