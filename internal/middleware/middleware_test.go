package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/food-box-reservation/internal/config"
	"github.com/iliyamo/food-box-reservation/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, mw []echo.MiddlewareFunc, h echo.HandlerFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/p", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	shop := int64(7)
	tok, err := utils.NewAccessToken(secret, "olivia", "OWNER", &shop, 5)
	require.NoError(t, err)

	var gotUser, gotRole string
	var gotShop int64
	rec := serve(t, []echo.MiddlewareFunc{JWTAuth(secret)}, func(c echo.Context) error {
		gotUser = c.Get(CtxUserID).(string)
		gotRole = c.Get(CtxRole).(string)
		gotShop = c.Get(CtxShopID).(int64)
		return c.NoContent(http.StatusNoContent)
	}, "Bearer "+tok.Token)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "olivia", gotUser)
	assert.Equal(t, "OWNER", gotRole)
	assert.Equal(t, int64(7), gotShop)
}

func TestJWTAuthRejects(t *testing.T) {
	other, err := utils.NewAccessToken("another-secret", "mallory", "ADMIN", nil, 5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + other.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, []echo.MiddlewareFunc{JWTAuth(secret)}, func(c echo.Context) error {
				t.Fatal("handler must not run")
				return nil
			}, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"errors"`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, "carl", "CUSTOMER", nil, 5)
	require.NoError(t, err)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	rec := serve(t, []echo.MiddlewareFunc{JWTAuth(secret), RequireRole("CUSTOMER")}, ok, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, []echo.MiddlewareFunc{JWTAuth(secret), RequireRole("ADMIN", "OWNER")}, ok, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "fresh") }

	rec := serve(t, []echo.MiddlewareFunc{
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
	}, ok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCacheKeyIncludesConcretePath(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "boxes-cache", KeyStrategy: "route_query"}
	e := echo.New()
	key := func(target string) string {
		return cacheKeyFrom(cfg, e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder()))
	}

	assert.NotEqual(t, key("/api/boxes/1"), key("/api/boxes/2"))
	assert.NotEqual(t, key("/api/items?a=1"), key("/api/items?a=2"))
	assert.Equal(t, key("/api/shops"), key("/api/shops"))
	assert.Regexp(t, `^boxes-cache:[0-9a-f]{40}$`, key("/api/shops"))
}

func TestInvalidateCacheWithoutRedis(t *testing.T) {
	assert.NoError(t, InvalidateCache(httptest.NewRequest(http.MethodGet, "/", nil).Context(), nil, config.CacheConfig{Enabled: true}))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/purchases/reconcile", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/purchases/reconcile")
	c.Set(CtxUserID, "carl")

	cases := map[string]string{
		"user_route": "rl:user:carl:route:POST /api/purchases/reconcile",
		"ip":         "rl:ip:10.0.0.9",
		"ip_user":    "rl:ip:10.0.0.9:user:carl",
		"bogus":      "rl:ip:10.0.0.9:user:carl:route:POST /api/purchases/reconcile",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		assert.Equal(t, want, got, strategy)
	}

	anon := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "rl:user:guest", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, anon))
}
