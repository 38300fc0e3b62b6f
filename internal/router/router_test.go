package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/food-box-reservation/internal/config"
	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/handler"
	"github.com/iliyamo/food-box-reservation/internal/middleware"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository"
	"github.com/iliyamo/food-box-reservation/internal/service"
)

type testApp struct {
	e     *echo.Echo
	users *repository.UserRepo
	cfg   config.Config
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db))
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`INSERT INTO items (name) VALUES ('bread'), ('milk'), ('eggs')`,
		`INSERT INTO shops (id, name) VALUES (1, 'Corner Bakery')`,
		`INSERT INTO boxes (id, type, size, price, window_start, window_end) VALUES
			(1, 'Normal', 'Small', '3.50', '18:00', '20:00'),
			(2, 'Surprise', 'Large', '6.00', '18:00', '20:00')`,
		`INSERT INTO box_contents (box_id, item_name, quantity, position) VALUES
			(1, 'bread', 1, 0), (1, 'milk', 1, 1), (1, 'eggs', 6, 2)`,
		`INSERT INTO shop_boxes (shop_id, box_id) VALUES (1, 1), (1, 2)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	cfg := config.Config{JWTSecret: "router-test-secret", AccessTTLMin: 5, RefreshTTLDays: 1, ScryptN: 1024}
	boxes := repository.NewBoxRepo(db)
	reservations := repository.NewReservationRepo(db)
	shops := repository.NewShopRepo(db)
	items := repository.NewItemRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	noon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	engine := service.NewEngine(db, boxes, reservations, repository.NewContentRepo(db),
		service.WithClock(func() time.Time { return noon }))

	e := echo.New()
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, reservations), cfg.JWTSecret)
	RegisterPublic(e, handler.NewPublicHandler(shops, boxes, items), middleware.NewRedisCache(config.CacheConfig{}, nil, nil))
	RegisterCustomer(e, handler.NewCustomerHandler(engine, reservations, boxes, nil), cfg.JWTSecret,
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil, nil))
	boxAdmin := handler.NewBoxAdminHandler(shops, boxes, engine, nil)
	RegisterOwner(e, boxAdmin, cfg.JWTSecret)
	RegisterAdmin(e, handler.NewAdminHandler(cfg, shops, items, users, nil), boxAdmin, cfg.JWTSecret)

	return &testApp{e: e, users: users, cfg: cfg}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type loginResp struct {
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
	Purchases []int64 `json:"purchases"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) register(t *testing.T, username string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", echo.Map{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[loginResp](t, rec).Access.Token
}

func (a *testApp) login(t *testing.T, username, password string) loginResp {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/login", "", echo.Map{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResp](t, rec)
}

type errResp struct {
	Errors      []string `json:"errors"`
	Unavailable []int64  `json:"unavailable"`
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicCatalogue(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/boxes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	boxes := decode[[]model.Box](t, rec)
	require.Len(t, boxes, 2)
	assert.Equal(t, "3.5", boxes[0].Price.String())
	assert.Len(t, boxes[0].Contents, 3)

	rec = app.do(t, http.MethodGet, "/api/shops/by-name/Corner%20Bakery/boxes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Box](t, rec), 2)

	rec = app.do(t, http.MethodGet, "/api/boxes/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/boxes/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Item](t, rec), 3)
}

func TestReconcileFlow(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	rec := app.do(t, http.MethodPost, "/api/purchases/reconcile", alice, echo.Map{
		"add":          []int64{1, 2},
		"rem":          []int64{},
		"removedItems": map[string][]string{"1": {"milk"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.ReconcileResult](t, rec)
	assert.Equal(t, []int64{1, 2}, res.Holdings)
	assert.Equal(t, map[int64][]string{1: {"milk"}}, res.RemovedItems)

	rec = app.do(t, http.MethodPost, "/api/purchases/reconcile", bob, echo.Map{"add": []int64{2}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errResp](t, rec)
	assert.Equal(t, []int64{2}, body.Unavailable)
	assert.Equal(t, []string{"box 2 is no longer available"}, body.Errors)

	assert.Equal(t, []int64{1, 2}, app.login(t, "alice", "secret123").Purchases)

	rec = app.do(t, http.MethodPost, "/api/purchases/reconcile", alice, echo.Map{"rem": []int64{2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// replaying the same saves changes nothing and still succeeds
	rec = app.do(t, http.MethodPost, "/api/purchases/reconcile", alice, echo.Map{"add": []int64{1}, "rem": []int64{2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = decode[service.ReconcileResult](t, rec)
	assert.Equal(t, []int64{1}, res.AlreadyHeld)
	assert.Equal(t, []int64{2}, res.NotHeld)
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []int64{1}, res.Holdings)

	rec = app.do(t, http.MethodGet, "/api/purchases", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	purchases := decode[struct {
		BoxIDs []int64     `json:"box_ids"`
		Boxes  []model.Box `json:"boxes"`
	}](t, rec)
	assert.Equal(t, []int64{1}, purchases.BoxIDs)
	require.Len(t, purchases.Boxes, 1)
	assert.Len(t, purchases.Boxes[0].Contents, 2)

	rec = app.do(t, http.MethodDelete, "/api/purchases", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{}, app.login(t, "alice", "secret123").Purchases)
}

func TestReconcileErrors(t *testing.T) {
	app := newTestApp(t)
	alice := app.register(t, "alice")

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"anonymous", "", echo.Map{"add": []int64{1}}, http.StatusUnauthorized},
		{"overlap", alice, echo.Map{"add": []int64{1}, "rem": []int64{1}}, http.StatusBadRequest},
		{"unknown box", alice, echo.Map{"add": []int64{42}}, http.StatusUnprocessableEntity},
		{"removal cap", alice, echo.Map{"add": []int64{1}, "removedItems": map[string][]string{"1": {"bread", "milk", "eggs"}}}, http.StatusUnprocessableEntity},
		{"bad removedItems key", alice, echo.Map{"removedItems": map[string][]string{"x": {"milk"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/purchases/reconcile", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errResp](t, rec).Errors)
		})
	}
	assert.Equal(t, []int64{}, app.login(t, "alice", "secret123").Purchases)
}

func TestAuthRefreshAndLogout(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "carl")
	pair := app.login(t, "carl", "secret123")

	rec := app.do(t, http.MethodPost, "/api/auth/login", "", echo.Map{"username": "carl", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/register", "", echo.Map{"username": "carl", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/auth/me", pair.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"carl"`)

	rec = app.do(t, http.MethodPost, "/api/auth/refresh", "", echo.Map{"refresh_token": pair.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[loginResp](t, rec)

	// the old refresh token was revoked by the rotation
	rec = app.do(t, http.MethodPost, "/api/auth/refresh", "", echo.Map{"refresh_token": pair.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/logout", rotated.Access.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/auth/refresh", "", echo.Map{"refresh_token": rotated.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerAndAdminFlow(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.users.Create(context.Background(), "root", "rootpass", model.RoleAdmin, nil, app.cfg.ScryptN))
	admin := app.login(t, "root", "rootpass").Access.Token
	alice := app.register(t, "alice")

	rec := app.do(t, http.MethodPost, "/api/admin/shops", admin, echo.Map{"name": "Green Grocer", "food_type": "vegan"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grocer := decode[model.Shop](t, rec)

	rec = app.do(t, http.MethodPost, "/api/admin/items", admin, echo.Map{"name": "kale"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/admin/users", admin, echo.Map{"username": "olivia", "password": "ownerpass", "role": "OWNER", "shop_id": grocer.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	owner := app.login(t, "olivia", "ownerpass").Access.Token

	rec = app.do(t, http.MethodPost, "/api/admin/shops", alice, echo.Map{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/owner/boxes", owner, echo.Map{
		"type": "Normal", "size": "Medium", "price": "4.20",
		"window_start": "17:00", "window_end": "19:00",
		"contents": []echo.Map{{"name": "kale", "quantity": 2}, {"name": "bread", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	box := decode[model.Box](t, rec)
	require.NotNil(t, box.ShopID)
	assert.Equal(t, grocer.ID, *box.ShopID)

	rec = app.do(t, http.MethodPost, "/api/owner/boxes", owner, echo.Map{
		"type": "Normal", "size": "Small", "price": "1",
		"window_start": "17:00", "window_end": "19:00",
		"contents": []echo.Map{{"name": "caviar", "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/owner/boxes", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Box](t, rec), 1)

	rec = app.do(t, http.MethodPost, "/api/purchases/reconcile", alice, echo.Map{"add": []int64{box.ID, 1}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// reserved boxes cannot be deleted, and box 1 belongs to another shop
	rec = app.do(t, http.MethodDelete, "/api/owner/boxes/"+strconv.FormatInt(box.ID, 10), owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = app.do(t, http.MethodDelete, "/api/owner/boxes/1/reservation", owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/owner/boxes/"+strconv.FormatInt(box.ID, 10)+"/reservation", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"released_from":"alice"`)

	rec = app.do(t, http.MethodDelete, "/api/owner/boxes/"+strconv.FormatInt(box.ID, 10), owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []int64{1}, app.login(t, "alice", "secret123").Purchases)

	rec = app.do(t, http.MethodPost, "/api/admin/shops/"+strconv.FormatInt(grocer.ID, 10)+"/boxes/2", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "box 2 already placed in shop 1")
}
