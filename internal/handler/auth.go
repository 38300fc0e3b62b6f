package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // sql.ErrNoRows for unknown users and tokens
	"errors"
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/food-box-reservation/internal/config"     // app configuration
	"github.com/iliyamo/food-box-reservation/internal/middleware" // context keys set by JWTAuth
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository" // DB repositories
	"github.com/iliyamo/food-box-reservation/internal/utils"      // hashing and token issuing
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg          config.Config
	Users        *repository.UserRepo
	Tokens       *repository.TokenRepo
	Reservations *repository.ReservationRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, r *repository.ReservationRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Reservations: r}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	ShopID   *int64 `json:"shop_id,omitempty"`
}
type authResp struct {
	User      userPart  `json:"user"`
	Access    tokenPart `json:"access"`
	Refresh   tokenPart `json:"refresh"`
	Purchases []int64   `json:"purchases"`
}

func (r *credentialsReq) normalize() bool {
	r.Username = strings.TrimSpace(r.Username)
	return r.Username != "" && r.Password != ""
}

// Register creates a customer account and returns tokens immediately.  Shop
// owners and admins are created through the admin API.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if !req.normalize() {
		return fail(c, http.StatusBadRequest, "username and password required")
	}
	if len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Create(ctx, req.Username, req.Password, model.RoleCustomer, nil, h.Cfg.ScryptN); err != nil {
		return writeError(c, err)
	}
	resp, err := h.issue(ctx, model.User{Username: req.Username, Role: model.RoleCustomer})
	if err != nil {
		return writeError(c, err)
	}
	resp.Purchases = []int64{}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies the credentials and returns a new token pair together with
// the boxes the customer currently holds.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if !req.normalize() {
		return fail(c, http.StatusBadRequest, "username and password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Username, req.Password, h.Cfg.ScryptN)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		return writeError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return writeError(c, err)
	}
	if u.Role == model.RoleCustomer {
		if resp.Purchases, err = h.Reservations.ListBoxIDs(ctx, u.Username); err != nil {
			return writeError(c, err)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates the refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	username, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	// losing the race to revoke means another request already rotated it
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	u, err := h.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "invalid refresh")
		}
		return writeError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes one refresh token when the body carries it, otherwise every
// refresh token of the bearer.  Requests with neither are rejected.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fail(c, http.StatusUnauthorized, "invalid refresh")
			}
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return fail(c, http.StatusBadRequest, "refresh_token or bearer token required")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid token")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.Subject); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity as the token describes it.
func (h *AuthHandler) Me(c echo.Context) error {
	username, _ := c.Get(middleware.CtxUserID).(string)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "unknown user")
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, userPart{Username: u.Username, Role: u.Role, ShopID: u.ShopID})
}

func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.Username, u.Role, u.ShopID, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.Username, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{Username: u.Username, Role: u.Role, ShopID: u.ShopID},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}
