package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/config"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository"
)

// AdminHandler serves catalogue and account management for ADMIN tokens.
type AdminHandler struct {
	Cfg        config.Config
	Shops      *repository.ShopRepo
	Items      *repository.ItemRepo
	Users      *repository.UserRepo
	Invalidate Invalidator
}

func NewAdminHandler(cfg config.Config, shops *repository.ShopRepo, items *repository.ItemRepo, users *repository.UserRepo, inv Invalidator) *AdminHandler {
	if inv == nil {
		inv = noInvalidate
	}
	return &AdminHandler{Cfg: cfg, Shops: shops, Items: items, Users: users, Invalidate: inv}
}

// CreateShop handles POST /api/admin/shops.
func (h *AdminHandler) CreateShop(c echo.Context) error {
	var shop model.Shop
	if err := c.Bind(&shop); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	shop.Name = strings.TrimSpace(shop.Name)
	if shop.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Shops.Create(ctx, &shop); err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusCreated, shop)
}

// CreateItem handles POST /api/admin/items with body {"name": "..."}.
func (h *AdminHandler) CreateItem(c echo.Context) error {
	var item model.Item
	if err := c.Bind(&item); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fail(c, http.StatusBadRequest, "name is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Items.Create(ctx, item.Name); err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusCreated, item)
}

// AssignBox handles POST /api/admin/shops/:id/boxes/:boxId.
func (h *AdminHandler) AssignBox(c echo.Context) error {
	shopID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	boxID, err := pathID(c, "boxId")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Shops.AssignBox(ctx, shopID, boxID); err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusCreated, echo.Map{"shop_id": shopID, "box_id": boxID})
}

type createUserReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	ShopID   *int64 `json:"shop_id"`
}

// CreateUser handles POST /api/admin/users.  OWNER accounts must name the
// shop they run.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Username == "" || len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "username and a password of at least 6 characters required")
	}
	switch req.Role {
	case model.RoleOwner:
		if req.ShopID == nil {
			return fail(c, http.StatusBadRequest, "shop_id is required for OWNER")
		}
	case model.RoleAdmin, model.RoleCustomer:
		req.ShopID = nil
	default:
		return fail(c, http.StatusBadRequest, "role must be ADMIN, OWNER or CUSTOMER")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if req.ShopID != nil {
		if _, err := h.Shops.GetByID(ctx, *req.ShopID); err != nil {
			return writeError(c, err)
		}
	}
	if err := h.Users.Create(ctx, req.Username, req.Password, req.Role, req.ShopID, h.Cfg.ScryptN); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, userPart{Username: req.Username, Role: req.Role, ShopID: req.ShopID})
}
