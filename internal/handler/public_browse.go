// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file defines the public catalogue API: shops, boxes and items can be
// browsed without a token.  Responses are cached by the Redis middleware.

package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/repository"
)

// PublicHandler aggregates repositories needed for unauthenticated browsing.
type PublicHandler struct {
	Shops *repository.ShopRepo
	Boxes *repository.BoxRepo
	Items *repository.ItemRepo
}

func NewPublicHandler(shops *repository.ShopRepo, boxes *repository.BoxRepo, items *repository.ItemRepo) *PublicHandler {
	return &PublicHandler{Shops: shops, Boxes: boxes, Items: items}
}

// ListShops handles GET /api/shops.
func (h *PublicHandler) ListShops(c echo.Context) error {
	shops, err := h.Shops.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, shops)
}

// ListBoxes handles GET /api/boxes.  ?available=true hides reserved boxes.
func (h *PublicHandler) ListBoxes(c echo.Context) error {
	boxes, err := h.Boxes.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if strings.EqualFold(c.QueryParam("available"), "true") {
		free := boxes[:0]
		for _, b := range boxes {
			if !b.IsOwned {
				free = append(free, b)
			}
		}
		boxes = free
	}
	return c.JSON(http.StatusOK, boxes)
}

// BoxesByShop handles GET /api/boxes/:shopId.
func (h *PublicHandler) BoxesByShop(c echo.Context) error {
	shopID, err := pathID(c, "shopId")
	if err != nil {
		return writeError(c, err)
	}
	boxes, err := h.Boxes.ListByShop(c.Request().Context(), shopID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, boxes)
}

// BoxesByShopName handles GET /api/shops/by-name/:name/boxes.
func (h *PublicHandler) BoxesByShopName(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		return fail(c, http.StatusBadRequest, "shop name required")
	}
	boxes, err := h.Boxes.ListByShopName(c.Request().Context(), name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, boxes)
}

// ListItems handles GET /api/items.
func (h *PublicHandler) ListItems(c echo.Context) error {
	items, err := h.Items.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}
