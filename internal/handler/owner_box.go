package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/acl"
	"github.com/iliyamo/food-box-reservation/internal/database"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository"
	"github.com/iliyamo/food-box-reservation/internal/service"
)

// BoxAdminHandler serves the box management endpoints shared by shop owners
// and admins.  acl.ShopScope confines owners to their own shop; admins act
// on every shop.
type BoxAdminHandler struct {
	Shops      *repository.ShopRepo
	Boxes      *repository.BoxRepo
	Engine     *service.Engine
	Invalidate Invalidator
}

func NewBoxAdminHandler(shops *repository.ShopRepo, boxes *repository.BoxRepo, engine *service.Engine, inv Invalidator) *BoxAdminHandler {
	if shops == nil || boxes == nil || engine == nil {
		panic("nil dependency passed to NewBoxAdminHandler")
	}
	if inv == nil {
		inv = noInvalidate
	}
	return &BoxAdminHandler{Shops: shops, Boxes: boxes, Engine: engine, Invalidate: inv}
}

// MyShop handles GET /api/owner/shop.
func (h *BoxAdminHandler) MyShop(c echo.Context) error {
	id := acl.Classify(c)
	if id.Kind != acl.ShopOwner {
		return writeError(c, acl.ErrForbidden)
	}
	shop, err := h.Shops.GetByID(c.Request().Context(), id.ShopID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, shop)
}

// MyBoxes handles GET /api/owner/boxes.
func (h *BoxAdminHandler) MyBoxes(c echo.Context) error {
	id := acl.Classify(c)
	if id.Kind != acl.ShopOwner {
		return writeError(c, acl.ErrForbidden)
	}
	boxes, err := h.Boxes.ListByShop(c.Request().Context(), id.ShopID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, boxes)
}

// CreateBox handles POST /api/owner/boxes and POST /api/admin/boxes.  Owners
// always place the box in their shop; admins may pass "shop_id" or leave the
// box unplaced.
func (h *BoxAdminHandler) CreateBox(c echo.Context) error {
	id := acl.Classify(c)
	scope, err := acl.ShopScope(id)
	if err != nil {
		return writeError(c, err)
	}
	var box model.Box
	if err := c.Bind(&box); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	box.Type = strings.TrimSpace(box.Type)
	box.Size = strings.TrimSpace(box.Size)
	for i := range box.Contents {
		box.Contents[i].ItemName = strings.TrimSpace(box.Contents[i].ItemName)
	}
	if err := box.Validate(); err != nil {
		return writeError(c, err)
	}
	shopID := box.ShopID
	if scope != nil {
		shopID = scope
	}
	if box.Contents == nil {
		box.Contents = []model.ContentLine{}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	err = database.WithTx(ctx, h.Boxes.DB(), func(tx *sqlx.Tx) error {
		return h.Boxes.CreateTx(ctx, tx, &box, shopID)
	})
	if err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusCreated, box)
}

// DeleteBox handles DELETE /api/owner/boxes/:id and DELETE
// /api/admin/boxes/:id.  A reserved box cannot be deleted (409).
func (h *BoxAdminHandler) DeleteBox(c echo.Context) error {
	id := acl.Classify(c)
	scope, err := acl.ShopScope(id)
	if err != nil {
		return writeError(c, err)
	}
	boxID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	err = database.WithTx(ctx, h.Boxes.DB(), func(tx *sqlx.Tx) error {
		return h.Boxes.DeleteTx(ctx, tx, boxID, scope)
	})
	if err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.NoContent(http.StatusNoContent)
}

// CancelReservation handles DELETE /api/owner/boxes/:id/reservation: the
// box is taken back from whichever customer holds it.
func (h *BoxAdminHandler) CancelReservation(c echo.Context) error {
	id := acl.Classify(c)
	scope, err := acl.ShopScope(id)
	if err != nil {
		return writeError(c, err)
	}
	boxID, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	holder, err := h.Engine.CancelReservation(ctx, id.Username, boxID, scope)
	if err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusOK, echo.Map{"box_id": boxID, "released_from": holder})
}
