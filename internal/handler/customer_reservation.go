package handler

import (
	"context"  // request-scoped deadlines
	"net/http" // HTTP status codes
	"time"     // timeouts

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/food-box-reservation/internal/acl"
	"github.com/iliyamo/food-box-reservation/internal/repository" // repository layer
	"github.com/iliyamo/food-box-reservation/internal/service"
)

// Invalidator drops cached catalogue reads after a committed change.
type Invalidator func(ctx context.Context)

func noInvalidate(context.Context) {}

// CustomerHandler serves the purchase endpoints.  All methods assume that
// JWT authentication and the CUSTOMER role check already ran; every write
// goes through the reconciliation engine so it commits atomically.
type CustomerHandler struct {
	Engine       *service.Engine
	Reservations *repository.ReservationRepo
	Boxes        *repository.BoxRepo
	Invalidate   Invalidator
}

// NewCustomerHandler constructs a CustomerHandler.  A nil invalidator
// disables cache invalidation.
func NewCustomerHandler(engine *service.Engine, reservations *repository.ReservationRepo, boxes *repository.BoxRepo, inv Invalidator) *CustomerHandler {
	if engine == nil || reservations == nil || boxes == nil {
		panic("nil dependency passed to NewCustomerHandler")
	}
	if inv == nil {
		inv = noInvalidate
	}
	return &CustomerHandler{Engine: engine, Reservations: reservations, Boxes: boxes, Invalidate: inv}
}

// reconcileReq is the body of a save: boxes to add, boxes to release and,
// per box id, the content names to strip.
type reconcileReq struct {
	Add          []int64            `json:"add"`
	Rem          []int64            `json:"rem"`
	RemovedItems map[int64][]string `json:"removedItems"`
}

// Reconcile handles POST /api/purchases/reconcile.  On success it returns
// 200 with what was applied and the caller's holdings; a box someone else
// already owns yields 422 with the offending ids under "unavailable".
func (h *CustomerHandler) Reconcile(c echo.Context) error {
	id := acl.Classify(c)
	if err := acl.CanReconcile(id, id.Username); err != nil {
		return writeError(c, err)
	}
	var body reconcileReq
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.Reconcile(ctx, service.ReconcileRequest{
		Username:     id.Username,
		Add:          body.Add,
		Remove:       body.Rem,
		RemovedItems: body.RemovedItems,
	})
	if err != nil {
		return writeError(c, err)
	}
	h.Invalidate(ctx)
	return c.JSON(http.StatusOK, res)
}

// ListPurchases handles GET /api/purchases and returns the held boxes with
// their current contents.
func (h *CustomerHandler) ListPurchases(c echo.Context) error {
	id := acl.Classify(c)
	if err := acl.CanReconcile(id, id.Username); err != nil {
		return writeError(c, err)
	}
	ctx := c.Request().Context()
	ids, err := h.Reservations.ListBoxIDs(ctx, id.Username)
	if err != nil {
		return writeError(c, err)
	}
	boxes, err := h.Boxes.ListByIDs(ctx, ids)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"box_ids": ids, "boxes": boxes})
}

// DropAll handles DELETE /api/purchases: every held box is released in one
// transaction.
func (h *CustomerHandler) DropAll(c echo.Context) error {
	id := acl.Classify(c)
	if err := acl.CanReconcile(id, id.Username); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	released, err := h.Engine.ReleaseAll(ctx, id.Username)
	if err != nil {
		return writeError(c, err)
	}
	if len(released) > 0 {
		h.Invalidate(ctx)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// BoxesByIDs handles POST /api/boxes-by-ids with body {"ids": [...]}.
// Unknown ids are left out of the answer.
func (h *CustomerHandler) BoxesByIDs(c echo.Context) error {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	boxes, err := h.Boxes.ListByIDs(c.Request().Context(), body.IDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, boxes)
}
