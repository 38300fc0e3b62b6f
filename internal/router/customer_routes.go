package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/handler"
	"github.com/iliyamo/food-box-reservation/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /api.  All
// routes require a valid JWT and the CUSTOMER role.  Saving a selection is
// additionally rate limited.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	g.POST("/purchases/reconcile", h.Reconcile, limiter)
	g.GET("/purchases", h.ListPurchases)
	g.DELETE("/purchases", h.DropAll)
	g.POST("/boxes-by-ids", h.BoxesByIDs)
}
