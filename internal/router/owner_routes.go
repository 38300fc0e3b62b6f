package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/handler"    // owner and admin handlers
	"github.com/iliyamo/food-box-reservation/internal/middleware" // JWT + role middlewares
)

// RegisterOwner registers OWNER-scoped endpoints under /api/owner.  Every
// handler confines itself to the shop carried in the token.
func RegisterOwner(e *echo.Echo, b *handler.BoxAdminHandler, jwtSecret string) {
	g := e.Group(
		"/api/owner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("OWNER"),
	)
	g.GET("/shop", b.MyShop)
	g.GET("/boxes", b.MyBoxes)
	g.POST("/boxes", b.CreateBox)
	g.DELETE("/boxes/:id", b.DeleteBox)
	// force-cancel whatever customer holds the box
	g.DELETE("/boxes/:id/reservation", b.CancelReservation)
}

// RegisterAdmin registers ADMIN endpoints under /api/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, b *handler.BoxAdminHandler, jwtSecret string) {
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)
	g.POST("/shops", a.CreateShop)
	g.POST("/items", a.CreateItem)
	g.POST("/users", a.CreateUser)
	g.POST("/shops/:id/boxes/:boxId", a.AssignBox)

	g.POST("/boxes", b.CreateBox)
	g.DELETE("/boxes/:id", b.DeleteBox)
	g.DELETE("/boxes/:id/reservation", b.CancelReservation)
}
