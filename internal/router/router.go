package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4" // the Echo web framework handles routing
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/food-box-reservation/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/food-box-reservation/internal/middleware" // JWT authentication, role enforcement and caching
)

// RegisterRoutes registers the operational endpoints: a health check that
// pings the database and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes.  Register,
// login, refresh and logout need no session; /me requires a valid access
// token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// revokes the refresh token in the body, or every token of the bearer
	g.POST("/logout", a.Logout)

	g.GET("/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN", "OWNER", "CUSTOMER"),
	)
}

// RegisterPublic registers the unauthenticated catalogue.  The cache
// middleware is applied per group so that only these reads are cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/api", cache)
	g.GET("/shops", p.ListShops)
	g.GET("/boxes", p.ListBoxes)
	g.GET("/boxes/:shopId", p.BoxesByShop)
	g.GET("/shops/by-name/:name/boxes", p.BoxesByShopName)
	g.GET("/items", p.ListItems)
}
