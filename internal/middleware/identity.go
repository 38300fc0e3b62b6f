package middleware

// identity.go holds the helper that turns the values JWTAuth stored in the
// Echo context into a key component for the rate limiter and request log.

import (
	"github.com/labstack/echo/v4"
)

// userID returns the authenticated username, or "guest" when the request
// carries no token.
func userID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(string); ok && v != "" {
		return v
	}
	return "guest"
}
