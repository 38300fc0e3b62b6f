package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/food-box-reservation/internal/utils"
)

// Context keys written by JWTAuth and read by handlers and the ACL gate.
const (
	CtxUserID = "user_id" // username (JWT sub)
	CtxRole   = "role"    // ADMIN, OWNER or CUSTOMER
	CtxShopID = "shop_id" // int64, only set for shop owners
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and shop claims into the request
// context.  The provided secret must match the one used when issuing tokens.
// Handlers read the values via c.Get(CtxUserID), c.Get(CtxRole) and
// c.Get(CtxShopID).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// HS256 only; expired tokens and tokens without exp are rejected.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxRole, claims.Role)
			if claims.ShopID != nil && *claims.ShopID > 0 {
				c.Set(CtxShopID, *claims.ShopID)
			}
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"errors": []string{msg}})
}
