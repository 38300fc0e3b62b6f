// Package acl decides which caller may touch which rows.  It reads the
// identity JWTAuth stored on the echo context and never hits the database.
package acl

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/food-box-reservation/internal/middleware"
	"github.com/iliyamo/food-box-reservation/internal/model"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// Kind is the class of a caller.
type Kind int

const (
	Anonymous Kind = iota
	Customer
	ShopOwner
	Admin
)

func (k Kind) String() string {
	switch k {
	case Customer:
		return "customer"
	case ShopOwner:
		return "shop_owner"
	case Admin:
		return "admin"
	}
	return "anonymous"
}

// Identity is who is calling.  ShopID is only meaningful for ShopOwner.
type Identity struct {
	Kind     Kind
	Username string
	ShopID   int64
}

// Classify maps the claims on c to an Identity.  An owner token without a
// shop id classifies as Anonymous: it cannot be scoped to any row.
func Classify(c echo.Context) Identity {
	username, _ := c.Get(middleware.CtxUserID).(string)
	role, _ := c.Get(middleware.CtxRole).(string)
	if username == "" {
		return Identity{}
	}
	switch role {
	case model.RoleCustomer:
		return Identity{Kind: Customer, Username: username}
	case model.RoleAdmin:
		return Identity{Kind: Admin, Username: username}
	case model.RoleOwner:
		if shopID, ok := c.Get(middleware.CtxShopID).(int64); ok && shopID > 0 {
			return Identity{Kind: ShopOwner, Username: username, ShopID: shopID}
		}
	}
	return Identity{}
}

// CanReconcile allows a customer to change their own reservations only.
func CanReconcile(id Identity, username string) error {
	switch {
	case id.Kind == Anonymous:
		return ErrUnauthenticated
	case id.Kind != Customer || id.Username != username:
		return ErrForbidden
	}
	return nil
}

// CanManageShop allows admins everywhere and owners on their own shop.
func CanManageShop(id Identity, shopID int64) error {
	switch id.Kind {
	case Anonymous:
		return ErrUnauthenticated
	case Admin:
		return nil
	case ShopOwner:
		if id.ShopID == shopID {
			return nil
		}
	}
	return ErrForbidden
}

// ShopScope returns the shop an identity is confined to: nil for admins,
// the owner's shop for owners.  Other kinds get ErrForbidden.
func ShopScope(id Identity) (*int64, error) {
	switch id.Kind {
	case Anonymous:
		return nil, ErrUnauthenticated
	case Admin:
		return nil, nil
	case ShopOwner:
		shop := id.ShopID
		return &shop, nil
	}
	return nil, ErrForbidden
}
