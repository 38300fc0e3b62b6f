package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/food-box-reservation/internal/acl"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository"
	"github.com/iliyamo/food-box-reservation/internal/service"
)

// errorBody is the single error envelope of the API.
type errorBody struct {
	Errors      []string `json:"errors"`
	Unavailable []int64  `json:"unavailable,omitempty"`
}

func fail(c echo.Context, status int, msgs ...string) error {
	return c.JSON(status, errorBody{Errors: msgs})
}

// writeError maps domain and storage errors to a status code and the error
// envelope.  Unexpected errors are logged and answered with a generic 500.
func writeError(c echo.Context, err error) error {
	var unavailable *service.UnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusUnprocessableEntity, errorBody{
			Errors:      []string{err.Error()},
			Unavailable: unavailable.BoxIDs,
		})
	}

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, model.ErrInvalidBox):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, acl.ErrUnauthenticated):
		return fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, acl.ErrForbidden), errors.Is(err, repository.ErrForbidden):
		return fail(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrRemovalCap),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNotHeld),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, repository.ErrUnknownItems):
		return fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, repository.ErrBoxNotFound), errors.Is(err, repository.ErrShopNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrShopExists),
		errors.Is(err, repository.ErrItemExists),
		errors.Is(err, repository.ErrUsernameExists):
		return fail(c, http.StatusConflict, err.Error())
	}

	zap.L().Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return fail(c, http.StatusInternalServerError, "internal error, please retry")
}

// pathID parses a positive int64 path parameter.  The error maps to 400.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", service.ErrValidation, name, c.Param(name))
	}
	return id, nil
}
