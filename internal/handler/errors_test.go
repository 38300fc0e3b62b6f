package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/food-box-reservation/internal/acl"
	"github.com/iliyamo/food-box-reservation/internal/model"
	"github.com/iliyamo/food-box-reservation/internal/repository"
	"github.com/iliyamo/food-box-reservation/internal/service"
)

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad ids", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: size", model.ErrInvalidBox), http.StatusBadRequest},
		{acl.ErrUnauthenticated, http.StatusUnauthorized},
		{acl.ErrForbidden, http.StatusForbidden},
		{repository.ErrForbidden, http.StatusForbidden},
		{&service.RemovalCapError{BoxID: 1, Requested: []string{"a", "b", "c"}}, http.StatusUnprocessableEntity},
		{&service.NotFoundError{BoxIDs: []int64{9}}, http.StatusUnprocessableEntity},
		{service.ErrNotHeld, http.StatusUnprocessableEntity},
		{&service.ExpiredError{BoxIDs: []int64{9}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: [caviar]", repository.ErrUnknownItems), http.StatusUnprocessableEntity},
		{repository.ErrShopNotFound, http.StatusNotFound},
		{repository.ErrConflict, http.StatusConflict},
		{repository.ErrUsernameExists, http.StatusConflict},
		{&service.StorageError{Op: "insert reservations", Err: errors.New("disk I/O error")}, http.StatusInternalServerError},
		{service.ErrInvariant, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
			require.NoError(t, writeError(c, tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"errors":[`)
		})
	}
}

func TestWriteErrorUnavailableCarriesIDs(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	require.NoError(t, writeError(c, &service.UnavailableError{BoxIDs: []int64{42}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"errors":["box 42 is no longer available"],"unavailable":[42]}`, rec.Body.String())
}

func TestWriteErrorHidesStorageDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	require.NoError(t, writeError(c, &service.StorageError{Op: "sync ownership", Err: errors.New("secret dsn leaked")}))
	assert.NotContains(t, rec.Body.String(), "secret")
}
