package middleware

// identity.go holds the context keys the auth middleware fills and the
// accessors handlers and other middleware read them with.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/model"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id, or 0.
func UserID(c echo.Context) uint64 {
	v, _ := c.Get(ctxUserID).(uint64)
	return v
}

// Role returns the authenticated user's role, or 0.
func Role(c echo.Context) model.Role {
	v, _ := c.Get(ctxRole).(model.Role)
	return v
}

// userKey identifies the caller for rate-limit keys: the user id, or
// "anon" when nobody is authenticated.
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
