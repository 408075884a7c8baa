// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when an insert or update collides with the
// unique username or email index.
var ErrUserExists = errors.New("username or email already exists")

// ErrProductNotFound is returned when a product id does not resolve.
var ErrProductNotFound = errors.New("product not found")

// ErrConflict is returned when a write was computed from state that
// changed underneath it. Services translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
