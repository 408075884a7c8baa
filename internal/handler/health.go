package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health is a liveness endpoint used by load balancers.  It never touches
// a dependency.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Readiness reports the state of the database and of Redis.  Redis is
// optional: a nil client is reported as "disabled".
type Readiness struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (r Readiness) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := echo.Map{"status": "ok"}, http.StatusOK
	if r.DB == nil || r.DB.PingContext(ctx) != nil {
		status["db"], status["status"], code = "down", "degraded", http.StatusServiceUnavailable
	} else {
		status["db"] = "ok"
	}
	switch {
	case r.Redis == nil:
		status["redis"] = "disabled"
	case r.Redis.Ping(ctx).Err() != nil:
		status["redis"] = "down"
	default:
		status["redis"] = "ok"
	}
	return c.JSON(code, status)
}
