package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/service"
)

// respondError maps the service error taxonomy onto HTTP responses.
// Storage failures are logged and answered with a generic message.
func respondError(c echo.Context, log *logger.Logger, err error) error {
	var (
		ve *service.ValidationError
		ae *service.AuthError
		fe *service.ForbiddenError
		ce *service.ConflictError
		ne *service.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Message}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ae):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": ae.Error()})
	case errors.As(err, &fe):
		return c.JSON(http.StatusForbidden, echo.Map{"error": fe.Error()})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error()})
	case errors.As(err, &ne):
		return c.JSON(http.StatusNotFound, echo.Map{"error": ne.Error()})
	}
	log.WithContext(c.Request().Context()).Error("request failed",
		zap.String("path", c.Request().URL.Path), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
