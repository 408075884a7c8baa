package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/logger"
	mw "github.com/iliyamo/product-catalog/internal/middleware"
	"github.com/iliyamo/product-catalog/internal/service"
)

// UserHandler serves profile updates of the authenticated user.
type UserHandler struct {
	Auth *service.AuthService
	Log  *logger.Logger
}

func NewUserHandler(auth *service.AuthService, log *logger.Logger) *UserHandler {
	return &UserHandler{Auth: auth, Log: log.Named("user-handler")}
}

// UpdateProfile: PUT /api/users
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req service.ProfileInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := service.Principal{UserID: mw.UserID(c), Role: mw.Role(c)}
	u, err := h.Auth.UpdateProfile(ctx, caller, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
