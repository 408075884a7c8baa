package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/logger"
	mw "github.com/iliyamo/product-catalog/internal/middleware"
	"github.com/iliyamo/product-catalog/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.  Tokens travel only
// in HttpOnly cookies; response bodies carry the public user fields.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies mw.Cookies
	Log     *logger.Logger
}

func NewAuthHandler(auth *service.AuthService, cookies mw.Cookies, log *logger.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: cookies, Log: log.Named("auth-handler")}
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register: create user and return its public fields.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.Register(ctx, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// Login: verify credentials and set both session cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Cookies.SetSession(c, sess)
	return c.JSON(http.StatusOK, echo.Map{"user": sess.User})
}

// Refresh: rotate the session.  The refresh token comes from its cookie,
// or from a JSON body for non-browser clients.  Failures set no cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(mw.RefreshCookie); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Cookies.SetSession(c, sess)
	return c.JSON(http.StatusOK, echo.Map{"user": sess.User})
}

// Logout: revoke the refresh token if any and clear both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(mw.RefreshCookie); err == nil && ck.Value != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		h.Auth.Logout(ctx, ck.Value)
	}
	h.Cookies.Clear(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me: return the authenticated user.  Runs behind JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.Auth.CurrentUser(c.Request().Context(), mw.UserID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
