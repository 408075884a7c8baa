package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/model"
	"github.com/iliyamo/product-catalog/internal/service"
)

// Authenticator is the part of the auth service the middleware needs.
type Authenticator interface {
	Authenticate(accessToken string) (service.Principal, error)
	Refresh(ctx context.Context, refreshToken string) (service.Session, error)
}

// JWTAuth returns an Echo middleware that validates the access token and
// stores the caller's id and role in the context, where handlers read
// them with UserID and Role.
//
// The token comes from the Authorization header ("Bearer ...") or the
// accessToken cookie.  When neither is present but a refreshToken cookie
// is, the session is renewed on the spot: fresh cookies are written and
// the request proceeds.  A present but invalid access token is rejected
// with 401 so the client can run its own refresh.
func JWTAuth(auth Authenticator, cookies Cookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c.Request())
			if raw == "" {
				if ck, err := c.Cookie(AccessCookie); err == nil {
					raw = ck.Value
				}
			}

			if raw != "" {
				p, err := auth.Authenticate(raw)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				setPrincipal(c, p.UserID, p.Role)
				return next(c)
			}

			ck, err := c.Cookie(RefreshCookie)
			if err != nil || ck.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
			}
			sess, err := auth.Refresh(c.Request().Context(), ck.Value)
			if err != nil {
				cookies.Clear(c)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}
			cookies.SetSession(c, sess)
			setPrincipal(c, sess.User.ID, sess.User.RoleID)
			return next(c)
		}
	}
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func setPrincipal(c echo.Context, id uint64, role model.Role) {
	c.Set(ctxUserID, id)
	c.Set(ctxRole, role)
	req := c.Request()
	c.SetRequest(req.WithContext(logger.ContextWithUserID(req.Context(), id)))
}
