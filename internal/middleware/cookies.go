package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-catalog/internal/service"
)

// Cookie names shared with the client runtime.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Cookies writes the session cookies.  Both are HttpOnly; MaxAge follows
// the token lifetimes so the browser drops an expired access token.
type Cookies struct {
	Secure bool
	Domain string
}

// SetSession writes both token cookies.
func (k Cookies) SetSession(c echo.Context, s service.Session) {
	now := time.Now()
	c.SetCookie(k.cookie(AccessCookie, s.Access.Token, s.Access.Exp.Sub(now)))
	c.SetCookie(k.cookie(RefreshCookie, s.Refresh.Token, s.Refresh.Exp.Sub(now)))
}

// Clear expires both token cookies.
func (k Cookies) Clear(c echo.Context) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		ck := k.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}

func (k Cookies) cookie(name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   k.Domain,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl / time.Second)
		ck.Expires = time.Now().Add(ttl)
	}
	return ck
}
