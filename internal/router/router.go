package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/product-catalog/internal/config"
	"github.com/iliyamo/product-catalog/internal/handler"
	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/middleware"
	"github.com/iliyamo/product-catalog/internal/model"
)

// Deps carries everything the routes need.  Redis may be nil, in which
// case caching and rate limiting are disabled.
type Deps struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Products  *handler.ProductHandler
	Readiness handler.Readiness

	Authenticator middleware.Authenticator
	Cookies       middleware.Cookies
	CORSOrigins   []string
	Cache         config.CacheConfig
	RateLimit     config.RateLimitConfig
	Redis         *redis.Client
	Log           *logger.Logger
}

// route is one entry of the registration table.
type route struct {
	method string
	path   string
	h      echo.HandlerFunc
	mw     []echo.MiddlewareFunc
}

// New builds the Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.CORSOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestLogger(d.Log))

	Register(e, d)
	return e
}

// Register adds the static route table to e.  Groups are not used so the
// full path and middleware chain of each endpoint are visible in one place.
func Register(e *echo.Echo, d Deps) {
	for _, r := range routes(d) {
		e.Add(r.method, r.path, r.h, r.mw...)
	}
}

func routes(d Deps) []route {
	jwt := middleware.JWTAuth(d.Authenticator, d.Cookies)
	admin := middleware.RequireRole(model.RoleAdmin)
	anyRole := middleware.RequireRole(model.RoleAdmin, model.RoleMember)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	invalidate := middleware.InvalidateCache(d.Cache, d.Redis, d.Log)

	read := []echo.MiddlewareFunc{jwt, anyRole, cache}
	write := []echo.MiddlewareFunc{jwt, admin, invalidate}

	return []route{
		// operations
		{http.MethodGet, "/healthz", d.Readiness.Check, nil},
		{http.MethodGet, "/api/health", handler.Health, nil},
		{http.MethodGet, "/metrics", echo.WrapHandler(promhttp.Handler()), nil},

		// auth
		{http.MethodPost, "/api/auth/register", d.Auth.Register, []echo.MiddlewareFunc{limit}},
		{http.MethodPost, "/api/auth/login", d.Auth.Login, []echo.MiddlewareFunc{limit}},
		{http.MethodPost, "/api/auth/refresh", d.Auth.Refresh, nil},
		{http.MethodPost, "/api/auth/logout", d.Auth.Logout, nil},
		{http.MethodGet, "/api/auth/me", d.Auth.Me, []echo.MiddlewareFunc{jwt, anyRole}},

		// users
		{http.MethodPut, "/api/users", d.Users.UpdateProfile, []echo.MiddlewareFunc{jwt, anyRole}},

		// products
		{http.MethodGet, "/api/product", d.Products.List, read},
		{http.MethodGet, "/api/product/all-product", d.Products.Search, read},
		{http.MethodGet, "/api/product/:id", d.Products.Get, read},
		{http.MethodPost, "/api/product", d.Products.Create, write},
		{http.MethodPut, "/api/product/:id", d.Products.Update, write},
		{http.MethodDelete, "/api/product/:id", d.Products.Delete, write},
	}
}
