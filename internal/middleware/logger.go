package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
	"github.com/iliyamo/product-catalog/internal/metrics"
)

// RequestLogger logs one line per request and records the HTTP metrics.
// It must run after echo's RequestID middleware; the request id is also
// placed in the request context for service-level logs.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = req.Header.Get(echo.HeaderXRequestID)
			}
			if rid != "" {
				c.SetRequest(req.WithContext(logger.ContextWithRequestID(req.Context(), rid)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPLatency.WithLabelValues(req.Method, route).Observe(elapsed.Seconds())

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
				zap.String("remote_ip", c.RealIP()),
			}
			l := log.WithContext(c.Request().Context())
			switch {
			case status >= 500:
				l.Error("request", fields...)
			case status >= 400:
				l.Warn("request", fields...)
			default:
				l.Info("request", fields...)
			}
			return nil
		}
	}
}
