package middleware

import "github.com/labstack/echo/v4"

// SecurityHeaders sets conservative response headers. Clinical payloads must
// never be cached by intermediaries.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			return next(c)
		}
	}
}
