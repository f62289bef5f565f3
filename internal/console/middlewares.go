package console

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nwl-centralize/backoffice/internal/transport"
	"github.com/nwl-centralize/backoffice/internal/utils"
)

// NoCaching sets headers in responses that prevent caching by the browser.
func NoCaching(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		headers := c.Response().Header()
		headers.Set("Expires", time.Unix(0, 0).Format(time.RFC1123))
		headers.Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
		headers.Set("X-Accel-Expires", "0")
		return next(c)
	}
}

// PropagateRequestID makes the backend calls of a console request carry its request ID.
func PropagateRequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := utils.GetRequestID(c)
		if requestID != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(transport.WithRequestID(req.Context(), requestID)))
		}
		return next(c)
	}
}
