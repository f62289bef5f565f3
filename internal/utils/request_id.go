package utils

import "github.com/labstack/echo/v4"

// GetRequestID returns the ID set by the request ID middleware.
func GetRequestID(c echo.Context) string {
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	if id == "" {
		id = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	return id
}
