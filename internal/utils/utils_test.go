package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGetRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "from-request")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.Equal(t, "from-request", GetRequestID(c))
	c.Response().Header().Set(echo.HeaderXRequestID, "from-middleware")
	assert.Equal(t, "from-middleware", GetRequestID(c))
	assert.Empty(t, GetTraceID(c))
}
