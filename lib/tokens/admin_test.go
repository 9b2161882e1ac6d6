package tokens

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serve(mw echo.MiddlewareFunc, authorization string) int {
	e := echo.New()
	e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminTokenMiddleware(t *testing.T) {
	mw := AdminTokenMiddleware("secret")
	assert.Equal(t, http.StatusOK, serve(mw, "Bearer secret"))
	assert.Equal(t, http.StatusUnauthorized, serve(mw, "Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, serve(mw, ""))
}

func TestAdminTokenMiddlewareDisabled(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(AdminTokenMiddleware(""), ""))
}
