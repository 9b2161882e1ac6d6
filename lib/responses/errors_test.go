package responses

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestClientErrorsNotAllowedForSentry(t *testing.T) {
	badRequest := echo.NewHTTPError(http.StatusBadRequest, BadArgumentsError)
	assert.False(t, isErrAllowedForSentry(badRequest))
	assert.False(t, isErrAllowedForSentry(fmt.Errorf("%w: bad address", service.ErrInvalidInput)))
	assert.False(t, isErrAllowedForSentry(service.ErrNotFound))
}

func TestServerErrorsAllowedForSentry(t *testing.T) {
	assert.True(t, isErrAllowedForSentry(errors.New("random error")))
	assert.True(t, isErrAllowedForSentry(fmt.Errorf("%w: timeout", service.ErrChain)))
	assert.True(t, isErrAllowedForSentry(echo.NewHTTPError(http.StatusBadGateway)))
}

func TestFromError(t *testing.T) {
	assert.Equal(t, 400, FromError(fmt.Errorf("%w: unknown state 9", service.ErrInvalidInput)).HttpStatusCode)
	assert.Equal(t, "invalid input: unknown state 9", FromError(fmt.Errorf("%w: unknown state 9", service.ErrInvalidInput)).Message)
	assert.Equal(t, NotFoundError, FromError(fmt.Errorf("find: %w", service.ErrNotFound)))
	assert.Equal(t, ChainUnavailableError, FromError(service.ErrChain))
	assert.Equal(t, GeneralServerError, FromError(service.ErrPersistence))
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(fmt.Errorf("%w: 0x1", service.ErrNotFound), c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":4`)

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	HTTPErrorHandler(echo.NewHTTPError(http.StatusUnauthorized, BadAuthError), c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad auth")
}
