package responses

import (
	"errors"
	"net/http"

	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var NotFoundError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "invoice not found",
	HttpStatusCode: 404,
}

var ChainUnavailableError = ErrorResponse{
	Error:          true,
	Code:           7,
	Message:        "chain node unavailable. Please try again later",
	HttpStatusCode: 502,
}

// FromError maps the engine's error kinds to API responses; anything unknown is a server error.
func FromError(err error) ErrorResponse {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		resp := BadArgumentsError
		resp.Message = err.Error()
		return resp
	case errors.Is(err, service.ErrNotFound):
		return NotFoundError
	case errors.Is(err, service.ErrChain):
		return ChainUnavailableError
	default:
		return GeneralServerError
	}
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("Path", c.Path())
			hub.CaptureException(err)
		})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		c.JSON(he.Code, he.Message)
		return
	}
	resp := FromError(err)
	c.JSON(resp.HttpStatusCode, resp)
}

// client errors are not reported
func isErrAllowedForSentry(err error) bool {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, service.ErrInvalidInput) && !errors.Is(err, service.ErrNotFound)
}
