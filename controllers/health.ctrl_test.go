package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) PingContext(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/health", NewHealthController(pinger{}).Check)
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"OK"}`, rec.Body.String())

	e = echo.New()
	e.GET("/health", NewHealthController(pinger{err: errors.New("down")}).Check)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/health", "").Code)
}
