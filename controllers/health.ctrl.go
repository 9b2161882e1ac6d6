package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *bun.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	db Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

type HealthResponse struct {
	Result string `json:"result"`
}

// Check reports OK when the database answers in time.
func (controller *HealthController) Check(c echo.Context) error {
	if controller.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := controller.db.PingContext(ctx); err != nil {
			c.Logger().Errorf("health check failed: %v", err)
			return c.JSON(http.StatusServiceUnavailable, &HealthResponse{Result: "DB_UNAVAILABLE"})
		}
	}
	return c.JSON(http.StatusOK, &HealthResponse{
		Result: "OK",
	})
}
