package transport

import (
	"github.com/getAlby/evmhub.go/controllers"
	"github.com/labstack/echo/v4"
)

// RegisterEndpoints mounts the invoice routes. Mutating routes get the admin token
// and the strict rate limit; reads only the default limit.
func RegisterEndpoints(svc controllers.InvoiceEngine, db controllers.Pinger, e *echo.Echo, strictRateLimitMiddleware, adminMw, logMw echo.MiddlewareFunc) {
	invoiceCtrl := controllers.NewInvoiceController(svc)

	e.POST("/create_invoice", invoiceCtrl.CreateInvoice, adminMw, strictRateLimitMiddleware, logMw)
	e.GET("/manual_check/:address", invoiceCtrl.ManualCheck, adminMw, strictRateLimitMiddleware, logMw)
	e.GET("/get_by_status/:status", invoiceCtrl.GetByStatus, logMw)
	e.GET("/get_by_action/:action", invoiceCtrl.GetByAction, logMw)
	e.GET("/get_by_address/:address", invoiceCtrl.GetByAddress, logMw)
	e.GET("/health", controllers.NewHealthController(db).Check)
}
