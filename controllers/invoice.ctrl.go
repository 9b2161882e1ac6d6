package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/lib/responses"
	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/labstack/echo/v4"
)

// InvoiceEngine is implemented by *service.InvoiceService.
type InvoiceEngine interface {
	CreateInvoice(ctx context.Context, receiver string, value float64, lifetimeSeconds uint64, action *uint32) (string, error)
	GetByState(ctx context.Context, code uint32) ([]*service.Invoice, error)
	GetByAction(ctx context.Context, code uint32) ([]*service.Invoice, error)
	GetByAddress(ctx context.Context, address string) (*service.Invoice, error)
	ManualCheck(ctx context.Context, address string) (common.InvoiceState, error)
}

// InvoiceController : invoice controller struct
type InvoiceController struct {
	svc InvoiceEngine
}

func NewInvoiceController(svc InvoiceEngine) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type CreateInvoiceRequestBody struct {
	Receiver string  `json:"receiver" validate:"required,eth_addr"`
	Value    float64 `json:"value" validate:"required,gt=0"`
	Lifetime uint64  `json:"lifetime" validate:"required,gt=0"`
	Action   *uint32 `json:"action"`
}

type CreateInvoiceResponseBody struct {
	Address string `json:"address"`
}

type ManualCheckResponseBody struct {
	Address string              `json:"address"`
	State   common.InvoiceState `json:"state"`
}

// Invoice is the public view of an invoice, it never carries key material.
type Invoice struct {
	Address        string               `json:"address"`
	Receiver       string               `json:"receiver"`
	Value          float64              `json:"value"`
	Lifetime       int64                `json:"lifetime"`
	ExpiresAt      time.Time            `json:"expires_at"`
	State          common.InvoiceState  `json:"state"`
	CompleteAction common.InvoiceAction `json:"complete_action"`
	TxHash         string               `json:"tx_hash,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
}

func toResponse(invoice *service.Invoice) Invoice {
	return Invoice{
		Address:        invoice.Address.Hex(),
		Receiver:       invoice.Receiver.Hex(),
		Value:          invoice.Value,
		Lifetime:       invoice.Lifetime,
		ExpiresAt:      time.Unix(invoice.Lifetime, 0).UTC(),
		State:          invoice.State,
		CompleteAction: invoice.CompleteAction,
		TxHash:         invoice.TxHash,
		ErrorMessage:   invoice.ErrorMessage,
	}
}

func toResponses(invoices []*service.Invoice) []Invoice {
	response := make([]Invoice, len(invoices))
	for i, invoice := range invoices {
		response[i] = toResponse(invoice)
	}
	return response
}

// CreateInvoice : POST /create_invoice
func (controller *InvoiceController) CreateInvoice(c echo.Context) error {
	var body CreateInvoiceRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	address, err := controller.svc.CreateInvoice(c.Request().Context(), body.Receiver, body.Value, body.Lifetime, body.Action)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &CreateInvoiceResponseBody{Address: address})
}

// GetByStatus : GET /get_by_status/:status
func (controller *InvoiceController) GetByStatus(c echo.Context) error {
	code, err := codeParam(c, "status")
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoices, err := controller.svc.GetByState(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponses(invoices))
}

// GetByAction : GET /get_by_action/:action
func (controller *InvoiceController) GetByAction(c echo.Context) error {
	code, err := codeParam(c, "action")
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoices, err := controller.svc.GetByAction(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponses(invoices))
}

// GetByAddress : GET /get_by_address/:address
func (controller *InvoiceController) GetByAddress(c echo.Context) error {
	invoice, err := controller.svc.GetByAddress(c.Request().Context(), c.Param("address"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(invoice))
}

// ManualCheck : GET /manual_check/:address
func (controller *InvoiceController) ManualCheck(c echo.Context) error {
	address := c.Param("address")
	state, err := controller.svc.ManualCheck(c.Request().Context(), address)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &ManualCheckResponseBody{Address: ethcommon.HexToAddress(address).Hex(), State: state})
}

func codeParam(c echo.Context, name string) (uint32, error) {
	code, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(code), nil
}
