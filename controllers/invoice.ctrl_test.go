package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/lib"
	"github.com/getAlby/evmhub.go/lib/responses"
	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testAddress  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testReceiver = "0x00000000219ab540356cBB839Cbe05303d7705Fa"
)

type fakeEngine struct {
	createErr   error
	gotReceiver string
	gotLifetime uint64
	gotAction   *uint32
	invoices    []*service.Invoice
	err         error
}

func (f *fakeEngine) CreateInvoice(ctx context.Context, receiver string, value float64, lifetimeSeconds uint64, action *uint32) (string, error) {
	f.gotReceiver = receiver
	f.gotLifetime = lifetimeSeconds
	f.gotAction = action
	if f.createErr != nil {
		return "", f.createErr
	}
	return testAddress, nil
}

func (f *fakeEngine) GetByState(ctx context.Context, code uint32) ([]*service.Invoice, error) {
	if code > 4 {
		return nil, fmt.Errorf("%w: unknown state %d", service.ErrInvalidInput, code)
	}
	return f.invoices, f.err
}

func (f *fakeEngine) GetByAction(ctx context.Context, code uint32) ([]*service.Invoice, error) {
	return f.invoices, f.err
}

func (f *fakeEngine) GetByAddress(ctx context.Context, address string) (*service.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoices[0], nil
}

func (f *fakeEngine) ManualCheck(ctx context.Context, address string) (common.InvoiceState, error) {
	return common.InvoiceStateIncomplete, f.err
}

func newTestEcho(engine InvoiceEngine) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	ctrl := NewInvoiceController(engine)
	e.POST("/create_invoice", ctrl.CreateInvoice)
	e.GET("/get_by_status/:status", ctrl.GetByStatus)
	e.GET("/get_by_action/:action", ctrl.GetByAction)
	e.GET("/get_by_address/:address", ctrl.GetByAddress)
	e.GET("/manual_check/:address", ctrl.ManualCheck)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func testInvoice(t *testing.T) *service.Invoice {
	invoice, err := service.LoadInvoice(testMnemonic, testReceiver, 1.5, common.InvoiceStateComplete, 1_700_000_000, common.InvoiceActionSendToReceiver)
	require.NoError(t, err)
	return invoice
}

func TestCreateInvoice(t *testing.T) {
	engine := &fakeEngine{}
	e := newTestEcho(engine)

	rec := do(e, http.MethodPost, "/create_invoice", fmt.Sprintf(`{"receiver":%q,"value":1.0,"lifetime":3600,"action":0}`, testReceiver))
	require.Equal(t, http.StatusOK, rec.Code)
	body := &CreateInvoiceResponseBody{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(body))
	assert.Equal(t, testAddress, body.Address)
	assert.Equal(t, testReceiver, engine.gotReceiver)
	assert.Equal(t, uint64(3600), engine.gotLifetime)
	require.NotNil(t, engine.gotAction)
	assert.Equal(t, uint32(0), *engine.gotAction)

	rec = do(e, http.MethodPost, "/create_invoice", fmt.Sprintf(`{"receiver":%q,"value":1.0,"lifetime":3600}`, testReceiver))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, engine.gotAction)
}

func TestCreateInvoiceBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"bad receiver", `{"receiver":"0x123","value":1,"lifetime":60}`},
		{"missing value", fmt.Sprintf(`{"receiver":%q,"lifetime":60}`, testReceiver)},
		{"negative value", fmt.Sprintf(`{"receiver":%q,"value":-1,"lifetime":60}`, testReceiver)},
		{"missing lifetime", fmt.Sprintf(`{"receiver":%q,"value":1}`, testReceiver)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestEcho(&fakeEngine{}), http.MethodPost, "/create_invoice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	engine := &fakeEngine{createErr: fmt.Errorf("%w: unknown action 5", service.ErrInvalidInput)}
	rec := do(newTestEcho(engine), http.MethodPost, "/create_invoice", fmt.Sprintf(`{"receiver":%q,"value":1,"lifetime":60,"action":5}`, testReceiver))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown action 5")
}

func TestGetByStatus(t *testing.T) {
	invoice := testInvoice(t)
	e := newTestEcho(&fakeEngine{invoices: []*service.Invoice{invoice}})

	rec := do(e, http.MethodGet, "/get_by_status/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "abandon")

	response := []map[string]interface{}{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.Equal(t, testAddress, response[0]["address"])
	assert.Equal(t, "complete", response[0]["state"])
	assert.Equal(t, "send_to_receiver", response[0]["complete_action"])
	assert.Equal(t, 1.5, response[0]["value"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/get_by_status/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/get_by_status/-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/get_by_status/9", "").Code)
}

func TestGetByAction(t *testing.T) {
	e := newTestEcho(&fakeEngine{invoices: []*service.Invoice{}})
	rec := do(e, http.MethodGet, "/get_by_action/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetByAddress(t *testing.T) {
	e := newTestEcho(&fakeEngine{invoices: []*service.Invoice{testInvoice(t)}})
	rec := do(e, http.MethodGet, "/get_by_address/"+testAddress, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"expires_at":"2023-11-14T22:13:20Z"`)

	e = newTestEcho(&fakeEngine{err: fmt.Errorf("%w: %s", service.ErrNotFound, testAddress)})
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/get_by_address/"+testAddress, "").Code)
}

func TestManualCheck(t *testing.T) {
	e := newTestEcho(&fakeEngine{})
	rec := do(e, http.MethodGet, "/manual_check/"+strings.ToLower(testAddress), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"address":%q,"state":"incomplete"}`, testAddress), rec.Body.String())

	e = newTestEcho(&fakeEngine{err: fmt.Errorf("%w: rpc down", service.ErrChain)})
	assert.Equal(t, http.StatusBadGateway, do(e, http.MethodGet, "/manual_check/"+testAddress, "").Code)
}
