package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/getAlby/evmhub.go/lib/tokens"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/ziflex/lecho/v3"
)

type stubEngine struct{}

func (stubEngine) CreateInvoice(ctx context.Context, receiver string, value float64, lifetimeSeconds uint64, action *uint32) (string, error) {
	return "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", nil
}

func (stubEngine) GetByState(ctx context.Context, code uint32) ([]*service.Invoice, error) {
	return []*service.Invoice{}, nil
}

func (stubEngine) GetByAction(ctx context.Context, code uint32) ([]*service.Invoice, error) {
	return []*service.Invoice{}, nil
}

func (stubEngine) GetByAddress(ctx context.Context, address string) (*service.Invoice, error) {
	return nil, service.ErrNotFound
}

func (stubEngine) ManualCheck(ctx context.Context, address string) (common.InvoiceState, error) {
	return common.InvoiceStateEmpty, nil
}

func TestRegisterEndpoints(t *testing.T) {
	logger := lecho.New(io.Discard, lecho.WithLevel(log.ERROR))
	c := &service.Config{DefaultRateLimit: 100, StrictRateLimit: 100, BurstRateLimit: 10, AdminToken: "secret"}
	e := InitEcho(c, logger)
	RegisterEndpoints(stubEngine{}, nil, e,
		CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit),
		tokens.AdminTokenMiddleware(c.AdminToken),
		CreateLoggingMiddleware(logger),
	)

	tests := []struct {
		method string
		path   string
		auth   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/get_by_status/0", "", http.StatusOK},
		{http.MethodGet, "/get_by_action/1", "", http.StatusOK},
		{http.MethodGet, "/get_by_address/0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "", http.StatusNotFound},
		{http.MethodGet, "/manual_check/0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "", http.StatusUnauthorized},
		{http.MethodGet, "/manual_check/0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "Bearer secret", http.StatusOK},
		{http.MethodPost, "/create_invoice", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.path)
	}
}
