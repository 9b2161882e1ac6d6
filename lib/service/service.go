package service

import (
	"sync"
	"time"

	"github.com/getAlby/evmhub.go/chain"
	"github.com/ziflex/lecho/v3"
)

// InvoiceService is the invoice lifecycle engine. Every state mutation, whether
// triggered by the reconciliation loop or by a manual check, runs under mu.
type InvoiceService struct {
	Config        *Config
	Store         InvoiceStore
	ChainClient   chain.Client
	Logger        *lecho.Logger
	InvoicePubSub *Pubsub
	Metrics       *Metrics
	// Clock defaults to time.Now
	Clock func() time.Time

	mu sync.Mutex
	// guarded by mu
	stopped bool
	stopCh  chan struct{}
}

func NewInvoiceService(config *Config, store InvoiceStore, client chain.Client, logger *lecho.Logger) *InvoiceService {
	return &InvoiceService{
		Config:        config,
		Store:         store,
		ChainClient:   client,
		Logger:        logger,
		InvoicePubSub: NewPubsub(),
	}
}

func (svc *InvoiceService) now() time.Time {
	if svc.Clock != nil {
		return svc.Clock()
	}
	return time.Now()
}
