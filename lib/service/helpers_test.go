package service

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/chain/mock_chain"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/db/models"
	"github.com/golang/mock/gomock"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

const testReceiver = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

var oneEther = big.NewInt(1_000_000_000_000_000_000)

// memoryStore keeps rows the way the database would, so decoding runs on every read.
type memoryStore struct {
	mu      sync.Mutex
	order   []string
	rows    map[string]models.Invoice
	updates int

	updateErr      error
	findPendingErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]models.Invoice{}}
}

func (s *memoryStore) list(match func(row models.Invoice) bool) ([]*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []*Invoice{}
	for _, address := range s.order {
		row := s.rows[address]
		if !match(row) {
			continue
		}
		invoice, _, err := invoiceFromModel(&row)
		if err != nil {
			continue
		}
		result = append(result, invoice)
	}
	return result, nil
}

func (s *memoryStore) FindPending(ctx context.Context) ([]*Invoice, error) {
	if s.findPendingErr != nil {
		return nil, s.findPendingErr
	}
	return s.list(func(row models.Invoice) bool {
		return row.State != common.InvoiceStateRejected.Code() && row.State != common.InvoiceStateSent.Code()
	})
}

func (s *memoryStore) FindByState(ctx context.Context, state common.InvoiceState) ([]*Invoice, error) {
	return s.list(func(row models.Invoice) bool { return row.State == state.Code() })
}

func (s *memoryStore) FindByAction(ctx context.Context, action common.InvoiceAction) ([]*Invoice, error) {
	return s.list(func(row models.Invoice) bool { return row.CompleteAction == action.Code() })
}

func (s *memoryStore) FindByAddress(ctx context.Context, address ethcommon.Address) (*Invoice, error) {
	s.mu.Lock()
	row, ok := s.rows[address.Hex()]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	invoice, _, err := invoiceFromModel(&row)
	return invoice, err
}

func (s *memoryStore) Insert(ctx context.Context, invoice *Invoice) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := invoice.toModel()
	if _, ok := s.rows[row.Address]; ok {
		return nil, errors.New("duplicate key")
	}
	row.CreatedAt = time.Now()
	s.rows[row.Address] = *row
	s.order = append(s.order, row.Address)
	inserted, _, err := invoiceFromModel(row)
	return inserted, err
}

func (s *memoryStore) UpdateState(ctx context.Context, address ethcommon.Address, state common.InvoiceState) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	row, ok := s.rows[address.Hex()]
	if !ok {
		return nil, ErrNotFound
	}
	s.updates++
	row.State = state.Code()
	s.rows[address.Hex()] = row
	updated, _, err := invoiceFromModel(&row)
	return updated, err
}

func (s *memoryStore) RecordSweep(ctx context.Context, address ethcommon.Address, txHash, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[address.Hex()]
	if !ok {
		return ErrNotFound
	}
	row.TxHash = txHash
	row.ErrorMessage = errorMessage
	s.rows[address.Hex()] = row
	return nil
}

func (s *memoryStore) row(address ethcommon.Address) models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[address.Hex()]
}

func testConfig() *Config {
	return &Config{
		MaxAllowedGas:        NewWeiAmount(1_000_000_000_000_000), // 0.001 ether
		MaxPriorityFee:       NewWeiAmount(1_000_000_000),
		MinSendAmount:        NewWeiAmount(500_000),
		Confirmations:        2,
		InvoiceCheckInterval: 60,
		MaxInvoiceLifetime:   2592000,
	}
}

func testLogger() *lecho.Logger {
	return lecho.New(io.Discard, lecho.WithLevel(log.DEBUG))
}

type fixture struct {
	svc    *InvoiceService
	store  *memoryStore
	client *mock_chain.MockClient
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		store:  newMemoryStore(),
		client: mock_chain.NewMockClient(ctrl),
		now:    time.Unix(1_700_000_000, 0),
	}
	f.svc = NewInvoiceService(testConfig(), f.store, f.client, testLogger())
	f.svc.Clock = func() time.Time { return f.now }
	return f
}

// insert stores a fresh invoice of value ether and returns its stored form.
func (f *fixture) insert(t *testing.T, value float64, lifetimeSeconds uint64, action common.InvoiceAction) *Invoice {
	t.Helper()
	invoice, err := NewInvoice(testReceiver, value, lifetimeSeconds, action, f.now)
	require.NoError(t, err)
	stored, err := f.store.Insert(context.Background(), invoice)
	require.NoError(t, err)
	return stored
}
