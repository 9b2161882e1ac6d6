package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/common"
)

// CreateInvoice persists a new Empty invoice and returns its receive address.
// A nil action means Nothing.
func (svc *InvoiceService) CreateInvoice(ctx context.Context, receiver string, value float64, lifetimeSeconds uint64, action *uint32) (string, error) {
	completeAction := common.InvoiceActionNothing
	if action != nil {
		a, ok := common.ActionFromCode(*action)
		if !ok {
			return "", fmt.Errorf("%w: unknown action %d", ErrInvalidInput, *action)
		}
		completeAction = a
	}
	if lifetimeSeconds == 0 {
		return "", fmt.Errorf("%w: lifetime must be positive", ErrInvalidInput)
	}
	if limit := svc.Config.MaxInvoiceLifetime; limit > 0 && lifetimeSeconds > limit {
		return "", fmt.Errorf("%w: lifetime %d exceeds %d seconds", ErrInvalidInput, lifetimeSeconds, limit)
	}

	invoice, err := NewInvoice(receiver, value, lifetimeSeconds, completeAction, svc.now())
	if err != nil {
		return "", err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	created, err := svc.Store.Insert(ctx, invoice)
	if err != nil {
		svc.Logger.Errorf("Failed to store invoice for receiver %s: %v", invoice.Receiver.Hex(), err)
		return "", err
	}
	svc.Logger.Infof("Created invoice %s for %f to %s, action %s", created.Address.Hex(), created.Value, created.Receiver.Hex(), created.CompleteAction)
	svc.publish(common.EventInvoiceCreated, created)
	return created.Address.Hex(), nil
}

func (svc *InvoiceService) GetByState(ctx context.Context, code uint32) ([]*Invoice, error) {
	state, ok := common.StateFromCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: unknown state %d", ErrInvalidInput, code)
	}
	return svc.Store.FindByState(ctx, state)
}

func (svc *InvoiceService) GetByAction(ctx context.Context, code uint32) ([]*Invoice, error) {
	action, ok := common.ActionFromCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %d", ErrInvalidInput, code)
	}
	return svc.Store.FindByAction(ctx, action)
}

func (svc *InvoiceService) GetByAddress(ctx context.Context, address string) (*Invoice, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return svc.Store.FindByAddress(ctx, addr)
}

// ManualCheck runs one lifecycle update for a single invoice, outside of the loop schedule.
func (svc *InvoiceService) ManualCheck(ctx context.Context, address string) (common.InvoiceState, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return common.InvoiceStateEmpty, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	invoice, err := svc.Store.FindByAddress(ctx, addr)
	if err != nil {
		return common.InvoiceStateEmpty, err
	}
	return svc.updateInvoiceState(ctx, invoice)
}

// SubscribeInvoiceEvents returns channels for created and updated events.
// Both are buffered, events are dropped while a subscriber lags behind.
// unsubscribe closes both channels, nothing must read from them afterwards.
func (svc *InvoiceService) SubscribeInvoiceEvents() (created chan common.InvoiceEvent, updated chan common.InvoiceEvent, unsubscribe func(), err error) {
	created = make(chan common.InvoiceEvent, 100)
	updated = make(chan common.InvoiceEvent, 100)
	createdId, err := svc.InvoicePubSub.Subscribe(common.EventInvoiceCreated, created)
	if err != nil {
		return nil, nil, nil, err
	}
	updatedId, err := svc.InvoicePubSub.Subscribe(common.EventInvoiceUpdated, updated)
	if err != nil {
		svc.InvoicePubSub.Unsubscribe(createdId, common.EventInvoiceCreated)
		return nil, nil, nil, err
	}
	unsubscribe = func() {
		svc.InvoicePubSub.Unsubscribe(createdId, common.EventInvoiceCreated)
		svc.InvoicePubSub.Unsubscribe(updatedId, common.EventInvoiceUpdated)
	}
	return created, updated, unsubscribe, nil
}

func (svc *InvoiceService) EncodeInvoiceEvent(ctx context.Context, w io.Writer, event common.InvoiceEvent) error {
	return json.NewEncoder(w).Encode(event)
}

// PublishInvoice re-emits the current state of a stored invoice.
func (svc *InvoiceService) PublishInvoice(invoice *Invoice) {
	svc.publish(common.EventInvoiceUpdated, invoice)
}

func (svc *InvoiceService) publish(eventType string, invoice *Invoice) {
	if svc.InvoicePubSub == nil {
		return
	}
	if dropped := svc.InvoicePubSub.Publish(eventType, invoice.event(eventType, svc.now())); dropped > 0 {
		svc.Logger.Warnf("Dropped %s event of invoice %s for %d subscribers", eventType, invoice.Address.Hex(), dropped)
	}
}

func parseAddress(address string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(address) {
		return ethcommon.Address{}, fmt.Errorf("%w: %q is not an address", ErrInvalidInput, address)
	}
	return ethcommon.HexToAddress(address), nil
}
