package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/chain"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getsentry/sentry-go"
)

// StartReconciliationLoop re-evaluates all pending invoices every check interval until
// StopReconciliationLoop is called (returns nil) or ctx is cancelled (returns context.Canceled).
func (svc *InvoiceService) StartReconciliationLoop(ctx context.Context) error {
	svc.mu.Lock()
	if svc.stopCh == nil {
		svc.stopCh = make(chan struct{})
	}
	stop := svc.stopCh
	svc.mu.Unlock()

	interval := svc.Config.checkInterval()
	svc.Logger.Infof("Starting reconciliation loop, interval %s", interval)
	for {
		svc.mu.Lock()
		if svc.stopped {
			svc.mu.Unlock()
			svc.Logger.Info("Reconciliation loop stopped")
			return nil
		}
		invoices, err := svc.Store.FindPending(ctx)
		svc.mu.Unlock()

		if err != nil {
			svc.Logger.Errorf("Failed to fetch pending invoices: %v", err)
			sentry.CaptureException(err)
		} else {
			svc.reconcile(ctx, invoices)
		}

		select {
		case <-ctx.Done():
			svc.Logger.Info("Reconciliation loop context canceled")
			return context.Canceled
		case <-stop:
		case <-time.After(interval):
		}
	}
}

// StopReconciliationLoop asks the loop to exit at the start of its next iteration.
// An update that is already running is not interrupted.
func (svc *InvoiceService) StopReconciliationLoop() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.stopped {
		return
	}
	svc.stopped = true
	if svc.stopCh == nil {
		svc.stopCh = make(chan struct{})
	}
	close(svc.stopCh)
}

func (svc *InvoiceService) reconcile(ctx context.Context, invoices []*Invoice) {
	start := time.Now()
	failed := 0
	for _, invoice := range invoices {
		if ctx.Err() != nil {
			break
		}
		svc.mu.Lock()
		_, err := svc.updateInvoiceState(ctx, invoice)
		svc.mu.Unlock()
		if err != nil {
			failed++
			svc.Metrics.updateFailed()
			svc.Logger.Errorf("Failed to update invoice %s: %v", invoice.Address.Hex(), err)
		}
	}
	svc.Metrics.pass()
	svc.Logger.Infof("Reconciliation pass checked %d invoices, %d failed, took %s", len(invoices), failed, time.Since(start))
}

// updateInvoiceState refreshes the balance of one invoice, persists a changed state and
// forwards the funds of a Complete SendToReceiver invoice. The caller must hold svc.mu.
func (svc *InvoiceService) updateInvoiceState(ctx context.Context, invoice *Invoice) (common.InvoiceState, error) {
	if invoice.State.IsTerminal() {
		return invoice.State, nil
	}

	balance, err := svc.ChainClient.BalanceAt(ctx, invoice.Address)
	if err != nil {
		return invoice.State, fmt.Errorf("%w: balance of %s: %w", ErrChain, invoice.Address.Hex(), err)
	}

	var persistErr error
	next := invoice.EvaluateState(balance, svc.now())
	if next != invoice.State {
		svc.Logger.Infof("Invoice %s: %s -> %s", invoice.Address.Hex(), invoice.State, next)
		invoice.State = next
		persistErr = svc.persistState(ctx, invoice)
	}

	if invoice.State != common.InvoiceStateComplete || invoice.CompleteAction != common.InvoiceActionSendToReceiver {
		return invoice.State, persistErr
	}

	state, err := svc.forward(ctx, invoice)
	if err != nil {
		return state, errors.Join(persistErr, err)
	}
	return state, nil
}

func (svc *InvoiceService) forward(ctx context.Context, invoice *Invoice) (common.InvoiceState, error) {
	if invoice.forwarded() {
		// a previous pass submitted the sweep but did not get to persist Sent
		waitCtx, cancel := context.WithTimeout(ctx, svc.Config.sweepRecheckTimeout())
		_, err := svc.ChainClient.WaitForConfirmations(waitCtx, ethcommon.HexToHash(invoice.TxHash), svc.Config.Confirmations)
		cancel()
		if sweepLost(err) {
			svc.Logger.Errorf("Sweep %s of invoice %s is lost, sending again next pass: %v", invoice.TxHash, invoice.Address.Hex(), err)
			svc.recordSweep(ctx, invoice, "", err.Error())
			return invoice.State, fmt.Errorf("%w: %w", ErrChain, err)
		}
		if err != nil {
			return invoice.State, fmt.Errorf("%w: confirm %s: %w", ErrChain, invoice.TxHash, err)
		}
		return svc.markSent(ctx, invoice)
	}

	txHash, err := svc.SweepToReceiver(ctx, invoice)
	if err != nil {
		svc.Metrics.sweep("failed")
		svc.Logger.Errorf("Failed to sweep invoice %s: %v", invoice.Address.Hex(), err)
		if !errors.Is(err, ErrInsufficientFunds) {
			sentry.CaptureException(err)
		}
		submitted := ""
		if txHash != (ethcommon.Hash{}) && !sweepLost(err) {
			submitted = txHash.Hex()
		}
		svc.recordSweep(ctx, invoice, submitted, err.Error())
		return invoice.State, err
	}

	svc.Metrics.sweep("sent")
	svc.Logger.Infof("Swept invoice %s to %s, tx %s", invoice.Address.Hex(), invoice.Receiver.Hex(), txHash.Hex())
	svc.recordSweep(ctx, invoice, txHash.Hex(), "")
	return svc.markSent(ctx, invoice)
}

func (svc *InvoiceService) markSent(ctx context.Context, invoice *Invoice) (common.InvoiceState, error) {
	invoice.State = common.InvoiceStateSent
	return invoice.State, svc.persistState(ctx, invoice)
}

func (svc *InvoiceService) persistState(ctx context.Context, invoice *Invoice) error {
	if _, err := svc.Store.UpdateState(ctx, invoice.Address, invoice.State); err != nil {
		svc.Logger.Errorf("Failed to persist state %s of invoice %s: %v", invoice.State, invoice.Address.Hex(), err)
		return err
	}
	svc.Metrics.transition(invoice.State)
	svc.publish(common.EventInvoiceUpdated, invoice)
	return nil
}

func (svc *InvoiceService) recordSweep(ctx context.Context, invoice *Invoice, txHash, errorMessage string) {
	invoice.TxHash = txHash
	invoice.ErrorMessage = errorMessage
	if err := svc.Store.RecordSweep(ctx, invoice.Address, txHash, errorMessage); err != nil {
		svc.Logger.Errorf("Failed to record sweep of invoice %s: %v", invoice.Address.Hex(), err)
	}
}

// sweepLost reports a submitted sweep that will never confirm, so a new one has to be built.
func sweepLost(err error) bool {
	return errors.Is(err, chain.ErrTransactionFailed) || errors.Is(err, chain.ErrTransactionDropped)
}
