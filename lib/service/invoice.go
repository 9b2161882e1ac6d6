package service

import (
	"fmt"
	"math"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getAlby/evmhub.go/chain"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/db/models"
	"github.com/getAlby/evmhub.go/lib/wallet"
)

// Invoice is a payment request bound to its own derived address.
// The mnemonic and the signer are unexported and never serialized.
type Invoice struct {
	Address        ethcommon.Address    `json:"address"`
	Receiver       ethcommon.Address    `json:"receiver"`
	Value          float64              `json:"value"`
	Lifetime       int64                `json:"lifetime"`
	State          common.InvoiceState  `json:"state"`
	CompleteAction common.InvoiceAction `json:"complete_action"`
	TxHash         string               `json:"tx_hash,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`

	mnemonic string
	signer   *wallet.Signer
}

// NewInvoice generates a fresh 24 word mnemonic and derives the receive address from it.
func NewInvoice(receiver string, value float64, lifetimeSeconds uint64, action common.InvoiceAction, now time.Time) (*Invoice, error) {
	if !ethcommon.IsHexAddress(receiver) {
		return nil, fmt.Errorf("%w: receiver %q is not an address", ErrInvalidInput, receiver)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return nil, fmt.Errorf("%w: value must be positive", ErrInvalidInput)
	}
	if lifetimeSeconds > math.MaxInt32 {
		return nil, fmt.Errorf("%w: lifetime %d is too long", ErrInvalidInput, lifetimeSeconds)
	}
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return nil, fmt.Errorf("%w: generate mnemonic: %w", ErrChain, err)
	}
	return LoadInvoice(
		mnemonic,
		receiver,
		value,
		common.InvoiceStateEmpty,
		now.Add(time.Duration(lifetimeSeconds)*time.Second).Unix(),
		action,
	)
}

// LoadInvoice re-derives the signer of a persisted invoice. It does not use any randomness.
func LoadInvoice(mnemonic, receiver string, value float64, state common.InvoiceState, lifetime int64, action common.InvoiceAction) (*Invoice, error) {
	signer, err := wallet.FromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("%w: derive signer: %w", ErrChain, err)
	}
	return &Invoice{
		Address:        signer.Address(),
		Receiver:       ethcommon.HexToAddress(receiver),
		Value:          value,
		Lifetime:       lifetime,
		State:          state,
		CompleteAction: action,
		mnemonic:       mnemonic,
		signer:         signer,
	}, nil
}

// Expired reports whether the deadline has passed.
func (inv *Invoice) Expired(now time.Time) bool {
	return now.Unix() >= inv.Lifetime
}

// EvaluateState applies the settlement rule to an on-chain balance:
// zero is Empty (Rejected once expired), below target is Incomplete (Rejected once
// expired), at or above target is Complete. Transitions only move forward: terminal
// states are kept and a Complete invoice never falls back.
func (inv *Invoice) EvaluateState(balance *big.Int, now time.Time) common.InvoiceState {
	if inv.State.IsTerminal() {
		return inv.State
	}
	var next common.InvoiceState
	received := chain.WeiToEther(balance)
	switch {
	case balance == nil || balance.Sign() <= 0:
		next = common.InvoiceStateEmpty
		if inv.Expired(now) {
			next = common.InvoiceStateRejected
		}
	case received < inv.Value:
		next = common.InvoiceStateIncomplete
		if inv.Expired(now) {
			next = common.InvoiceStateRejected
		}
	default:
		next = common.InvoiceStateComplete
	}
	if inv.State == common.InvoiceStateComplete {
		return common.InvoiceStateComplete
	}
	if inv.State == common.InvoiceStateIncomplete && next == common.InvoiceStateEmpty {
		return common.InvoiceStateIncomplete
	}
	return next
}

func (inv *Invoice) forwarded() bool {
	return inv.TxHash != ""
}

func (inv *Invoice) event(eventType string, now time.Time) common.InvoiceEvent {
	return common.InvoiceEvent{
		Type:           eventType,
		Address:        inv.Address.Hex(),
		Receiver:       inv.Receiver.Hex(),
		Value:          inv.Value,
		Lifetime:       inv.Lifetime,
		State:          inv.State,
		CompleteAction: inv.CompleteAction,
		TxHash:         inv.TxHash,
		ErrorMessage:   inv.ErrorMessage,
		Timestamp:      now,
	}
}

func (inv *Invoice) toModel() *models.Invoice {
	return &models.Invoice{
		Address:        inv.Address.Hex(),
		Receiver:       inv.Receiver.Hex(),
		Mnemonic:       inv.mnemonic,
		State:          inv.State.Code(),
		Value:          inv.Value,
		Lifetime:       inv.Lifetime,
		CompleteAction: inv.CompleteAction.Code(),
		TxHash:         inv.TxHash,
		ErrorMessage:   inv.ErrorMessage,
	}
}

// invoiceFromModel rebuilds the entity from a stored row. Unknown state or action codes
// fall back to Empty / Nothing, the returned warnings name them.
func invoiceFromModel(m *models.Invoice) (inv *Invoice, warnings []string, err error) {
	state, ok := common.StateFromCode(m.State)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("unknown state code %d for %s, using %s", m.State, m.Address, state))
	}
	action, ok := common.ActionFromCode(m.CompleteAction)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("unknown complete action code %d for %s, using %s", m.CompleteAction, m.Address, action))
	}
	inv, err = LoadInvoice(m.Mnemonic, m.Receiver, m.Value, state, m.Lifetime, action)
	if err != nil {
		return nil, warnings, fmt.Errorf("load invoice %s: %w", m.Address, err)
	}
	if inv.Address != ethcommon.HexToAddress(m.Address) {
		return nil, warnings, fmt.Errorf("%w: stored address %s does not match mnemonic", ErrPersistence, m.Address)
	}
	inv.TxHash = m.TxHash
	inv.ErrorMessage = m.ErrorMessage
	return inv, warnings, nil
}
