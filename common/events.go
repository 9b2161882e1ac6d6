package common

import "time"

// InvoiceEvent is published whenever an invoice is created or its state is persisted.
// It never carries key material.
type InvoiceEvent struct {
	Type           string        `json:"type"`
	Address        string        `json:"address"`
	Receiver       string        `json:"receiver"`
	Value          float64       `json:"value"`
	Lifetime       int64         `json:"lifetime"`
	State          InvoiceState  `json:"state"`
	CompleteAction InvoiceAction `json:"complete_action"`
	TxHash         string        `json:"tx_hash,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
