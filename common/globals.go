package common

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InvoiceState is persisted as a small integer code.
type InvoiceState uint32

const (
	InvoiceStateEmpty InvoiceState = iota
	InvoiceStateIncomplete
	InvoiceStateComplete
	InvoiceStateRejected
	InvoiceStateSent
)

// InvoiceAction is the post completion behavior of an invoice.
type InvoiceAction uint32

const (
	InvoiceActionSendToReceiver InvoiceAction = iota
	InvoiceActionNothing
)

const (
	// EventInvoiceUpdated is the pubsub topic for persisted state changes
	EventInvoiceUpdated = "invoice.updated"
	// EventInvoiceCreated is the pubsub topic for new invoices
	EventInvoiceCreated = "invoice.created"
)

// StateFromCode maps a stored or requested code to a state.
// Unknown codes fall back to InvoiceStateEmpty with ok == false; callers
// decoding stored rows should log when ok is false since it points at corrupt data.
func StateFromCode(code uint32) (state InvoiceState, ok bool) {
	switch InvoiceState(code) {
	case InvoiceStateEmpty, InvoiceStateIncomplete, InvoiceStateComplete, InvoiceStateRejected, InvoiceStateSent:
		return InvoiceState(code), true
	default:
		return InvoiceStateEmpty, false
	}
}

func (s InvoiceState) Code() uint32 { return uint32(s) }

// IsTerminal reports whether no further transitions are allowed.
func (s InvoiceState) IsTerminal() bool {
	return s == InvoiceStateRejected || s == InvoiceStateSent
}

func (s InvoiceState) String() string {
	switch s {
	case InvoiceStateEmpty:
		return "empty"
	case InvoiceStateIncomplete:
		return "incomplete"
	case InvoiceStateComplete:
		return "complete"
	case InvoiceStateRejected:
		return "rejected"
	case InvoiceStateSent:
		return "sent"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

func (s InvoiceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a state name or its integer code.
func (s *InvoiceState) UnmarshalJSON(data []byte) error {
	code, name, err := decodeEnum(data)
	if err != nil {
		return fmt.Errorf("invoice state: %w", err)
	}
	if name == "" {
		state, ok := StateFromCode(code)
		if !ok {
			return fmt.Errorf("unknown invoice state code %d", code)
		}
		*s = state
		return nil
	}
	state, ok := StateFromName(name)
	if !ok {
		return fmt.Errorf("unknown invoice state %q", name)
	}
	*s = state
	return nil
}

// StateFromName is the inverse of InvoiceState.String.
func StateFromName(name string) (InvoiceState, bool) {
	for _, state := range []InvoiceState{InvoiceStateEmpty, InvoiceStateIncomplete, InvoiceStateComplete, InvoiceStateRejected, InvoiceStateSent} {
		if state.String() == name {
			return state, true
		}
	}
	return InvoiceStateEmpty, false
}

// ActionFromCode maps a code to an action, unknown codes fall back to
// InvoiceActionNothing with ok == false.
func ActionFromCode(code uint32) (action InvoiceAction, ok bool) {
	switch InvoiceAction(code) {
	case InvoiceActionSendToReceiver, InvoiceActionNothing:
		return InvoiceAction(code), true
	default:
		return InvoiceActionNothing, false
	}
}

func (a InvoiceAction) Code() uint32 { return uint32(a) }

func (a InvoiceAction) String() string {
	switch a {
	case InvoiceActionSendToReceiver:
		return "send_to_receiver"
	case InvoiceActionNothing:
		return "nothing"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

func (a InvoiceAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts an action name or its integer code.
func (a *InvoiceAction) UnmarshalJSON(data []byte) error {
	code, name, err := decodeEnum(data)
	if err != nil {
		return fmt.Errorf("invoice action: %w", err)
	}
	if name == "" {
		action, ok := ActionFromCode(code)
		if !ok {
			return fmt.Errorf("unknown invoice action code %d", code)
		}
		*a = action
		return nil
	}
	switch name {
	case InvoiceActionSendToReceiver.String():
		*a = InvoiceActionSendToReceiver
	case InvoiceActionNothing.String():
		*a = InvoiceActionNothing
	default:
		return fmt.Errorf("unknown invoice action %q", name)
	}
	return nil
}

// decodeEnum returns either a non empty name or an integer code.
func decodeEnum(data []byte) (code uint32, name string, err error) {
	if len(data) > 0 && data[0] == '"' {
		if err = json.Unmarshal(data, &name); err != nil {
			return 0, "", err
		}
		if name == "" {
			return 0, "", errors.New("empty name")
		}
		return 0, name, nil
	}
	err = json.Unmarshal(data, &code)
	return code, "", err
}
