package service

import "errors"

var (
	// ErrInvalidInput: malformed address, action, state or receiver
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("invoice not found")
	// ErrChain: rpc, network or key derivation failure
	ErrChain       = errors.New("chain error")
	ErrPersistence = errors.New("persistence error")
	// ErrGasLimitExceeded aborts a sweep when the worst case fee is above MAX_ALLOWED_GAS
	ErrGasLimitExceeded = errors.New("max gas cost is bigger than maximum allowed gas")
	// ErrInsufficientFunds aborts a sweep when the amount left after fees is dust
	ErrInsufficientFunds = errors.New("insufficient funds to sweep")
)
