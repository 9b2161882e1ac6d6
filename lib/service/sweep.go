package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type SweepParams struct {
	Balance       *big.Int
	GasPrice      *big.Int
	PriorityFee   *big.Int
	GasLimit      uint64
	MaxAllowedGas *big.Int
	MinSendAmount *big.Int
}

type SweepPlan struct {
	GasLimit     uint64
	GasTipCap    *big.Int
	MaxFeePerGas *big.Int
	// MaxGasCost is the worst case fee, GasLimit * MaxFeePerGas
	MaxGasCost *big.Int
	SendAmount *big.Int
}

// PlanSweep computes fees and the amount that can be forwarded.
// It fails with ErrGasLimitExceeded or ErrInsufficientFunds, in that order.
func PlanSweep(p SweepParams) (*SweepPlan, error) {
	maxFeePerGas := new(big.Int).Add(orZero(p.GasPrice), orZero(p.PriorityFee))
	maxGasCost := new(big.Int).Mul(new(big.Int).SetUint64(p.GasLimit), maxFeePerGas)
	if maxGasCost.Cmp(orZero(p.MaxAllowedGas)) > 0 {
		return nil, fmt.Errorf("%w: %s > %s", ErrGasLimitExceeded, maxGasCost, orZero(p.MaxAllowedGas))
	}

	sendAmount := new(big.Int).Sub(orZero(p.Balance), maxGasCost)
	if sendAmount.Sign() < 0 {
		sendAmount.SetInt64(0)
	}
	if sendAmount.Cmp(orZero(p.MinSendAmount)) <= 0 {
		return nil, fmt.Errorf("%w: %s wei left after %s wei gas", ErrInsufficientFunds, sendAmount, maxGasCost)
	}

	return &SweepPlan{
		GasLimit:     p.GasLimit,
		GasTipCap:    new(big.Int).Set(orZero(p.PriorityFee)),
		MaxFeePerGas: maxFeePerGas,
		MaxGasCost:   maxGasCost,
		SendAmount:   sendAmount,
	}, nil
}

// SweepToReceiver forwards the whole balance of the invoice address minus fees to its receiver
// and waits for the configured number of confirmations. Nothing is submitted when planning fails.
func (svc *InvoiceService) SweepToReceiver(ctx context.Context, invoice *Invoice) (ethcommon.Hash, error) {
	if invoice.signer == nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: invoice %s has no signer", ErrChain, invoice.Address.Hex())
	}

	gasPrice, err := svc.ChainClient.SuggestGasPrice(ctx)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: gas price: %w", ErrChain, err)
	}
	nonce, err := svc.ChainClient.PendingNonceAt(ctx, invoice.Address)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: nonce: %w", ErrChain, err)
	}
	chainID, err := svc.ChainClient.ChainID(ctx)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: chain id: %w", ErrChain, err)
	}
	balance, err := svc.ChainClient.BalanceAt(ctx, invoice.Address)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: balance: %w", ErrChain, err)
	}

	priorityFee := svc.Config.MaxPriorityFee.Value()
	maxFeePerGas := new(big.Int).Add(gasPrice, priorityFee)
	receiver := invoice.Receiver
	gasLimit, err := svc.ChainClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      invoice.Address,
		To:        &receiver,
		GasFeeCap: maxFeePerGas,
		GasTipCap: priorityFee,
		Value:     new(big.Int),
	})
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: estimate gas: %w", ErrChain, err)
	}

	plan, err := PlanSweep(SweepParams{
		Balance:       balance,
		GasPrice:      gasPrice,
		PriorityFee:   priorityFee,
		GasLimit:      gasLimit,
		MaxAllowedGas: svc.Config.MaxAllowedGas.Value(),
		MinSendAmount: svc.Config.MinSendAmount.Value(),
	})
	if err != nil {
		return ethcommon.Hash{}, err
	}

	tx, err := invoice.signer.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: plan.GasTipCap,
		GasFeeCap: plan.MaxFeePerGas,
		Gas:       plan.GasLimit,
		To:        &receiver,
		Value:     plan.SendAmount,
	}), chainID)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: sign: %w", ErrChain, err)
	}

	svc.Logger.Infof("Sweeping %s wei from %s to %s, tx %s", plan.SendAmount, invoice.Address.Hex(), receiver.Hex(), tx.Hash().Hex())
	if err := svc.ChainClient.SendTransaction(ctx, tx); err != nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: send: %w", ErrChain, err)
	}
	if _, err := svc.ChainClient.WaitForConfirmations(ctx, tx.Hash(), svc.Config.Confirmations); err != nil {
		return tx.Hash(), fmt.Errorf("%w: confirm %s: %w", ErrChain, tx.Hash().Hex(), err)
	}
	return tx.Hash(), nil
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
