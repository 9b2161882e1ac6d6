package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

var (
	ErrTransactionFailed = errors.New("transaction reverted")
	// ErrTransactionDropped: no receipt and the node does not know the transaction,
	// it was evicted from the mempool or never propagated
	ErrTransactionDropped = errors.New("transaction dropped")
)

// EthClient implements Client on top of a JSON-RPC node.
// Every call is rate limited and bounded by the configured timeout,
// read calls are retried with exponential backoff.
type EthClient struct {
	rpc          RPCClient
	config       *Config
	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *lecho.Logger
}

func Dial(ctx context.Context, c *Config, logger *lecho.Logger) (*EthClient, error) {
	endpoint := strings.TrimSpace(c.RPCUrl)
	if endpoint == "" {
		return nil, fmt.Errorf("rpc url required")
	}
	rpc, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewEthClient(rpc, c, logger), nil
}

func NewEthClient(rpc RPCClient, c *Config, logger *lecho.Logger) *EthClient {
	limit := rate.Inf
	if c.RPCRateLimit > 0 {
		limit = rate.Limit(c.RPCRateLimit)
	}
	pollInterval := c.pollInterval()
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &EthClient{
		rpc:          rpc,
		config:       c,
		limiter:      rate.NewLimiter(limit, 1),
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (client *EthClient) Close() {
	client.rpc.Close()
}

func (client *EthClient) call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := client.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx := ctx
	if timeout := client.config.callTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return op(callCtx)
}

func (client *EthClient) retry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = client.config.retryMaxElapsed()
	return backoff.RetryNotify(func() error {
		err := client.call(ctx, op)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		if client.logger != nil {
			client.logger.Warnf("rpc %s failed, retrying in %s: %v", name, next, err)
		}
	})
}

func (client *EthClient) BalanceAt(ctx context.Context, account common.Address) (balance *big.Int, err error) {
	err = client.retry(ctx, "eth_getBalance", func(ctx context.Context) error {
		balance, err = client.rpc.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

func (client *EthClient) SuggestGasPrice(ctx context.Context) (price *big.Int, err error) {
	err = client.retry(ctx, "eth_gasPrice", func(ctx context.Context) error {
		price, err = client.rpc.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

func (client *EthClient) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = client.retry(ctx, "eth_chainId", func(ctx context.Context) error {
		id, err = client.rpc.ChainID(ctx)
		return err
	})
	return id, err
}

func (client *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (nonce uint64, err error) {
	err = client.retry(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		nonce, err = client.rpc.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

func (client *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	err = client.retry(ctx, "eth_estimateGas", func(ctx context.Context) error {
		gas, err = client.rpc.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// SendTransaction is not retried, a failed submit is retried by the next reconciliation pass.
func (client *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return client.call(ctx, func(ctx context.Context) error {
		return client.rpc.SendTransaction(ctx, tx)
	})
}

func (client *EthClient) WaitForConfirmations(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if timeout := client.config.confirmationTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(client.pollInterval)
	defer ticker.Stop()

	for {
		receipt, done, err := client.checkConfirmations(ctx, txHash, confirmations)
		if err != nil || done {
			return receipt, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %d confirmations of %s: %w", confirmations, txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (client *EthClient) checkConfirmations(ctx context.Context, txHash common.Hash, confirmations uint64) (*types.Receipt, bool, error) {
	var receipt *types.Receipt
	err := client.call(ctx, func(ctx context.Context) (err error) {
		receipt, err = client.rpc.TransactionReceipt(ctx, txHash)
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, client.checkKnown(ctx, txHash)
	}
	if err != nil {
		// transient errors keep the wait going until the deadline
		if ctx.Err() != nil {
			return nil, false, err
		}
		if client.logger != nil {
			client.logger.Warnf("fetch receipt %s: %v", txHash.Hex(), err)
		}
		return nil, false, nil
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, false, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, true, fmt.Errorf("%w: %s", ErrTransactionFailed, txHash.Hex())
	}
	if confirmations <= 1 {
		return receipt, true, nil
	}
	var head uint64
	err = client.call(ctx, func(ctx context.Context) (err error) {
		head, err = client.rpc.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, false, nil
	}
	mined := receipt.BlockNumber.Uint64()
	if head < mined {
		return nil, false, nil
	}
	return receipt, head-mined+1 >= confirmations, nil
}

// checkKnown fails with ErrTransactionDropped when neither the chain nor the mempool
// has the transaction. Lookup errors other than NotFound keep the wait going.
func (client *EthClient) checkKnown(ctx context.Context, txHash common.Hash) error {
	err := client.call(ctx, func(ctx context.Context) error {
		_, _, err := client.rpc.TransactionByHash(ctx, txHash)
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: %s", ErrTransactionDropped, txHash.Hex())
	}
	if err != nil && client.logger != nil && ctx.Err() == nil {
		client.logger.Warnf("fetch transaction %s: %v", txHash.Hex(), err)
	}
	return nil
}
