// Package chainio is the blockchain read/write boundary of the SDK. Everything above this package
// talks to the chain through the Client interface so it can be replaced in tests.
package chainio

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
)

// Reader performs read-only contract calls.
type Reader interface {
	ReadContract(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error)
	// CodeAt returns the runtime code at account. A nil blockNumber means the latest block.
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Client is the full read/write capability the SDK needs from a node.
type Client interface {
	Reader

	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Receipt polling configuration
var (
	ReceiptPollInitialInterval = 1 * time.Second
	ReceiptPollMaxInterval     = 5 * time.Second
	ReceiptPollBackoffFactor   = 1.5
)

// EthClient implements Client on top of go-ethereum's ethclient.
type EthClient struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	logger    logger.Logger
}

// Dial connects to the given RPC URL.
func Dial(ctx context.Context, rpcURL string, lgr logger.Logger) (*EthClient, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("Error creating rpc client: %w", err)
	}

	return &EthClient{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		logger:    logger.EnsureLogger(lgr),
	}, nil
}

// Close closes the underlying RPC client.
func (c *EthClient) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *EthClient) ReadContract(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	calldata, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	output, err := c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &address, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, address.Hex(), err)
	}

	values, err := contractABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

func (c *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.ethClient.PendingNonceAt(ctx, account)
}

func (c *EthClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return c.ethClient.SuggestGasTipCap(ctx)
}

func (c *EthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

func (c *EthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CodeAt(ctx, account, blockNumber)
}

func (c *EthClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("invalid raw transaction: %w", err)
	}
	if err := c.ethClient.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// WaitForTransactionReceipt polls for the receipt with exponential backoff until it is found or ctx
// is done.
func (c *EthClient) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return Poll(ctx, c.logger, hash.Hex(), func(ctx context.Context) (*types.Receipt, error) {
		receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return receipt, err
	})
}

// Poll calls fetch until it yields a value. A nil value with a nil error means not available yet.
// Fetch errors are retried until ctx is done; the last one is then reported with the ctx error.
func Poll[T any](ctx context.Context, lgr logger.Logger, label string, fetch func(context.Context) (*T, error)) (*T, error) {
	lgr = logger.EnsureLogger(lgr)
	interval := ReceiptPollInitialInterval
	attempt := 0
	var lastErr error

	for {
		attempt++
		v, err := fetch(ctx)
		if err != nil {
			lgr.Debug("receipt poll failed", "target", label, "attempt", attempt, "err", err)
			// a fetch cut short by ctx says nothing new
			if ctx.Err() == nil {
				lastErr = err
			}
		}
		if v != nil {
			return v, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if lastErr != nil {
				return nil, fmt.Errorf("waiting for receipt of %s after %d attempts: %w (last error: %w)", label, attempt, ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("waiting for receipt of %s: %w", label, ctx.Err())
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * ReceiptPollBackoffFactor)
		if interval > ReceiptPollMaxInterval {
			interval = ReceiptPollMaxInterval
		}
	}
}
