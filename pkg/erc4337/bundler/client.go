// Provide primitive to work with a bundler RPC
// Bundler RPC is stateless
package bundler

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
)

// DefaultReceiptTimeout bounds WaitForUserOperationReceipt when the client has no explicit timeout.
const DefaultReceiptTimeout = 2 * time.Minute

// BundlerClient defines a client for interacting with an EIP-4337 bundler RPC endpoint.
type BundlerClient struct {
	client *rpc.Client
	url    string
	logger logger.Logger

	// ReceiptTimeout caps how long WaitForUserOperationReceipt polls.
	ReceiptTimeout time.Duration
}

// NewBundlerClient creates a new BundlerClient that connects to the given URL.
func NewBundlerClient(url string, lgr logger.Logger) (*BundlerClient, error) {
	// Use DialHTTP instead of Dial as it is more compatible with HTTP-based bundler
	// endpoints, but it also supports other protocols such as WebSocket.
	c, err := rpc.DialHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("Error creating bundler client: %w", err)
	}
	return &BundlerClient{
		client:         c,
		url:            url,
		logger:         logger.EnsureLogger(lgr),
		ReceiptTimeout: DefaultReceiptTimeout,
	}, nil
}

// Close closes the underlying RPC client connection.
func (bc *BundlerClient) Close() {
	bc.client.Close()
}

// SendUserOperation sends a UserOperation to the bundler and returns its userOpHash.
func (bc *BundlerClient) SendUserOperation(ctx context.Context, userOp *userop.UserOperation, entrypoint common.Address) (common.Hash, error) {
	var hash common.Hash

	bc.logger.Debug("eth_sendUserOperation",
		"sender", userOp.Sender.Hex(),
		"nonce", userOp.Nonce.String(),
		"entrypoint", entrypoint.Hex())

	// EntryPoint is passed EIP-55 checksummed, some bundlers reject lowercase
	if err := bc.client.CallContext(ctx, &hash, "eth_sendUserOperation", userOp, entrypoint.Hex()); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation: %w", err)
	}
	return hash, nil
}

// EstimateUserOperationGas estimates the gas required for a UserOperation.
// https://eips.ethereum.org/EIPS/eip-4337#rpc-methods-eth-namespace
// The signature field is ignored by the wallet, but a semi-valid signature of the right length may
// still be required by the account's validation code.
func (bc *BundlerClient) EstimateUserOperationGas(ctx context.Context, userOp *userop.UserOperation, entrypoint common.Address) (*GasEstimation, error) {
	var result gasEstimationResult

	bc.logger.Debug("eth_estimateUserOperationGas",
		"sender", userOp.Sender.Hex(),
		"deployment", userOp.IsDeployment(),
		"entrypoint", entrypoint.Hex())

	if err := bc.client.CallContext(ctx, &result, "eth_estimateUserOperationGas", userOp, entrypoint.Hex()); err != nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas RPC response error: %w", err)
	}

	return result.toEstimation()
}

// GetUserOperationReceipt fetches the receipt of a UserOperation. It returns nil without error
// while the operation is not yet included.
func (bc *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var receipt *UserOperationReceipt
	if err := bc.client.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, err
	}
	return receipt, nil
}

// WaitForUserOperationReceipt polls eth_getUserOperationReceipt with exponential backoff until the
// operation is included, ctx is done or ReceiptTimeout elapses.
func (bc *BundlerClient) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	if bc.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bc.ReceiptTimeout)
		defer cancel()
	}

	return chainio.Poll(ctx, bc.logger, hash.Hex(), func(ctx context.Context) (*UserOperationReceipt, error) {
		return bc.GetUserOperationReceipt(ctx, hash)
	})
}

// SupportedEntryPoints lists the entrypoints the bundler accepts.
func (bc *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var entrypoints []common.Address
	err := bc.client.CallContext(ctx, &entrypoints, "eth_supportedEntryPoints")
	return entrypoints, err
}
