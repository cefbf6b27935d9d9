package preset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

var (
	// VerificationGasFloor is the lowest verificationGasLimit accepted for an operation that deploys
	// its account. Estimates for deployments are unreliable because the account has no code yet.
	VerificationGasFloor = big.NewInt(800000)

	// handleOps overhead on top of the operation's own gas when a relayer submits directly
	handleOpsOverheadGas = big.NewInt(100000)

	accountSalt = big.NewInt(0)
)

// Deployment describes a not yet deployed Coinbase Smart Wallet: its owner set and salt.
type Deployment struct {
	Owners [][]byte
	Salt   *big.Int
}

// Builder assembles UserOperations for one set of deployed contracts.
type Builder struct {
	client chainio.Reader
	addrs  aa.Addresses
	logger logger.Logger
}

func NewBuilder(client chainio.Reader, addrs aa.Addresses, lgr logger.Logger) *Builder {
	return &Builder{
		client: client,
		addrs:  addrs.WithDefaults(),
		logger: logger.EnsureLogger(lgr),
	}
}

// Build returns an operation with every gas field zero and the supplied signature.
//
// Without a deployment the sender must be a deployed account and its nonce is read from the
// EntryPoint. With a deployment the sender is the factory's counterfactual address, the nonce is 0
// and initCode carries createAccount, unless that address already has code, in which case the
// deployment is ignored. A zero sender is the placeholder for "not yet known".
func (b *Builder) Build(ctx context.Context, sender common.Address, callData, signature []byte, deploy *Deployment) (*userop.UserOperation, error) {
	op, err := b.build(ctx, sender, callData, signature, deploy)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to create user operation", err)
	}
	return op, nil
}

// IsDeployed reports whether address has contract code.
func (b *Builder) IsDeployed(ctx context.Context, address common.Address) (bool, error) {
	deployed, err := b.isDeployed(ctx, address)
	if err != nil {
		return false, sdkerr.UserOperationError("Failed to check account deployment", err)
	}
	return deployed, nil
}

func (b *Builder) isDeployed(ctx context.Context, address common.Address) (bool, error) {
	code, err := b.client.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to read code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

func (b *Builder) build(ctx context.Context, sender common.Address, callData, signature []byte, deploy *Deployment) (*userop.UserOperation, error) {
	if deploy == nil {
		if sender == (common.Address{}) {
			return nil, fmt.Errorf("sender is unset and no deployment was provided")
		}

		nonce, err := aa.GetNonce(ctx, b.client, b.addrs.EntryPoint, sender, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read nonce for %s: %w", sender.Hex(), err)
		}

		op := userop.New(sender, nonce, callData)
		op.Signature = common.CopyBytes(signature)
		b.logger.Debug("built user operation", "sender", sender.Hex(), "nonce", nonce.String())
		return op, nil
	}

	salt := deploy.Salt
	if salt == nil {
		salt = accountSalt
	}

	derived, err := aa.GetSenderAddress(ctx, b.client, b.addrs.Factory, deploy.Owners, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sender address: %w", err)
	}
	if sender != (common.Address{}) && sender != derived {
		return nil, fmt.Errorf("sender %s does not match derived sender %s", sender.Hex(), derived.Hex())
	}

	deployed, err := b.isDeployed(ctx, derived)
	if err != nil {
		return nil, err
	}
	if deployed {
		// An earlier deployment landed even though its receipt was never seen. Sending initCode
		// again would fail validation with AA10.
		b.logger.Info("account already deployed, omitting initCode", "sender", derived.Hex())
		return b.build(ctx, derived, callData, signature, nil)
	}

	initCode, err := aa.GetInitCode(b.addrs.Factory, deploy.Owners, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to build initCode: %w", err)
	}

	op := userop.New(derived, big.NewInt(0), callData)
	op.InitCode = initCode
	op.Signature = common.CopyBytes(signature)
	b.logger.Debug("built deployment user operation", "sender", derived.Hex(), "initCodeLength", len(initCode))
	return op, nil
}
