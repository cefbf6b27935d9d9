package preset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/pkg/eip1559"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// the signature isnt verified during estimation, but its length is priced into preVerificationGas
var dummySigForGasEstimation = passkey.DummySignature()

// Estimator fills preVerificationGas, verificationGasLimit and callGasLimit. It returns a new
// operation and leaves the input untouched.
type Estimator interface {
	Estimate(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error)
}

// EntryPointEstimator reads EntryPoint.estimateUserOperationGas through a node.
type EntryPointEstimator struct {
	client     chainio.Reader
	entrypoint common.Address
	logger     logger.Logger
}

func NewEntryPointEstimator(client chainio.Reader, entrypoint common.Address, lgr logger.Logger) *EntryPointEstimator {
	return &EntryPointEstimator{client: client, entrypoint: entrypoint, logger: logger.EnsureLogger(lgr)}
}

func (e *EntryPointEstimator) Estimate(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	sample := estimationCopy(op)

	out, err := e.client.ReadContract(ctx, e.entrypoint, aa.EntryPointABI, "estimateUserOperationGas",
		*sample, common.Address{}, big.NewInt(0))
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to estimate user operation gas", err)
	}
	if len(out) != 3 {
		return nil, sdkerr.UserOperationError("Failed to estimate user operation gas",
			fmt.Errorf("estimateUserOperationGas returned %d values", len(out)))
	}

	values := make([]*big.Int, 3)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, sdkerr.UserOperationError("Failed to estimate user operation gas",
				fmt.Errorf("estimateUserOperationGas returned %T", v))
		}
		values[i] = n
	}

	// outputs are (preVerificationGas, verificationGas, callGasLimit)
	result := applyEstimate(op, values[0], values[1], values[2])
	e.logger.Debug("estimated user operation gas",
		"preVerificationGas", result.PreVerificationGas.String(),
		"verificationGasLimit", result.VerificationGasLimit.String(),
		"callGasLimit", result.CallGasLimit.String())
	return result, nil
}

// GasEstimator is the bundler capability BundlerEstimator depends on.
type GasEstimator interface {
	EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (*bundler.GasEstimation, error)
}

// BundlerEstimator asks a bundler through eth_estimateUserOperationGas.
type BundlerEstimator struct {
	bundler    GasEstimator
	entrypoint common.Address
	logger     logger.Logger
}

func NewBundlerEstimator(b GasEstimator, entrypoint common.Address, lgr logger.Logger) *BundlerEstimator {
	return &BundlerEstimator{bundler: b, entrypoint: entrypoint, logger: logger.EnsureLogger(lgr)}
}

func (e *BundlerEstimator) Estimate(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	est, err := e.bundler.EstimateUserOperationGas(ctx, estimationCopy(op), e.entrypoint)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to estimate user operation gas", err)
	}

	result := applyEstimate(op, est.PreVerificationGas, est.VerificationGasLimit, est.CallGasLimit)
	e.logger.Debug("bundler estimated user operation gas",
		"preVerificationGas", result.PreVerificationGas.String(),
		"verificationGasLimit", result.VerificationGasLimit.String(),
		"callGasLimit", result.CallGasLimit.String())
	return result, nil
}

// estimationCopy is the operation sent for estimation. An empty signature is replaced by a dummy
// passkey signature of realistic size so preVerificationGas covers the real one.
func estimationCopy(op *userop.UserOperation) *userop.UserOperation {
	c := op.Clone()
	if len(c.Signature) == 0 {
		c.Signature = common.CopyBytes(dummySigForGasEstimation)
	}
	return c
}

func applyEstimate(op *userop.UserOperation, preVerificationGas, verificationGas, callGasLimit *big.Int) *userop.UserOperation {
	result := op.Clone()
	result.PreVerificationGas = new(big.Int).Set(preVerificationGas)
	result.VerificationGasLimit = new(big.Int).Set(verificationGas)
	result.CallGasLimit = new(big.Int).Set(callGasLimit)

	if result.IsDeployment() && result.VerificationGasLimit.Cmp(VerificationGasFloor) < 0 {
		result.VerificationGasLimit = new(big.Int).Set(VerificationGasFloor)
	}
	return result
}

// FeeFiller prices an operation with EIP-1559 fees. It runs after estimation as its own step.
type FeeFiller struct {
	source eip1559.FeeSource
}

func NewFeeFiller(source eip1559.FeeSource) *FeeFiller {
	return &FeeFiller{source: source}
}

func (f *FeeFiller) Fill(ctx context.Context, op *userop.UserOperation) (*userop.UserOperation, error) {
	maxFeePerGas, maxPriorityFeePerGas, err := eip1559.SuggestFee(ctx, f.source)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to suggest gas fees", err)
	}

	result := op.Clone()
	result.MaxFeePerGas = maxFeePerGas
	result.MaxPriorityFeePerGas = maxPriorityFeePerGas
	return result, nil
}
