package preset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/signer"
	"github.com/AvaProtocol/liquid-sdk/pkg/eip1559"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// Submitter dispatches a signed, priced operation. Send returns a pending hash as soon as the
// operation is accepted; Wait resolves that hash into an Inclusion. Splitting the two lets callers
// persist the pending hash before blocking. Rejections are terminal and never retried.
type Submitter interface {
	Send(ctx context.Context, op *userop.UserOperation) (common.Hash, error)
	// Wait returns an error only when the outcome is unknown. A mined but failed operation is an
	// Inclusion with Success false.
	Wait(ctx context.Context, sender common.Address, pending common.Hash) (*Inclusion, error)
}

// Inclusion is the on-chain outcome of one operation.
type Inclusion struct {
	TxHash  common.Hash
	Success bool
	Reason  string
	GasCost *big.Int
}

// Err is nil for a successful operation.
func (i *Inclusion) Err() error {
	if i.Success {
		return nil
	}
	reason := i.Reason
	if reason == "" {
		reason = "execution reverted"
	}
	return sdkerr.UserOperationError("User operation failed", fmt.Errorf("%s (tx %s)", reason, i.TxHash.Hex()))
}

// Submit sends op and waits for it to be mined, returning the hash of the carrying transaction.
func Submit(ctx context.Context, s Submitter, op *userop.UserOperation) (common.Hash, error) {
	pending, err := s.Send(ctx, op)
	if err != nil {
		return common.Hash{}, err
	}
	inclusion, err := s.Wait(ctx, op.Sender, pending)
	if err != nil {
		return common.Hash{}, err
	}
	if err := inclusion.Err(); err != nil {
		return common.Hash{}, err
	}
	return inclusion.TxHash, nil
}

// DirectSubmitter sends handleOps([op], beneficiary) to the EntryPoint from a relayer key.
type DirectSubmitter struct {
	client      chainio.Client
	relayer     *signer.Relayer
	entrypoint  common.Address
	beneficiary common.Address
	logger      logger.Logger

	// WaitForReceipt makes Wait block until the transaction is mined. Without it Wait reports the
	// sent transaction as included.
	WaitForReceipt bool
}

// NewDirectSubmitter pays the EntryPoint refund to the relayer itself.
func NewDirectSubmitter(client chainio.Client, relayer *signer.Relayer, entrypoint common.Address, lgr logger.Logger) *DirectSubmitter {
	return &DirectSubmitter{
		client:         client,
		relayer:        relayer,
		entrypoint:     entrypoint,
		beneficiary:    relayer.Address(),
		logger:         logger.EnsureLogger(lgr),
		WaitForReceipt: true,
	}
}

// WithBeneficiary overrides the address receiving the EntryPoint's gas refund.
func (s *DirectSubmitter) WithBeneficiary(beneficiary common.Address) *DirectSubmitter {
	s.beneficiary = beneficiary
	return s
}

// Send broadcasts the handleOps transaction and returns its hash.
func (s *DirectSubmitter) Send(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	txHash, err := s.send(ctx, op)
	if err != nil {
		return common.Hash{}, sdkerr.UserOperationError("Failed to send user operation", err)
	}
	return txHash, nil
}

func (s *DirectSubmitter) send(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	calldata, err := aa.PackHandleOps([]*userop.UserOperation{op}, s.beneficiary)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack handleOps: %w", err)
	}

	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read chain id: %w", err)
	}
	nonce, err := s.client.PendingNonceAt(ctx, s.relayer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read relayer nonce: %w", err)
	}
	maxFeePerGas, maxPriorityFeePerGas, err := eip1559.SuggestFee(ctx, s.client)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas fees: %w", err)
	}

	entrypoint := s.entrypoint
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: maxPriorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       handleOpsGasLimit(op),
		To:        &entrypoint,
		Value:     big.NewInt(0),
		Data:      calldata,
	})

	signed, err := s.relayer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign handleOps transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}

	txHash, err := s.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, err
	}
	s.logger.Info("handleOps transaction sent", "tx", txHash.Hex(), "sender", op.Sender.Hex(), "relayer", s.relayer.Address().Hex())
	return txHash, nil
}

// Wait blocks until the handleOps transaction is mined. The operation's own outcome is read from
// the EntryPoint's UserOperationEvent for sender.
func (s *DirectSubmitter) Wait(ctx context.Context, sender common.Address, txHash common.Hash) (*Inclusion, error) {
	if !s.WaitForReceipt {
		return &Inclusion{TxHash: txHash, Success: true}, nil
	}

	receipt, err := s.client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to get transaction receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &Inclusion{TxHash: txHash, Reason: "handleOps transaction reverted"}, nil
	}

	event, err := aa.FindUserOperationEvent(receipt.Logs, s.entrypoint, sender)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to read user operation outcome", err)
	}
	if event == nil {
		// Nodes that strip logs from receipts leave only the transaction status to go on.
		s.logger.Debug("no UserOperationEvent in receipt", "tx", txHash.Hex(), "sender", sender.Hex())
		return &Inclusion{TxHash: txHash, Success: true}, nil
	}
	if !event.Success {
		s.logger.Warn("user operation execution failed", "tx", txHash.Hex(), "userOpHash", event.UserOpHash.Hex())
	}
	return &Inclusion{TxHash: txHash, Success: event.Success, GasCost: event.ActualGasCost}, nil
}

// handleOpsGasLimit is the sum of the operation's gas fields plus EntryPoint overhead.
func handleOpsGasLimit(op *userop.UserOperation) uint64 {
	c := op.Clone()
	total := new(big.Int).Add(c.CallGasLimit, c.VerificationGasLimit)
	total.Add(total, c.PreVerificationGas)
	total.Add(total, handleOpsOverheadGas)
	if !total.IsUint64() {
		return ^uint64(0)
	}
	return total.Uint64()
}

// UserOpSender is the bundler capability BundlerSubmitter depends on.
type UserOpSender interface {
	SendUserOperation(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (common.Hash, error)
	WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error)
}

// BundlerSubmitter relays through eth_sendUserOperation and waits for the bundle transaction.
type BundlerSubmitter struct {
	bundler    UserOpSender
	entrypoint common.Address
	logger     logger.Logger
}

func NewBundlerSubmitter(b UserOpSender, entrypoint common.Address, lgr logger.Logger) *BundlerSubmitter {
	return &BundlerSubmitter{bundler: b, entrypoint: entrypoint, logger: logger.EnsureLogger(lgr)}
}

// Send hands op to the bundler and returns its userOpHash.
func (s *BundlerSubmitter) Send(ctx context.Context, op *userop.UserOperation) (common.Hash, error) {
	opHash, err := s.bundler.SendUserOperation(ctx, op, s.entrypoint)
	if err != nil {
		return common.Hash{}, sdkerr.UserOperationError("Failed to send user operation", err)
	}
	s.logger.Info("user operation accepted by bundler", "userOpHash", opHash.Hex(), "sender", op.Sender.Hex())
	return opHash, nil
}

// Wait polls the bundler for the receipt of opHash.
func (s *BundlerSubmitter) Wait(ctx context.Context, sender common.Address, opHash common.Hash) (*Inclusion, error) {
	receipt, err := s.bundler.WaitForUserOperationReceipt(ctx, opHash)
	if err != nil {
		return nil, sdkerr.UserOperationError("Failed to get user operation receipt", err)
	}

	inclusion := &Inclusion{
		TxHash:  receipt.TransactionHash(),
		Success: receipt.Success,
		Reason:  receipt.Reason,
	}
	if receipt.ActualGasCost != nil {
		inclusion.GasCost = receipt.ActualGasCost.ToInt()
	}
	if !receipt.Success {
		s.logger.Warn("user operation execution failed", "userOpHash", opHash.Hex(), "tx", inclusion.TxHash.Hex(), "reason", receipt.Reason)
	}
	return inclusion, nil
}
