package sdk

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/preset"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
	"github.com/AvaProtocol/liquid-sdk/pkg/timekeeper"
	"github.com/AvaProtocol/liquid-sdk/storage/schema"
)

// ownerIndex is the position of the passkey in the account's owner list. Accounts created by this
// SDK have exactly one owner.
const ownerIndex = 0

// ExecuteStrategy runs actions atomically from account in a single UserOperation and returns the
// hash of the transaction that included it.
//
// The steps run strictly in order: encode, compose, authenticate with the passkey, build,
// estimate, price and submit. A failed authentication stops the pipeline before any
// UserOperation exists. An empty action list and an account without code are rejected before
// authentication.
func (s *SDK) ExecuteStrategy(ctx context.Context, username string, account common.Address, acts []actions.Action) (common.Hash, error) {
	sw := timekeeper.NewStopwatchWithClock(s.now)
	txHash, op, err := s.executeStrategy(ctx, username, account, acts, sw)
	s.observe(sw)
	if err != nil {
		s.metrics.IncStrategyExecuted("failed")
		s.logger.Error("failed to execute strategy", "username", username, "account", account.Hex(), "kind", sdkerr.KindOf(err).String(), "err", err)
		return common.Hash{}, sdkerr.SDKError("Failed to execute strategy", err)
	}
	s.metrics.IncStrategyExecuted("success")
	s.logger.Info("strategy executed", append([]interface{}{"account", account.Hex(), "tx", txHash.Hex()}, sw.KeyValues()...)...)

	s.recordExecution(ctx, username, account, acts, op, txHash)
	return txHash, nil
}

func (s *SDK) executeStrategy(ctx context.Context, username string, account common.Address, acts []actions.Action, sw *timekeeper.Stopwatch) (common.Hash, *userop.UserOperation, error) {
	if len(acts) == 0 {
		return common.Hash{}, nil, sdkerr.EncodingError("strategy has no actions")
	}
	if account == (common.Address{}) {
		return common.Hash{}, nil, sdkerr.EncodingError("account is required")
	}
	deployed, err := s.builder.IsDeployed(ctx, account)
	if err != nil {
		return common.Hash{}, nil, err
	}
	if !deployed {
		return common.Hash{}, nil, sdkerr.UserOperationError("Invalid account", fmt.Errorf("%s is not deployed", account.Hex()))
	}

	calls, err := s.encoder.EncodeAll(acts, account)
	if err != nil {
		return common.Hash{}, nil, err
	}
	callData, err := actions.Compose(calls)
	if err != nil {
		return common.Hash{}, nil, err
	}
	for i, call := range calls {
		s.logger.Debug("encoded action", "index", i, "call", actions.Describe(call))
	}
	sw.Lap("encode")

	signature, err := s.authenticate(ctx, username)
	if err != nil {
		return common.Hash{}, nil, err
	}
	sw.Lap("authenticate")

	op, err := s.builder.Build(ctx, account, callData, signature, nil)
	if err != nil {
		return common.Hash{}, nil, err
	}
	sw.Lap("build")

	if op, err = s.estimator.Estimate(ctx, op); err != nil {
		return common.Hash{}, nil, err
	}
	if op, err = s.fees.Fill(ctx, op); err != nil {
		return common.Hash{}, nil, err
	}
	sw.Lap("estimate")

	txHash, err := preset.Submit(ctx, s.submitter, op)
	if err != nil {
		return common.Hash{}, nil, err
	}
	s.metrics.IncUserOpSubmitted(string(s.config.Mode))
	sw.Lap("submit")

	return txHash, op, nil
}

// authenticate asks the backend for a challenge, has the passkey sign it, gets the assertion
// accepted by the backend and returns the account-level signature.
func (s *SDK) authenticate(ctx context.Context, username string) ([]byte, error) {
	sig, err := s.assert(ctx, username)
	if err != nil {
		return nil, sdkerr.PassKeyError("Failed to authenticate", err)
	}
	return sig, nil
}

func (s *SDK) assert(ctx context.Context, username string) ([]byte, error) {
	options, err := s.backend.GetAuthenticationOptions(ctx, username)
	if err != nil {
		return nil, err
	}
	challenge, err := options.ChallengeBytes()
	if err != nil {
		return nil, err
	}

	result, err := s.authenticator.GetAssertion(ctx, *options)
	if err != nil {
		return nil, err
	}

	verification, err := s.backend.VerifyAuthentication(ctx, username, result)
	if err != nil {
		return nil, err
	}
	if !verification.Success {
		return nil, ErrAuthenticationFailed
	}

	normalized, err := passkey.Normalize(result, challenge)
	if err != nil {
		return nil, err
	}
	return normalized.Encode(ownerIndex)
}

// recordExecution stores a strategy that reached the chain. The transaction already happened, so
// a storage failure is logged and not returned.
func (s *SDK) recordExecution(ctx context.Context, username string, account common.Address, acts []actions.Action, op *userop.UserOperation, txHash common.Hash) {
	record := &schema.ExecutionRecord{
		ID:       schema.NewExecutionID(),
		Account:  account.Hex(),
		Username: username,
		Actions: lo.Map(acts, func(a actions.Action, _ int) string {
			return a.Kind().String()
		}),
		Mode:      string(s.config.Mode),
		TxHash:    txHash.Hex(),
		Status:    schema.ExecutionSuccess,
		CreatedAt: s.now().UnixMilli(),
	}

	record.UserOpHash = s.userOpHash(ctx, op)

	data, err := record.ToJSON()
	if err == nil {
		err = s.db.Set(schema.ExecutionStorageKey(account, record.ID), data)
	}
	if err != nil {
		s.logger.Error("failed to record execution", "account", account.Hex(), "tx", txHash.Hex(), "err", err)
	}
}

// userOpHash is the EntryPoint hash of op, or empty when the chain id cannot be read.
func (s *SDK) userOpHash(ctx context.Context, op *userop.UserOperation) string {
	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return ""
	}
	hash, err := op.GetUserOpHash(s.config.Addresses.WithDefaults().EntryPoint, chainID)
	if err != nil {
		return ""
	}
	return hash.Hex()
}

// ListExecutions returns the strategies recorded for account, oldest first.
func (s *SDK) ListExecutions(account common.Address) ([]*schema.ExecutionRecord, error) {
	items, err := s.db.GetByPrefix(schema.ExecutionByAccountPrefix(account))
	if err != nil {
		return nil, sdkerr.SDKError("Failed to list executions", err)
	}

	records := make([]*schema.ExecutionRecord, 0, len(items))
	for _, item := range items {
		record := &schema.ExecutionRecord{}
		if err := record.FromStorageData(item.Value); err != nil {
			return nil, sdkerr.SDKError("Failed to list executions",
				fmt.Errorf("corrupt record %s: %w", strings.TrimPrefix(string(item.Key), string(schema.ExecutionByAccountPrefix(account))), err))
		}
		records = append(records, record)
	}
	return records, nil
}

// CountExecutions returns how many executions are recorded for account without reading them.
func (s *SDK) CountExecutions(account common.Address) (int64, error) {
	n, err := s.db.CountKeysByPrefix(schema.ExecutionByAccountPrefix(account))
	if err != nil {
		return 0, sdkerr.SDKError("Failed to count executions", err)
	}
	return n, nil
}

func (s *SDK) observe(sw *timekeeper.Stopwatch) {
	for _, lap := range sw.Laps() {
		s.metrics.ObserveStep(lap.Name, lap.Duration)
	}
}
