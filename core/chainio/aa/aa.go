package aa

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
)

var defaultSalt = big.NewInt(0)

// Call is one entry of CoinbaseSmartWallet.executeBatch.
type Call struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// GetInitCode returns factory address ++ createAccount(owners, salt).
func GetInitCode(factory common.Address, owners [][]byte, salt *big.Int) ([]byte, error) {
	if len(owners) == 0 {
		return nil, fmt.Errorf("at least one owner is required")
	}
	if salt == nil {
		salt = defaultSalt
	}

	calldata, err := SmartWalletFactoryABI.Pack("createAccount", owners, salt)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, common.AddressLength+len(calldata))
	data = append(data, factory.Bytes()...)
	data = append(data, calldata...)
	return data, nil
}

// GetSenderAddress asks the factory for the counterfactual account address of owners and salt.
func GetSenderAddress(ctx context.Context, reader chainio.Reader, factory common.Address, owners [][]byte, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = defaultSalt
	}

	out, err := reader.ReadContract(ctx, factory, SmartWalletFactoryABI, "getAddress", owners, salt)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("getAddress returned %d values", len(out))
	}
	sender, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getAddress returned %T", out[0])
	}
	return sender, nil
}

// GetNonce reads EntryPoint.getNonce(sender, key). A nil key reads the default sequence.
func GetNonce(ctx context.Context, reader chainio.Reader, entrypoint, sender common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = defaultSalt
	}

	out, err := reader.ReadContract(ctx, entrypoint, EntryPointABI, "getNonce", sender, key)
	if err != nil {
		return nil, err
	}
	return firstBigInt("getNonce", out)
}

// PackExecuteBatch generates the smart account calldata for an ordered list of calls.
func PackExecuteBatch(calls []Call) ([]byte, error) {
	batch := make([]Call, len(calls))
	for i, c := range calls {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		data := c.Data
		if data == nil {
			data = []byte{}
		}
		batch[i] = Call{Target: c.Target, Value: value, Data: data}
	}
	return SmartWalletABI.Pack("executeBatch", batch)
}

// PackConnectorExecute wraps connector calldata in ConnectorPlugin.execute(connector, data).
func PackConnectorExecute(connector common.Address, data []byte) ([]byte, error) {
	return ConnectorPluginABI.Pack("execute", connector, data)
}

// PackHandleOps encodes EntryPoint.handleOps(ops, beneficiary).
func PackHandleOps(ops []*userop.UserOperation, beneficiary common.Address) ([]byte, error) {
	tuples := make([]userop.UserOperation, len(ops))
	for i, op := range ops {
		tuples[i] = *op.Clone()
	}
	return EntryPointABI.Pack("handleOps", tuples, beneficiary)
}

// UserOperationEvent is the EntryPoint's per-operation outcome log.
type UserOperationEvent struct {
	UserOpHash    common.Hash
	Sender        common.Address
	Paymaster     common.Address
	Nonce         *big.Int
	Success       bool
	ActualGasCost *big.Int
	ActualGasUsed *big.Int
}

// FindUserOperationEvent returns the UserOperationEvent emitted by entrypoint for sender, or nil
// when the logs carry none. handleOps does not revert when the operation's own call fails, so this
// event is the only record of the outcome.
func FindUserOperationEvent(logs []*types.Log, entrypoint, sender common.Address) (*UserOperationEvent, error) {
	event := EntryPointABI.Events["UserOperationEvent"]
	for _, l := range logs {
		if l == nil || l.Address != entrypoint || len(l.Topics) != 4 || l.Topics[0] != event.ID {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != sender {
			continue
		}

		values, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode UserOperationEvent: %w", err)
		}
		if len(values) != 4 {
			return nil, fmt.Errorf("UserOperationEvent carries %d values", len(values))
		}
		nonce, _ := values[0].(*big.Int)
		success, _ := values[1].(bool)
		gasCost, _ := values[2].(*big.Int)
		gasUsed, _ := values[3].(*big.Int)

		return &UserOperationEvent{
			UserOpHash:    l.Topics[1],
			Sender:        sender,
			Paymaster:     common.BytesToAddress(l.Topics[3].Bytes()),
			Nonce:         nonce,
			Success:       success,
			ActualGasCost: gasCost,
			ActualGasUsed: gasUsed,
		}, nil
	}
	return nil, nil
}

func firstBigInt(method string, out []interface{}) (*big.Int, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}
