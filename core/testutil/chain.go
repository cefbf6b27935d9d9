package testutil

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
)

// ReadHandler answers one contract read. The returned values are packed with the method's output
// types and unpacked again, so they must have the Go types the ABI decoder would produce.
type ReadHandler func(args []interface{}) ([]interface{}, error)

// ContractCall records one ReadContract invocation.
type ContractCall struct {
	To     common.Address
	Method string
	Args   []interface{}
}

// FakeChain is an in-memory chainio.Client. Reads are dispatched by method name, optionally scoped
// to a contract address.
type FakeChain struct {
	mu sync.Mutex

	handlers map[string]ReadHandler
	calls    []ContractCall
	sent     []*types.Transaction
	waited   []common.Hash
	code     map[common.Address][]byte

	ChainIDValue  *big.Int
	NonceValue    uint64
	TipCap        *big.Int
	BaseFee       *big.Int
	ReceiptStatus uint64
	ReceiptLogs   []*types.Log
	ReceiptErr    error
	SendErr       error
	CodeErr       error
}

func NewFakeChain() *FakeChain {
	return &FakeChain{
		handlers:      map[string]ReadHandler{},
		code:          map[common.Address][]byte{},
		ChainIDValue:  big.NewInt(8453),
		TipCap:        big.NewInt(1_000_000_000),
		BaseFee:       big.NewInt(2_000_000_000),
		ReceiptStatus: types.ReceiptStatusSuccessful,
	}
}

func handlerKey(address *common.Address, method string) string {
	if address == nil {
		return method
	}
	return strings.ToLower(address.Hex()) + ":" + method
}

// Handle answers method on any contract.
func (f *FakeChain) Handle(method string, h ReadHandler) *FakeChain {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handlerKey(nil, method)] = h
	return f
}

// HandleAt answers method on one contract only. It takes precedence over Handle.
func (f *FakeChain) HandleAt(address common.Address, method string, h ReadHandler) *FakeChain {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[handlerKey(&address, method)] = h
	return f
}

// Return answers method on any contract with fixed values.
func (f *FakeChain) Return(method string, values ...interface{}) *FakeChain {
	return f.Handle(method, func([]interface{}) ([]interface{}, error) { return values, nil })
}

// ReturnAt answers method on one contract with fixed values.
func (f *FakeChain) ReturnAt(address common.Address, method string, values ...interface{}) *FakeChain {
	return f.HandleAt(address, method, func([]interface{}) ([]interface{}, error) { return values, nil })
}

// Fail makes every read of method return err.
func (f *FakeChain) Fail(method string, err error) *FakeChain {
	return f.Handle(method, func([]interface{}) ([]interface{}, error) { return nil, err })
}

// Calls returns the reads performed so far, in order.
func (f *FakeChain) Calls() []ContractCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ContractCall(nil), f.calls...)
}

// CallsTo returns the reads of one method.
func (f *FakeChain) CallsTo(method string) []ContractCall {
	var out []ContractCall
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SetCode places runtime code at address, which marks it as a deployed contract.
func (f *FakeChain) SetCode(address common.Address, code []byte) *FakeChain {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[address] = append([]byte(nil), code...)
	return f
}

// Waited returns the transaction hashes whose receipts were awaited, in order.
func (f *FakeChain) Waited() []common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Hash(nil), f.waited...)
}

// Sent returns the raw transactions broadcast so far.
func (f *FakeChain) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *FakeChain) ReadContract(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	// Packing validates the argument types exactly as a real call would.
	if _, err := contractABI.Pack(method, args...); err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, ContractCall{To: address, Method: method, Args: args})
	h, ok := f.handlers[handlerKey(&address, method)]
	if !ok {
		h, ok = f.handlers[handlerKey(nil, method)]
	}
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s on %s", method, address.Hex())
	}

	values, err := h(args)
	if err != nil {
		return nil, err
	}

	output, err := contractABI.Methods[method].Outputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("fake %s returned values not matching its outputs: %w", method, err)
	}
	return contractABI.Unpack(method, output)
}

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ChainIDValue), nil
}

func (f *FakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.NonceValue, nil
}

func (f *FakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.TipCap), nil
}

func (f *FakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: new(big.Int).Set(f.BaseFee)}, nil
}

func (f *FakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if f.CodeErr != nil {
		return nil, f.CodeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.code[account]...), nil
}

func (f *FakeChain) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if f.SendErr != nil {
		return common.Hash{}, f.SendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("invalid raw transaction: %w", err)
	}

	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	return tx.Hash(), nil
}

func (f *FakeChain) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	f.waited = append(f.waited, hash)
	f.mu.Unlock()

	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	return &types.Receipt{
		Status:      f.ReceiptStatus,
		TxHash:      hash,
		BlockNumber: big.NewInt(1),
		Logs:        f.ReceiptLogs,
	}, nil
}

// UserOperationEventLog builds the log the EntryPoint emits after running one operation.
func UserOperationEventLog(entrypoint common.Address, userOpHash common.Hash, sender common.Address, success bool) *types.Log {
	event := aa.EntryPointABI.Events["UserOperationEvent"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(0), success, big.NewInt(21000), big.NewInt(150000))
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: entrypoint,
		Topics: []common.Hash{
			event.ID,
			userOpHash,
			common.BytesToHash(sender.Bytes()),
			{},
		},
		Data: data,
	}
}
