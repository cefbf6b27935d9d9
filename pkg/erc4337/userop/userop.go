// Package userop holds the ERC-4337 (EntryPoint v0.6) UserOperation structure.
package userop

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// UserOperation field names match the EntryPoint ABI tuple so the struct can be packed directly.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// New returns an operation with every gas and fee field zero and empty byte fields.
func New(sender common.Address, nonce *big.Int, callData []byte) *UserOperation {
	if nonce == nil {
		nonce = new(big.Int)
	}
	return &UserOperation{
		Sender:               sender,
		Nonce:                new(big.Int).Set(nonce),
		InitCode:             []byte{},
		CallData:             common.CopyBytes(callData),
		CallGasLimit:         new(big.Int),
		VerificationGasLimit: new(big.Int),
		PreVerificationGas:   new(big.Int),
		MaxFeePerGas:         new(big.Int),
		MaxPriorityFeePerGas: new(big.Int),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}
}

// IsDeployment reports whether the operation deploys its sender.
func (op *UserOperation) IsDeployment() bool {
	return len(op.InitCode) > 0
}

// Clone returns a deep copy. Nil numeric fields become zero so the copy is always packable.
func (op *UserOperation) Clone() *UserOperation {
	return &UserOperation{
		Sender:               op.Sender,
		Nonce:                copyInt(op.Nonce),
		InitCode:             copyBytes(op.InitCode),
		CallData:             copyBytes(op.CallData),
		CallGasLimit:         copyInt(op.CallGasLimit),
		VerificationGasLimit: copyInt(op.VerificationGasLimit),
		PreVerificationGas:   copyInt(op.PreVerificationGas),
		MaxFeePerGas:         copyInt(op.MaxFeePerGas),
		MaxPriorityFeePerGas: copyInt(op.MaxPriorityFeePerGas),
		PaymasterAndData:     copyBytes(op.PaymasterAndData),
		Signature:            copyBytes(op.Signature),
	}
}

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)
	bytes32T, _ = abi.NewType("bytes32", "", nil)

	packArgs = abi.Arguments{
		{Type: addressT}, {Type: uint256T}, {Type: bytes32T}, {Type: bytes32T},
		{Type: uint256T}, {Type: uint256T}, {Type: uint256T}, {Type: uint256T}, {Type: uint256T},
		{Type: bytes32T},
	}
	hashArgs = abi.Arguments{{Type: bytes32T}, {Type: addressT}, {Type: uint256T}}
)

// Pack encodes the operation the way EntryPoint v0.6 does before hashing: dynamic byte fields are
// replaced by their keccak256 and the signature is excluded.
func (op *UserOperation) Pack() ([]byte, error) {
	c := op.Clone()
	return packArgs.Pack(
		c.Sender,
		c.Nonce,
		crypto.Keccak256Hash(c.InitCode),
		crypto.Keccak256Hash(c.CallData),
		c.CallGasLimit,
		c.VerificationGasLimit,
		c.PreVerificationGas,
		c.MaxFeePerGas,
		c.MaxPriorityFeePerGas,
		crypto.Keccak256Hash(c.PaymasterAndData),
	)
}

// GetUserOpHash returns keccak256(abi.encode(keccak256(pack(op)), entrypoint, chainID)).
func (op *UserOperation) GetUserOpHash(entrypoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed, err := op.Pack()
	if err != nil {
		return common.Hash{}, err
	}
	if chainID == nil {
		chainID = new(big.Int)
	}
	encoded, err := hashArgs.Pack(crypto.Keccak256Hash(packed), entrypoint, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

// wireUserOperation is the JSON-RPC representation used by bundlers: hex quantities and hex bytes.
type wireUserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

func (op UserOperation) MarshalJSON() ([]byte, error) {
	c := op.Clone()
	return json.Marshal(wireUserOperation{
		Sender:               c.Sender,
		Nonce:                (*hexutil.Big)(c.Nonce),
		InitCode:             c.InitCode,
		CallData:             c.CallData,
		CallGasLimit:         (*hexutil.Big)(c.CallGasLimit),
		VerificationGasLimit: (*hexutil.Big)(c.VerificationGasLimit),
		PreVerificationGas:   (*hexutil.Big)(c.PreVerificationGas),
		MaxFeePerGas:         (*hexutil.Big)(c.MaxFeePerGas),
		MaxPriorityFeePerGas: (*hexutil.Big)(c.MaxPriorityFeePerGas),
		PaymasterAndData:     c.PaymasterAndData,
		Signature:            c.Signature,
	})
}

func (op *UserOperation) UnmarshalJSON(data []byte) error {
	var w wireUserOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid user operation: %w", err)
	}
	*op = UserOperation{
		Sender:               w.Sender,
		Nonce:                w.Nonce.ToInt(),
		InitCode:             w.InitCode,
		CallData:             w.CallData,
		CallGasLimit:         w.CallGasLimit.ToInt(),
		VerificationGasLimit: w.VerificationGasLimit.ToInt(),
		PreVerificationGas:   w.PreVerificationGas.ToInt(),
		MaxFeePerGas:         w.MaxFeePerGas.ToInt(),
		MaxPriorityFeePerGas: w.MaxPriorityFeePerGas.ToInt(),
		PaymasterAndData:     w.PaymasterAndData,
		Signature:            w.Signature,
	}
	*op = *op.Clone()
	return nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return common.CopyBytes(b)
}
