package bundler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperationReceipt is the result of eth_getUserOperationReceipt.
type UserOperationReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// TransactionHash is the hash of the bundle transaction that included the operation.
func (r *UserOperationReceipt) TransactionHash() common.Hash {
	return r.Receipt.TransactionHash
}
