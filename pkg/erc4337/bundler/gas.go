package bundler

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type GasEstimation struct {
	PreVerificationGas   *big.Int
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
}

// gasEstimationResult accepts both the v0.6 "verificationGas" and the newer "verificationGasLimit"
// field names bundlers use.
type gasEstimationResult struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	VerificationGas      *hexutil.Big `json:"verificationGas"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

func (r gasEstimationResult) toEstimation() (*GasEstimation, error) {
	verification := r.VerificationGasLimit
	if verification == nil {
		verification = r.VerificationGas
	}
	if r.PreVerificationGas == nil || verification == nil || r.CallGasLimit == nil {
		return nil, fmt.Errorf("incomplete gas estimation in bundler response")
	}

	return &GasEstimation{
		PreVerificationGas:   new(big.Int).Set(r.PreVerificationGas.ToInt()),
		VerificationGasLimit: new(big.Int).Set(verification.ToInt()),
		CallGasLimit:         new(big.Int).Set(r.CallGasLimit.ToInt()),
	}, nil
}
