package eip1559

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// MinPriorityFee keeps bundlers and relayers profitable
	MinPriorityFee = big.NewInt(2_000_000_000) // 2 gwei
	// MinMaxFee guards against high-basefee spikes on L2s like Base
	MinMaxFee = big.NewInt(20_000_000_000) // 20 gwei

	tipBufferPercent = big.NewInt(13)
)

// FeeSource is the subset of a node client needed to price a transaction.
type FeeSource interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// SuggestFee returns (maxFeePerGas, maxPriorityFeePerGas) for the next block.
func SuggestFee(ctx context.Context, client FeeSource) (*big.Int, *big.Int, error) {
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	// 13% buffer on top of the node's tip
	buffer := new(big.Int).Div(tipCap, big.NewInt(100))
	buffer.Mul(buffer, tipBufferPercent)
	maxPriorityFeePerGas := new(big.Int).Add(tipCap, buffer)
	if maxPriorityFeePerGas.Cmp(MinPriorityFee) < 0 {
		maxPriorityFeePerGas = new(big.Int).Set(MinPriorityFee)
	}

	if header.BaseFee == nil {
		// pre-London chain
		return new(big.Int).Set(maxPriorityFeePerGas), maxPriorityFeePerGas, nil
	}

	// maxFeePerGas = 2 * baseFee + tip, tolerates the baseFee doubling between blocks
	maxFeePerGas := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), maxPriorityFeePerGas)
	if maxFeePerGas.Cmp(MinMaxFee) < 0 {
		maxFeePerGas = new(big.Int).Set(MinMaxFee)
	}

	return maxFeePerGas, maxPriorityFeePerGas, nil
}
