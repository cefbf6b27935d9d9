package aerodrome

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/core/testutil"
)

var (
	poolA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	poolB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	poolC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func poolChain(balances map[common.Address]int64) *testutil.FakeChain {
	pools := []common.Address{poolA, poolB, poolC}
	chain := testutil.NewFakeChain()
	chain.ReturnAt(aa.DefaultAerodromeFactoryAddress, "allPoolsLength", big.NewInt(int64(len(pools))))
	chain.HandleAt(aa.DefaultAerodromeFactoryAddress, "allPools", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{pools[args[0].(*big.Int).Int64()]}, nil
	})

	for i, p := range pools {
		chain.ReturnAt(p, "balanceOf", big.NewInt(balances[p]))
		chain.ReturnAt(p, "token0", testutil.TestTokenA)
		chain.ReturnAt(p, "token1", testutil.TestTokenB)
		chain.ReturnAt(p, "stable", i%2 == 1)
		chain.ReturnAt(p, "getReserves", big.NewInt(1000*int64(i+1)), big.NewInt(2000*int64(i+1)), big.NewInt(1700000000))
		chain.ReturnAt(p, "totalSupply", big.NewInt(500))
	}
	return chain
}

func TestGetUserPools(t *testing.T) {
	chain := poolChain(map[common.Address]int64{poolA: 10, poolC: 30})
	r := NewResolver(chain, aa.Addresses{}, nil, nil)

	pools, err := r.GetUserPools(context.Background(), testutil.TestAccount)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, poolA, pools[0].PoolAddress)
	assert.Equal(t, int64(10), pools[0].UserLpBalance.Int64())
	assert.Equal(t, int64(1000), pools[0].ReserveToken0.Int64())
	assert.Equal(t, int64(2000), pools[0].ReserveToken1.Int64())
	assert.False(t, pools[0].IsStable)

	assert.Equal(t, poolC, pools[1].PoolAddress)
	assert.Equal(t, testutil.TestTokenA, pools[1].Token0)
	assert.Equal(t, int64(500), pools[1].TotalSupply.Int64())

	// pools with no balance are not read further
	for _, c := range chain.CallsTo("getReserves") {
		assert.NotEqual(t, poolB, c.To)
	}
	for _, c := range chain.CallsTo("balanceOf") {
		assert.Equal(t, testutil.TestAccount, c.Args[0])
	}
}

func TestGetUserPoolsEmpty(t *testing.T) {
	r := NewResolver(poolChain(nil), aa.Addresses{}, nil, nil)

	pools, err := r.GetUserPools(context.Background(), testutil.TestAccount)
	require.NoError(t, err)
	assert.NotNil(t, pools)
	assert.Empty(t, pools)
}

func TestGetUserPoolsReadFailure(t *testing.T) {
	chain := poolChain(map[common.Address]int64{poolB: 1})
	chain.HandleAt(poolB, "getReserves", func([]interface{}) ([]interface{}, error) {
		return nil, errors.New("header not found")
	})

	_, err := NewResolver(chain, aa.Addresses{}, nil, nil).GetUserPools(context.Background(), testutil.TestAccount)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header not found")
}

func TestQuotes(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.HandleAt(aa.DefaultAerodromeRouterAddress, "quoteAddLiquidity", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{args[4], big.NewInt(42), big.NewInt(7)}, nil
	})
	chain.ReturnAt(aa.DefaultAerodromeRouterAddress, "quoteRemoveLiquidity", big.NewInt(11), big.NewInt(22))

	r := NewResolver(chain, aa.Addresses{}, nil, nil)
	a := actions.TokenInfo{Address: testutil.TestTokenA}
	b := actions.TokenInfo{Address: testutil.TestTokenB}

	q, err := r.GetAddLiquidityQuote(context.Background(), a, b, big.NewInt(100), nil, true)
	require.NoError(t, err)
	assert.Equal(t, int64(100), q.AmountA.Int64())
	assert.Equal(t, int64(42), q.AmountB.Int64())
	assert.Equal(t, int64(7), q.Liquidity.Int64())

	call := chain.CallsTo("quoteAddLiquidity")[0]
	assert.Equal(t, aa.DefaultAerodromeFactoryAddress, call.Args[3])
	assert.Equal(t, maxUint256, call.Args[5])

	q, err = r.GetRemoveLiquidityQuote(context.Background(), a, b, big.NewInt(5), false)
	require.NoError(t, err)
	assert.Equal(t, int64(11), q.AmountA.Int64())
	assert.Nil(t, q.Liquidity)
}

func TestTokenMetadataIsCached(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.ReturnAt(testutil.TestTokenA, "symbol", "USDC")
	chain.ReturnAt(testutil.TestTokenA, "decimals", uint8(6))

	r := NewResolver(chain, aa.Addresses{}, testutil.GetDefaultCache(), nil)
	for i := 0; i < 3; i++ {
		info, err := r.TokenMetadata(context.Background(), testutil.TestTokenA)
		require.NoError(t, err)
		assert.Equal(t, actions.TokenInfo{Address: testutil.TestTokenA, Symbol: "USDC", Decimals: 6}, info)
	}
	assert.Len(t, chain.CallsTo("symbol"), 1)
}

func TestTokenBalance(t *testing.T) {
	chain := testutil.NewFakeChain()
	chain.ReturnAt(testutil.TestTokenA, "balanceOf", big.NewInt(123456))

	balance, err := NewResolver(chain, aa.Addresses{}, nil, nil).TokenBalance(context.Background(), testutil.TestTokenA, testutil.TestAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), balance.Int64())
}
