// Package aerodrome reads pool state, quotes and token data from the Aerodrome contracts.
package aerodrome

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
)

// poolReadConcurrency bounds the number of pools inspected in parallel.
const poolReadConcurrency = 8

// PoolDetails is a snapshot of one pool in which the user holds LP tokens.
type PoolDetails struct {
	PoolAddress   common.Address `json:"poolAddress"`
	Token0        common.Address `json:"token0"`
	Token1        common.Address `json:"token1"`
	IsStable      bool           `json:"isStable"`
	UserLpBalance *big.Int       `json:"userLpBalance"`
	ReserveToken0 *big.Int       `json:"reserveToken0"`
	ReserveToken1 *big.Int       `json:"reserveToken1"`
	TotalSupply   *big.Int       `json:"totalSupply"`
}

// Quote is a router quote. Liquidity is only set for deposits.
type Quote struct {
	AmountA   *big.Int `json:"amountA"`
	AmountB   *big.Int `json:"amountB"`
	Liquidity *big.Int `json:"liquidity,omitempty"`
}

type Resolver struct {
	client chainio.Reader
	addrs  aa.Addresses
	cache  *bigcache.BigCache
	logger logger.Logger
}

// NewResolver builds a resolver. cache may be nil, in which case token metadata is read every time.
func NewResolver(client chainio.Reader, addrs aa.Addresses, cache *bigcache.BigCache, lgr logger.Logger) *Resolver {
	return &Resolver{
		client: client,
		addrs:  addrs.WithDefaults(),
		cache:  cache,
		logger: logger.EnsureLogger(lgr),
	}
}

// GetUserPools walks every pool of the factory and returns those where user has a non-zero LP
// balance, in factory order. Nothing is cached; every call is a fresh snapshot.
func (r *Resolver) GetUserPools(ctx context.Context, user common.Address) ([]PoolDetails, error) {
	out, err := r.client.ReadContract(ctx, r.addrs.AerodromeFactory, aa.AerodromeFactoryABI, "allPoolsLength")
	if err != nil {
		return nil, fmt.Errorf("allPoolsLength: %w", err)
	}
	length, ok := out[0].(*big.Int)
	if !ok || !length.IsInt64() {
		return nil, fmt.Errorf("allPoolsLength: unexpected result %v", out[0])
	}

	n := int(length.Int64())
	found := make([]*PoolDetails, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolReadConcurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			pool, err := r.poolAt(gctx, big.NewInt(int64(i)), user)
			if err != nil {
				return err
			}
			found[i] = pool
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pools := make([]PoolDetails, 0)
	for _, p := range found {
		if p != nil {
			pools = append(pools, *p)
		}
	}
	r.logger.Debug("resolved user pools", "user", user.Hex(), "scanned", n, "held", len(pools))
	return pools, nil
}

// poolAt returns nil when user holds nothing in the pool.
func (r *Resolver) poolAt(ctx context.Context, index *big.Int, user common.Address) (*PoolDetails, error) {
	out, err := r.client.ReadContract(ctx, r.addrs.AerodromeFactory, aa.AerodromeFactoryABI, "allPools", index)
	if err != nil {
		return nil, fmt.Errorf("allPools(%s): %w", index, err)
	}
	pool := out[0].(common.Address)

	read := func(method string, args ...interface{}) ([]interface{}, error) {
		out, err := r.client.ReadContract(ctx, pool, aa.AerodromePoolABI, method, args...)
		if err != nil {
			return nil, fmt.Errorf("%s on pool %s: %w", method, pool.Hex(), err)
		}
		return out, nil
	}

	balance, err := read("balanceOf", user)
	if err != nil {
		return nil, err
	}
	lp := balance[0].(*big.Int)
	if lp.Sign() == 0 {
		return nil, nil
	}

	token0, err := read("token0")
	if err != nil {
		return nil, err
	}
	token1, err := read("token1")
	if err != nil {
		return nil, err
	}
	stable, err := read("stable")
	if err != nil {
		return nil, err
	}
	reserves, err := read("getReserves")
	if err != nil {
		return nil, err
	}
	supply, err := read("totalSupply")
	if err != nil {
		return nil, err
	}

	return &PoolDetails{
		PoolAddress:   pool,
		Token0:        token0[0].(common.Address),
		Token1:        token1[0].(common.Address),
		IsStable:      stable[0].(bool),
		UserLpBalance: lp,
		ReserveToken0: reserves[0].(*big.Int),
		ReserveToken1: reserves[1].(*big.Int),
		TotalSupply:   supply[0].(*big.Int),
	}, nil
}

// GetAddLiquidityQuote asks the router how much of each token a deposit would use and the LP
// amount minted. amountB is the desired amount of tokenB; pass nil to let the pool ratio decide.
func (r *Resolver) GetAddLiquidityQuote(ctx context.Context, tokenA, tokenB actions.TokenInfo, amountA, amountB *big.Int, isStable bool) (*Quote, error) {
	if amountA == nil {
		return nil, fmt.Errorf("amountA is required")
	}
	if amountB == nil {
		amountB = maxUint256
	}
	out, err := r.client.ReadContract(ctx, r.addrs.AerodromeRouter, aa.AerodromeRouterABI, "quoteAddLiquidity",
		tokenA.Address, tokenB.Address, isStable, r.addrs.AerodromeFactory, amountA, amountB)
	if err != nil {
		return nil, fmt.Errorf("quoteAddLiquidity: %w", err)
	}
	return &Quote{
		AmountA:   out[0].(*big.Int),
		AmountB:   out[1].(*big.Int),
		Liquidity: out[2].(*big.Int),
	}, nil
}

// GetRemoveLiquidityQuote asks the router what burning liquidity LP tokens returns.
func (r *Resolver) GetRemoveLiquidityQuote(ctx context.Context, tokenA, tokenB actions.TokenInfo, liquidity *big.Int, isStable bool) (*Quote, error) {
	if liquidity == nil {
		return nil, fmt.Errorf("liquidity is required")
	}
	out, err := r.client.ReadContract(ctx, r.addrs.AerodromeRouter, aa.AerodromeRouterABI, "quoteRemoveLiquidity",
		tokenA.Address, tokenB.Address, isStable, r.addrs.AerodromeFactory, liquidity)
	if err != nil {
		return nil, fmt.Errorf("quoteRemoveLiquidity: %w", err)
	}
	return &Quote{
		AmountA: out[0].(*big.Int),
		AmountB: out[1].(*big.Int),
	}, nil
}

// TokenBalance is the ERC20 balance of holder in base units.
func (r *Resolver) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	out, err := r.client.ReadContract(ctx, token, aa.ERC20ABI, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("balanceOf on %s: %w", token.Hex(), err)
	}
	return out[0].(*big.Int), nil
}

// TokenMetadata reads symbol and decimals. Token metadata never changes, so results are cached
// for the cache's lifetime.
func (r *Resolver) TokenMetadata(ctx context.Context, token common.Address) (actions.TokenInfo, error) {
	key := "erc20:" + strings.ToLower(token.Hex())
	if r.cache != nil {
		if data, err := r.cache.Get(key); err == nil {
			var info actions.TokenInfo
			if err := json.Unmarshal(data, &info); err == nil {
				return info, nil
			}
		}
	}

	symbol, err := r.client.ReadContract(ctx, token, aa.ERC20ABI, "symbol")
	if err != nil {
		return actions.TokenInfo{}, fmt.Errorf("symbol on %s: %w", token.Hex(), err)
	}
	decimals, err := r.client.ReadContract(ctx, token, aa.ERC20ABI, "decimals")
	if err != nil {
		return actions.TokenInfo{}, fmt.Errorf("decimals on %s: %w", token.Hex(), err)
	}

	info := actions.TokenInfo{
		Address:  token,
		Symbol:   symbol[0].(string),
		Decimals: decimals[0].(uint8),
	}
	if r.cache != nil {
		if data, err := json.Marshal(info); err == nil {
			// a failed set only costs a re-read
			_ = r.cache.Set(key, data)
		}
	}
	return info, nil
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
