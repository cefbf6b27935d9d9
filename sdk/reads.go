package sdk

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/aerodrome"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// GetUserPools lists the Aerodrome pools where user holds LP tokens.
func (s *SDK) GetUserPools(ctx context.Context, user common.Address) ([]aerodrome.PoolDetails, error) {
	pools, err := s.resolver.GetUserPools(ctx, user)
	if err != nil {
		return nil, sdkerr.AerodromeError("Failed to get user pools", err)
	}
	return pools, nil
}

// GetTokenBalance returns the balance of user in base units, as a decimal string.
func (s *SDK) GetTokenBalance(ctx context.Context, token, user common.Address) (string, error) {
	balance, err := s.resolver.TokenBalance(ctx, token, user)
	if err != nil {
		return "", sdkerr.SDKError("Failed to get token balance", err)
	}
	return balance.String(), nil
}

// GetTokenList returns the configured tokens. Entries configured without a symbol or decimals
// get them from the token contract.
func (s *SDK) GetTokenList(ctx context.Context) ([]actions.TokenInfo, error) {
	tokens := make([]actions.TokenInfo, 0, len(s.config.Tokens))
	for _, token := range s.config.Tokens {
		if token.Symbol == "" || token.Decimals == 0 {
			meta, err := s.resolver.TokenMetadata(ctx, token.Address)
			if err != nil {
				return nil, sdkerr.SDKError("Failed to get token list", err)
			}
			if token.Symbol == "" {
				token.Symbol = meta.Symbol
			}
			if token.Decimals == 0 {
				token.Decimals = meta.Decimals
			}
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// GetQuote asks the router what a deposit or withdrawal would yield. amount is in base units:
// the amount of tokenA for a deposit, the LP amount for a withdrawal.
func (s *SDK) GetQuote(ctx context.Context, tokenA, tokenB actions.TokenInfo, isDeposit bool, amount string, isStable bool) (*aerodrome.Quote, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok || value.Sign() < 0 {
		return nil, sdkerr.AerodromeError("Failed to get quote", fmt.Errorf("invalid amount %q", amount))
	}

	var (
		quote *aerodrome.Quote
		err   error
	)
	if isDeposit {
		quote, err = s.resolver.GetAddLiquidityQuote(ctx, tokenA, tokenB, value, nil, isStable)
	} else {
		quote, err = s.resolver.GetRemoveLiquidityQuote(ctx, tokenA, tokenB, value, isStable)
	}
	if err != nil {
		return nil, sdkerr.AerodromeError("Failed to get quote", err)
	}
	return quote, nil
}

// FormatAmount renders a base-unit amount in whole tokens.
func FormatAmount(amount *big.Int, decimals uint8) string {
	return actions.FormatAmount(amount, decimals)
}
