package cmd

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/sdk"
)

var (
	quoteDeposit bool
	quoteStable  bool

	tokensCmd = &cobra.Command{
		Use:   "tokens",
		Short: "List configured tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			tokens, err := s.GetTokenList(cmd.Context())
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), tokens)
			return nil
		},
	}

	balanceCmd = &cobra.Command{
		Use:   "balance <token> <holder>",
		Short: "Show an ERC20 balance",
		Args:  requireArgs(2, "<token> <holder>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			holder, err := parseAddress(args[1])
			if err != nil {
				return err
			}

			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			balance, err := s.GetTokenBalance(cmd.Context(), token, holder)
			if err != nil {
				return err
			}
			out := map[string]string{"token": token.Hex(), "holder": holder.Hex(), "balance": balance}
			if info, err := findToken(cmd, s, args[0]); err == nil {
				if amount, ok := parseBig(balance); ok {
					out["formatted"] = sdk.FormatAmount(amount, info.Decimals) + " " + info.Symbol
				}
			}
			printResult(cmd.OutOrStdout(), out)
			return nil
		},
	}

	poolsCmd = &cobra.Command{
		Use:   "pools <user>",
		Short: "List Aerodrome pools where the user holds LP tokens",
		Args:  requireArgs(1, "<user>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			pools, err := s.GetUserPools(cmd.Context(), user)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), pools)
			return nil
		},
	}

	quoteCmd = &cobra.Command{
		Use:   "quote <tokenA> <tokenB> <amount>",
		Short: "Quote a deposit or withdrawal",
		Long: `Quote adding or removing liquidity.

amount is in whole tokens: tokenA for --deposit, LP tokens otherwise.
Tokens are symbols or addresses from the configured token list.`,
		Args: requireArgs(3, "<tokenA> <tokenB> <amount>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			tokenA, err := findToken(cmd, s, args[0])
			if err != nil {
				return err
			}
			tokenB, err := findToken(cmd, s, args[1])
			if err != nil {
				return err
			}

			decimals := uint8(lpDecimals)
			if quoteDeposit {
				decimals = tokenA.Decimals
			}
			amount, err := actions.ParseAmount(args[2], decimals)
			if err != nil {
				return err
			}

			quote, err := s.GetQuote(cmd.Context(), tokenA, tokenB, quoteDeposit, amount.String(), quoteStable)
			if err != nil {
				return err
			}
			out := map[string]string{
				"amountA": sdk.FormatAmount(quote.AmountA, tokenA.Decimals) + " " + tokenA.Symbol,
				"amountB": sdk.FormatAmount(quote.AmountB, tokenB.Decimals) + " " + tokenB.Symbol,
			}
			if quote.Liquidity != nil {
				out["liquidity"] = sdk.FormatAmount(quote.Liquidity, lpDecimals)
			}
			printResult(cmd.OutOrStdout(), out)
			return nil
		},
	}
)

// Aerodrome pool tokens always have 18 decimals
const lpDecimals = 18

func init() {
	quoteCmd.Flags().BoolVar(&quoteDeposit, "deposit", false, "quote a deposit instead of a withdrawal")
	quoteCmd.Flags().BoolVar(&quoteStable, "stable", false, "use the stable pool")

	rootCmd.AddCommand(tokensCmd, balanceCmd, poolsCmd, quoteCmd)
}

func parseBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// findToken matches a symbol, case insensitively, or an address against the token list.
func findToken(cmd *cobra.Command, s *sdk.SDK, ref string) (actions.TokenInfo, error) {
	tokens, err := s.GetTokenList(cmd.Context())
	if err != nil {
		return actions.TokenInfo{}, err
	}
	return matchToken(tokens, ref)
}

func matchToken(tokens []actions.TokenInfo, ref string) (actions.TokenInfo, error) {
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, ref) {
			return t, nil
		}
		if common.IsHexAddress(ref) && t.Address == common.HexToAddress(ref) {
			return t, nil
		}
	}
	return actions.TokenInfo{}, fmt.Errorf("unknown token %q; add it to tokens in the config", ref)
}
