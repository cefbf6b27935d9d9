// Package actions turns user intents into smart account calls.
package actions

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Kind int

const (
	KindSwap Kind = iota + 1
	KindDeposit
	KindWithdraw
	KindApprove
	KindWrap
)

func (k Kind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindApprove:
		return "approve"
	case KindWrap:
		return "wrap"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{KindSwap, KindDeposit, KindWithdraw, KindApprove, KindWrap} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Action is one user intent. The set of implementations is closed: Swap, Deposit, Withdraw,
// Approve and Wrap.
type Action interface {
	Kind() Kind
	isAction()
}

// TokenInfo is immutable reference data. Decimals governs amount scaling for the token.
type TokenInfo struct {
	Address  common.Address `json:"address" yaml:"address"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

type Swap struct {
	TokenIn   TokenInfo
	TokenOut  TokenInfo
	AmountIn  *big.Int
	IsStable  bool
	Recipient *common.Address
}

type Deposit struct {
	TokenA    TokenInfo
	TokenB    TokenInfo
	AmountA   *big.Int
	AmountB   *big.Int
	IsStable  bool
	Recipient *common.Address
}

type Withdraw struct {
	TokenA     TokenInfo
	TokenB     TokenInfo
	Liquidity  *big.Int
	AmountAMin *big.Int
	AmountBMin *big.Int
	IsStable   bool
	Recipient  *common.Address
}

// Approve lets spender move amount of token out of the account.
type Approve struct {
	Token   *common.Address
	Spender *common.Address
	Amount  *big.Int
}

// Wrap converts native ETH held by the account into WETH.
type Wrap struct {
	Amount *big.Int
}

func (Swap) Kind() Kind     { return KindSwap }
func (Deposit) Kind() Kind  { return KindDeposit }
func (Withdraw) Kind() Kind { return KindWithdraw }
func (Approve) Kind() Kind  { return KindApprove }
func (Wrap) Kind() Kind     { return KindWrap }

func (Swap) isAction()     {}
func (Deposit) isAction()  {}
func (Withdraw) isAction() {}
func (Approve) isAction()  {}
func (Wrap) isAction()     {}

// EncodedCall is one {target, value, data} entry of a batch.
type EncodedCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}
