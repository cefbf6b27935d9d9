package actions

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

const (
	// DefaultSlippageBps is 0.20%
	DefaultSlippageBps uint64 = 20
	DefaultDeadline           = 20 * time.Minute

	bpsDenominator = 10000
)

// route is one hop of an Aerodrome swap path.
type route struct {
	From   common.Address
	To     common.Address
	Stable bool
}

type Encoder struct {
	addrs       aa.Addresses
	slippageBps uint64
	deadline    time.Duration
	now         func() time.Time
}

type EncoderOption func(*Encoder)

// WithSlippageBps sets the tolerance in basis points, e.g. 20 for 0.20%.
func WithSlippageBps(bps uint64) EncoderOption {
	return func(e *Encoder) {
		if bps <= bpsDenominator {
			e.slippageBps = bps
		}
	}
}

func WithDeadline(window time.Duration) EncoderOption {
	return func(e *Encoder) {
		if window > 0 {
			e.deadline = window
		}
	}
}

func WithClock(now func() time.Time) EncoderOption {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEncoder(addrs aa.Addresses, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		addrs:       addrs.WithDefaults(),
		slippageBps: DefaultSlippageBps,
		deadline:    DefaultDeadline,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MinAmount is amount reduced by bps basis points, rounded down.
func MinAmount(amount *big.Int, bps uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bpsDenominator-bps))
	return out.Div(out, big.NewInt(bpsDenominator))
}

// Deadline is now + window in unix seconds.
func Deadline(now time.Time, window time.Duration) *big.Int {
	return big.NewInt(now.Add(window).Unix())
}

// Encode turns one action into a call from account. Swap, Deposit and Withdraw are routed through
// the connector plugin; Approve and Wrap call the token directly.
func (e *Encoder) Encode(action Action, account common.Address) (EncodedCall, error) {
	switch a := action.(type) {
	case Wrap:
		return e.encodeWrap(a)
	case Approve:
		return e.encodeApprove(a)
	case Swap:
		return e.encodeSwap(a, account)
	case Deposit:
		return e.encodeDeposit(a, account)
	case Withdraw:
		return e.encodeWithdraw(a, account)
	case *Wrap, *Approve, *Swap, *Deposit, *Withdraw:
		if v := deref(a); v != nil {
			return e.Encode(v, account)
		}
		return EncodedCall{}, sdkerr.EncodingError("action is nil")
	case nil:
		return EncodedCall{}, sdkerr.EncodingError("action is nil")
	default:
		return EncodedCall{}, sdkerr.EncodingError("unsupported action type %T", action)
	}
}

func deref(action Action) Action {
	switch a := action.(type) {
	case *Wrap:
		if a != nil {
			return *a
		}
	case *Approve:
		if a != nil {
			return *a
		}
	case *Swap:
		if a != nil {
			return *a
		}
	case *Deposit:
		if a != nil {
			return *a
		}
	case *Withdraw:
		if a != nil {
			return *a
		}
	}
	return nil
}

// EncodeAll encodes actions in order. The first failure aborts the whole list.
func (e *Encoder) EncodeAll(actions []Action, account common.Address) ([]EncodedCall, error) {
	calls := make([]EncodedCall, 0, len(actions))
	for _, action := range actions {
		call, err := e.Encode(action, account)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// Compose packs calls into one CoinbaseSmartWallet.executeBatch call, preserving order.
func Compose(calls []EncodedCall) ([]byte, error) {
	batch := lo.Map(calls, func(c EncodedCall, _ int) aa.Call {
		return aa.Call{Target: c.Target, Value: c.Value, Data: c.Data}
	})

	data, err := aa.PackExecuteBatch(batch)
	if err != nil {
		return nil, sdkerr.EncodingError("failed to encode executeBatch: %v", err)
	}
	return data, nil
}

func (e *Encoder) encodeWrap(a Wrap) (EncodedCall, error) {
	if err := checkAmount("Wrap", "amount", a.Amount); err != nil {
		return EncodedCall{}, err
	}

	data, err := aa.WrappedETHABI.Pack("deposit")
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode deposit: %v", err)
	}
	return EncodedCall{Target: e.addrs.WETH, Value: new(big.Int).Set(a.Amount), Data: data}, nil
}

func (e *Encoder) encodeApprove(a Approve) (EncodedCall, error) {
	if a.Token == nil || *a.Token == (common.Address{}) {
		return EncodedCall{}, sdkerr.EncodingError("Approve action requires token")
	}
	if a.Spender == nil {
		return EncodedCall{}, sdkerr.EncodingError("Approve action requires spender")
	}
	if err := checkAmount("Approve", "amount", a.Amount); err != nil {
		return EncodedCall{}, err
	}

	data, err := aa.ERC20ABI.Pack("approve", *a.Spender, a.Amount)
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode approve: %v", err)
	}
	return EncodedCall{Target: *a.Token, Value: new(big.Int), Data: data}, nil
}

func (e *Encoder) encodeSwap(a Swap, account common.Address) (EncodedCall, error) {
	if err := checkTokens("Swap", a.TokenIn, a.TokenOut); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Swap", "amountIn", a.AmountIn); err != nil {
		return EncodedCall{}, err
	}
	to, err := recipient("Swap", a.Recipient, account)
	if err != nil {
		return EncodedCall{}, err
	}

	routes := []route{{From: a.TokenIn.Address, To: a.TokenOut.Address, Stable: a.IsStable}}
	inner, err := aa.AerodromeConnectorABI.Pack("swapExactTokensForTokens",
		a.AmountIn,
		MinAmount(a.AmountIn, e.slippageBps),
		routes,
		to,
		Deadline(e.now(), e.deadline),
	)
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode swapExactTokensForTokens: %v", err)
	}
	return e.viaConnector(inner)
}

func (e *Encoder) encodeDeposit(a Deposit, account common.Address) (EncodedCall, error) {
	if err := checkTokens("Deposit", a.TokenA, a.TokenB); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Deposit", "amountA", a.AmountA); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Deposit", "amountB", a.AmountB); err != nil {
		return EncodedCall{}, err
	}
	to, err := recipient("Deposit", a.Recipient, account)
	if err != nil {
		return EncodedCall{}, err
	}

	inner, err := aa.AerodromeConnectorABI.Pack("addLiquidity",
		a.TokenA.Address,
		a.TokenB.Address,
		a.IsStable,
		a.AmountA,
		a.AmountB,
		MinAmount(a.AmountA, e.slippageBps),
		MinAmount(a.AmountB, e.slippageBps),
		to,
		Deadline(e.now(), e.deadline),
	)
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode addLiquidity: %v", err)
	}
	return e.viaConnector(inner)
}

func (e *Encoder) encodeWithdraw(a Withdraw, account common.Address) (EncodedCall, error) {
	if err := checkTokens("Withdraw", a.TokenA, a.TokenB); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Withdraw", "liquidity", a.Liquidity); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Withdraw", "amountAMin", a.AmountAMin); err != nil {
		return EncodedCall{}, err
	}
	if err := checkAmount("Withdraw", "amountBMin", a.AmountBMin); err != nil {
		return EncodedCall{}, err
	}
	to, err := recipient("Withdraw", a.Recipient, account)
	if err != nil {
		return EncodedCall{}, err
	}

	inner, err := aa.AerodromeConnectorABI.Pack("removeLiquidity",
		a.TokenA.Address,
		a.TokenB.Address,
		a.IsStable,
		a.Liquidity,
		MinAmount(a.AmountAMin, e.slippageBps),
		MinAmount(a.AmountBMin, e.slippageBps),
		to,
		Deadline(e.now(), e.deadline),
	)
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode removeLiquidity: %v", err)
	}
	return e.viaConnector(inner)
}

func (e *Encoder) viaConnector(inner []byte) (EncodedCall, error) {
	data, err := aa.PackConnectorExecute(e.addrs.AerodromeConnector, inner)
	if err != nil {
		return EncodedCall{}, sdkerr.EncodingError("failed to encode connector execute: %v", err)
	}
	return EncodedCall{Target: e.addrs.ConnectorPlugin, Value: new(big.Int), Data: data}, nil
}

func checkAmount(action, field string, v *big.Int) error {
	if v == nil {
		return sdkerr.EncodingError("%s action requires %s", action, field)
	}
	if v.Sign() < 0 {
		return sdkerr.EncodingError("%s action has negative %s", action, field)
	}
	return nil
}

func checkTokens(action string, a, b TokenInfo) error {
	if a.Address == (common.Address{}) || b.Address == (common.Address{}) {
		return sdkerr.EncodingError("%s action requires both token addresses", action)
	}
	return nil
}

func recipient(action string, r *common.Address, account common.Address) (common.Address, error) {
	if r != nil && *r != (common.Address{}) {
		return *r, nil
	}
	if account == (common.Address{}) {
		return common.Address{}, sdkerr.EncodingError("%s action requires a recipient when the account is unknown", action)
	}
	return account, nil
}
