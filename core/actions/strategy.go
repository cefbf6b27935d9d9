package actions

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// A strategy file lists actions in execution order. Amounts are whole-token decimal strings scaled
// by the referenced token's decimals; wrap amounts are in ETH.
//
//	actions:
//	  - type: swap
//	    tokenIn: {address: "0x...", symbol: USDC, decimals: 6}
//	    tokenOut: {address: "0x...", symbol: AERO, decimals: 18}
//	    amountIn: "10.5"
type strategyFile struct {
	Actions []map[string]interface{} `yaml:"actions"`
}

type tokenSpec struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

type actionSpec struct {
	Type       string    `mapstructure:"type"`
	TokenIn    tokenSpec `mapstructure:"tokenIn"`
	TokenOut   tokenSpec `mapstructure:"tokenOut"`
	TokenA     tokenSpec `mapstructure:"tokenA"`
	TokenB     tokenSpec `mapstructure:"tokenB"`
	Token      tokenSpec `mapstructure:"token"`
	Spender    string    `mapstructure:"spender"`
	Amount     string    `mapstructure:"amount"`
	AmountIn   string    `mapstructure:"amountIn"`
	AmountA    string    `mapstructure:"amountA"`
	AmountB    string    `mapstructure:"amountB"`
	Liquidity  string    `mapstructure:"liquidity"`
	AmountAMin string    `mapstructure:"amountAMin"`
	AmountBMin string    `mapstructure:"amountBMin"`
	Stable     bool      `mapstructure:"stable"`
	Recipient  string    `mapstructure:"recipient"`
}

// ParseStrategy reads a YAML strategy document into typed actions.
func ParseStrategy(data []byte) ([]Action, error) {
	var file strategyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, sdkerr.EncodingError("invalid strategy file: %v", err)
	}

	out := make([]Action, 0, len(file.Actions))
	for i, raw := range file.Actions {
		var spec actionSpec
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &spec,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(normalizeYAML(raw)); err != nil {
			return nil, sdkerr.EncodingError("action %d: %v", i, err)
		}

		action, err := spec.toAction()
		if err != nil {
			return nil, sdkerr.EncodingError("action %d: %v", i, err)
		}
		out = append(out, action)
	}
	return out, nil
}

func (s actionSpec) toAction() (Action, error) {
	kind, ok := ParseKind(s.Type)
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", s.Type)
	}

	switch kind {
	case KindSwap:
		tokenIn, err := s.TokenIn.info("tokenIn")
		if err != nil {
			return nil, err
		}
		tokenOut, err := s.TokenOut.info("tokenOut")
		if err != nil {
			return nil, err
		}
		recipient, err := optionalAddress("recipient", s.Recipient)
		if err != nil {
			return nil, err
		}
		amountIn, err := ParseAmount(s.AmountIn, s.TokenIn.Decimals)
		if err != nil {
			return nil, err
		}
		return Swap{
			TokenIn:   tokenIn,
			TokenOut:  tokenOut,
			AmountIn:  amountIn,
			IsStable:  s.Stable,
			Recipient: recipient,
		}, nil
	case KindDeposit:
		tokenA, tokenB, recipient, err := s.pair()
		if err != nil {
			return nil, err
		}
		amountA, err := ParseAmount(s.AmountA, s.TokenA.Decimals)
		if err != nil {
			return nil, err
		}
		amountB, err := ParseAmount(s.AmountB, s.TokenB.Decimals)
		if err != nil {
			return nil, err
		}
		return Deposit{
			TokenA:    tokenA,
			TokenB:    tokenB,
			AmountA:   amountA,
			AmountB:   amountB,
			IsStable:  s.Stable,
			Recipient: recipient,
		}, nil
	case KindWithdraw:
		tokenA, tokenB, recipient, err := s.pair()
		if err != nil {
			return nil, err
		}
		// LP tokens have 18 decimals
		liquidity, err := ParseAmount(s.Liquidity, 18)
		if err != nil {
			return nil, err
		}
		amountAMin, err := ParseAmount(defaultZero(s.AmountAMin), s.TokenA.Decimals)
		if err != nil {
			return nil, err
		}
		amountBMin, err := ParseAmount(defaultZero(s.AmountBMin), s.TokenB.Decimals)
		if err != nil {
			return nil, err
		}
		return Withdraw{
			TokenA:     tokenA,
			TokenB:     tokenB,
			Liquidity:  liquidity,
			AmountAMin: amountAMin,
			AmountBMin: amountBMin,
			IsStable:   s.Stable,
			Recipient:  recipient,
		}, nil
	case KindApprove:
		token, err := requiredAddress("token.address", s.Token.Address)
		if err != nil {
			return nil, err
		}
		spender, err := requiredAddress("spender", s.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(s.Amount, s.Token.Decimals)
		if err != nil {
			return nil, err
		}
		return Approve{
			Token:   &token,
			Spender: &spender,
			Amount:  amount,
		}, nil
	default:
		amount, err := ParseAmount(s.Amount, 18)
		if err != nil {
			return nil, err
		}
		return Wrap{Amount: amount}, nil
	}
}

func (s actionSpec) pair() (TokenInfo, TokenInfo, *common.Address, error) {
	tokenA, err := s.TokenA.info("tokenA")
	if err != nil {
		return TokenInfo{}, TokenInfo{}, nil, err
	}
	tokenB, err := s.TokenB.info("tokenB")
	if err != nil {
		return TokenInfo{}, TokenInfo{}, nil, err
	}
	recipient, err := optionalAddress("recipient", s.Recipient)
	if err != nil {
		return TokenInfo{}, TokenInfo{}, nil, err
	}
	return tokenA, tokenB, recipient, nil
}

func (t tokenSpec) info(field string) (TokenInfo, error) {
	address, err := requiredAddress(field+".address", t.Address)
	if err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{Address: address, Symbol: t.Symbol, Decimals: t.Decimals}, nil
}

// requiredAddress rejects anything but a full 20-byte hex address. HexToAddress alone would pad or
// truncate a mistyped value into a different valid address.
func requiredAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s %q is not a valid address", field, s)
	}
	return common.HexToAddress(s), nil
}

// optionalAddress maps an empty value to nil so the encoder applies its default.
func optionalAddress(field, s string) (*common.Address, error) {
	if s == "" {
		return nil, nil
	}
	a, err := requiredAddress(field, s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// yaml.v2 decodes nested maps as map[interface{}]interface{}, which mapstructure cannot walk.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeYAML(val)
		}
		return m
	case []interface{}:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}
