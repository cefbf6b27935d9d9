package actions

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// FormatAmount renders a base-unit amount in whole tokens, e.g. 1500000 with 6 decimals is "1.5".
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseAmount converts a whole-token string into base units. More fractional digits than the
// token supports is an error rather than a silent truncation.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, sdkerr.EncodingError("invalid amount %q: %v", s, err)
	}
	if d.IsNegative() {
		return nil, sdkerr.EncodingError("invalid amount %q: negative", s)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, sdkerr.EncodingError("invalid amount %q: more than %d decimals", s, decimals)
	}
	return scaled.BigInt(), nil
}
