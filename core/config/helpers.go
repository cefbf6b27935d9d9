package config

import (
	"strings"
	"time"

	sdkutils "github.com/Layr-Labs/eigensdk-go/utils"
	"github.com/ethereum/go-ethereum/common"
)

// parseAddress maps an empty string to the zero address so WithDefaults can fill it.
func parseAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func strip0x(s string) string {
	return sdkutils.Trim0x(strings.TrimPrefix(s, "0X"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
