package actions

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/pkg/byte4"
)

var (
	lookupOnce sync.Once
	lookup     *byte4.Lookup
)

func selectors() *byte4.Lookup {
	lookupOnce.Do(func() {
		lookup = byte4.NewLookup(map[string]*abi.ABI{
			"ConnectorPlugin":    aa.ConnectorPluginABI,
			"AerodromeConnector": aa.AerodromeConnectorABI,
			"ERC20":              aa.ERC20ABI,
			"WETH":               aa.WrappedETHABI,
			"SmartWallet":        aa.SmartWalletABI,
		})
	})
	return lookup
}

// Describe renders a call for logs, e.g. "ConnectorPlugin.execute -> AerodromeConnector.addLiquidity".
func Describe(call EncodedCall) string {
	contract, method, err := selectors().GetMethodFromCalldata(call.Data)
	if err != nil {
		if len(call.Data) >= 4 {
			return fmt.Sprintf("%s:%s", call.Target.Hex(), hexutil.Encode(call.Data[:4]))
		}
		return call.Target.Hex()
	}

	desc := contract + "." + method.Name
	if contract == "ConnectorPlugin" && method.Name == "execute" {
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err == nil && len(args) == 2 {
			if inner, ok := args[1].([]byte); ok {
				if c, m, err := selectors().GetMethodFromCalldata(inner); err == nil {
					desc += " -> " + c + "." + m.Name
				}
			}
		}
	}
	return desc
}
