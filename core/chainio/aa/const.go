package aa

import (
	"github.com/ethereum/go-ethereum/common"
)

// Deployed contracts on Base mainnet. These are defaults only; every address is carried in
// Addresses so a different network can be targeted from configuration.
var (
	DefaultEntrypointAddress         = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	DefaultFactoryAddress            = common.HexToAddress("0x0BA5ED0c6AA8c49038F819E587E2633c4A9F428a")
	DefaultConnectorPluginAddress    = common.HexToAddress("0x2f9a3fb2D6666A062148784DC04bC9273E017366")
	DefaultAerodromeConnectorAddress = common.HexToAddress("0xaab8909B149Dd3e0DAcd2e46E846EAe75070EF47")
	DefaultAerodromeFactoryAddress   = common.HexToAddress("0x420DD381b31aEf6683db6B902084cB0FFECe40Da")
	DefaultAerodromeRouterAddress    = common.HexToAddress("0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43")
	DefaultWETHAddress               = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

// Addresses is the set of deployed contracts one SDK instance talks to.
type Addresses struct {
	EntryPoint         common.Address
	Factory            common.Address
	ConnectorPlugin    common.Address
	AerodromeConnector common.Address
	AerodromeFactory   common.Address
	AerodromeRouter    common.Address
	WETH               common.Address
}

func DefaultAddresses() Addresses {
	return Addresses{
		EntryPoint:         DefaultEntrypointAddress,
		Factory:            DefaultFactoryAddress,
		ConnectorPlugin:    DefaultConnectorPluginAddress,
		AerodromeConnector: DefaultAerodromeConnectorAddress,
		AerodromeFactory:   DefaultAerodromeFactoryAddress,
		AerodromeRouter:    DefaultAerodromeRouterAddress,
		WETH:               DefaultWETHAddress,
	}
}

// WithDefaults fills every zero address with its Base mainnet default.
func (a Addresses) WithDefaults() Addresses {
	d := DefaultAddresses()
	pick := func(v, def common.Address) common.Address {
		if v == (common.Address{}) {
			return def
		}
		return v
	}
	return Addresses{
		EntryPoint:         pick(a.EntryPoint, d.EntryPoint),
		Factory:            pick(a.Factory, d.Factory),
		ConnectorPlugin:    pick(a.ConnectorPlugin, d.ConnectorPlugin),
		AerodromeConnector: pick(a.AerodromeConnector, d.AerodromeConnector),
		AerodromeFactory:   pick(a.AerodromeFactory, d.AerodromeFactory),
		AerodromeRouter:    pick(a.AerodromeRouter, d.AerodromeRouter),
		WETH:               pick(a.WETH, d.WETH),
	}
}
