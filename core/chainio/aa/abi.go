package aa

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// userOpTuple is the EntryPoint v0.6 UserOperation struct
const userOpTuple = `{"components":[
	{"internalType":"address","name":"sender","type":"address"},
	{"internalType":"uint256","name":"nonce","type":"uint256"},
	{"internalType":"bytes","name":"initCode","type":"bytes"},
	{"internalType":"bytes","name":"callData","type":"bytes"},
	{"internalType":"uint256","name":"callGasLimit","type":"uint256"},
	{"internalType":"uint256","name":"verificationGasLimit","type":"uint256"},
	{"internalType":"uint256","name":"preVerificationGas","type":"uint256"},
	{"internalType":"uint256","name":"maxFeePerGas","type":"uint256"},
	{"internalType":"uint256","name":"maxPriorityFeePerGas","type":"uint256"},
	{"internalType":"bytes","name":"paymasterAndData","type":"bytes"},
	{"internalType":"bytes","name":"signature","type":"bytes"}
],"internalType":"struct UserOperation","name":"%s","type":"%s"}`

var entryPointABIJSON = `[
{"inputs":[` + fmt.Sprintf(userOpTuple, "ops", "tuple[]") + `,{"internalType":"address payable","name":"beneficiary","type":"address"}],
 "name":"handleOps","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"sender","type":"address"},{"internalType":"uint192","name":"key","type":"uint192"}],
 "name":"getNonce","outputs":[{"internalType":"uint256","name":"nonce","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[` + fmt.Sprintf(userOpTuple, "userOp", "tuple") + `],
 "name":"getUserOpHash","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
{"inputs":[` + fmt.Sprintf(userOpTuple, "op", "tuple") + `,{"internalType":"address","name":"paymaster","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"}],
 "name":"estimateUserOperationGas","outputs":[
	{"internalType":"uint256","name":"preVerificationGas","type":"uint256"},
	{"internalType":"uint256","name":"verificationGas","type":"uint256"},
	{"internalType":"uint256","name":"callGasLimit","type":"uint256"}],
 "stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"userOpHash","type":"bytes32"},
	{"indexed":true,"internalType":"address","name":"sender","type":"address"},
	{"indexed":true,"internalType":"address","name":"paymaster","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"nonce","type":"uint256"},
	{"indexed":false,"internalType":"bool","name":"success","type":"bool"},
	{"indexed":false,"internalType":"uint256","name":"actualGasCost","type":"uint256"},
	{"indexed":false,"internalType":"uint256","name":"actualGasUsed","type":"uint256"}],
 "name":"UserOperationEvent","type":"event"}
]`

const smartWalletABIJSON = `[
{"inputs":[{"components":[
	{"internalType":"address","name":"target","type":"address"},
	{"internalType":"uint256","name":"value","type":"uint256"},
	{"internalType":"bytes","name":"data","type":"bytes"}],
 "internalType":"struct CoinbaseSmartWallet.Call[]","name":"calls","type":"tuple[]"}],
 "name":"executeBatch","outputs":[],"stateMutability":"payable","type":"function"}
]`

const smartWalletFactoryABIJSON = `[
{"inputs":[{"internalType":"bytes[]","name":"owners","type":"bytes[]"},{"internalType":"uint256","name":"nonce","type":"uint256"}],
 "name":"createAccount","outputs":[{"internalType":"contract CoinbaseSmartWallet","name":"account","type":"address"}],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"bytes[]","name":"owners","type":"bytes[]"},{"internalType":"uint256","name":"nonce","type":"uint256"}],
 "name":"getAddress","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const connectorPluginABIJSON = `[
{"inputs":[{"internalType":"address","name":"connector","type":"address"},{"internalType":"bytes","name":"data","type":"bytes"}],
 "name":"execute","outputs":[{"internalType":"bytes","name":"","type":"bytes"}],"stateMutability":"nonpayable","type":"function"}
]`

const aerodromeConnectorABIJSON = `[
{"inputs":[
	{"internalType":"uint256","name":"amountIn","type":"uint256"},
	{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
	{"components":[
		{"internalType":"address","name":"from","type":"address"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"bool","name":"stable","type":"bool"}],
	 "internalType":"struct Route[]","name":"routes","type":"tuple[]"},
	{"internalType":"address","name":"to","type":"address"},
	{"internalType":"uint256","name":"deadline","type":"uint256"}],
 "name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[
	{"internalType":"address","name":"tokenA","type":"address"},
	{"internalType":"address","name":"tokenB","type":"address"},
	{"internalType":"bool","name":"stable","type":"bool"},
	{"internalType":"uint256","name":"amountADesired","type":"uint256"},
	{"internalType":"uint256","name":"amountBDesired","type":"uint256"},
	{"internalType":"uint256","name":"amountAMin","type":"uint256"},
	{"internalType":"uint256","name":"amountBMin","type":"uint256"},
	{"internalType":"address","name":"to","type":"address"},
	{"internalType":"uint256","name":"deadline","type":"uint256"}],
 "name":"addLiquidity","outputs":[
	{"internalType":"uint256","name":"amountA","type":"uint256"},
	{"internalType":"uint256","name":"amountB","type":"uint256"},
	{"internalType":"uint256","name":"liquidity","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[
	{"internalType":"address","name":"tokenA","type":"address"},
	{"internalType":"address","name":"tokenB","type":"address"},
	{"internalType":"bool","name":"stable","type":"bool"},
	{"internalType":"uint256","name":"liquidity","type":"uint256"},
	{"internalType":"uint256","name":"amountAMin","type":"uint256"},
	{"internalType":"uint256","name":"amountBMin","type":"uint256"},
	{"internalType":"address","name":"to","type":"address"},
	{"internalType":"uint256","name":"deadline","type":"uint256"}],
 "name":"removeLiquidity","outputs":[
	{"internalType":"uint256","name":"amountA","type":"uint256"},
	{"internalType":"uint256","name":"amountB","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

const aerodromeFactoryABIJSON = `[
{"inputs":[],"name":"allPoolsLength","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"allPools","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const aerodromePoolABIJSON = `[
{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"stable","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getReserves","outputs":[
	{"internalType":"uint256","name":"_reserve0","type":"uint256"},
	{"internalType":"uint256","name":"_reserve1","type":"uint256"},
	{"internalType":"uint256","name":"_blockTimestampLast","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const aerodromeRouterABIJSON = `[
{"inputs":[
	{"internalType":"address","name":"tokenA","type":"address"},
	{"internalType":"address","name":"tokenB","type":"address"},
	{"internalType":"bool","name":"stable","type":"bool"},
	{"internalType":"address","name":"_factory","type":"address"},
	{"internalType":"uint256","name":"amountADesired","type":"uint256"},
	{"internalType":"uint256","name":"amountBDesired","type":"uint256"}],
 "name":"quoteAddLiquidity","outputs":[
	{"internalType":"uint256","name":"amountA","type":"uint256"},
	{"internalType":"uint256","name":"amountB","type":"uint256"},
	{"internalType":"uint256","name":"liquidity","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[
	{"internalType":"address","name":"tokenA","type":"address"},
	{"internalType":"address","name":"tokenB","type":"address"},
	{"internalType":"bool","name":"stable","type":"bool"},
	{"internalType":"address","name":"_factory","type":"address"},
	{"internalType":"uint256","name":"liquidity","type":"uint256"}],
 "name":"quoteRemoveLiquidity","outputs":[
	{"internalType":"uint256","name":"amountA","type":"uint256"},
	{"internalType":"uint256","name":"amountB","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

const wrappedETHABIJSON = `[
{"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	EntryPointABI         = mustParseABI("EntryPoint", entryPointABIJSON)
	SmartWalletABI        = mustParseABI("CoinbaseSmartWallet", smartWalletABIJSON)
	SmartWalletFactoryABI = mustParseABI("CoinbaseSmartWalletFactory", smartWalletFactoryABIJSON)
	ConnectorPluginABI    = mustParseABI("ConnectorPlugin", connectorPluginABIJSON)
	AerodromeConnectorABI = mustParseABI("AerodromeConnector", aerodromeConnectorABIJSON)
	AerodromeFactoryABI   = mustParseABI("AerodromeFactory", aerodromeFactoryABIJSON)
	AerodromePoolABI      = mustParseABI("AerodromePool", aerodromePoolABIJSON)
	AerodromeRouterABI    = mustParseABI("AerodromeRouter", aerodromeRouterABIJSON)
	ERC20ABI              = mustParseABI("ERC20", erc20ABIJSON)
	WrappedETHABI         = mustParseABI("WrappedETH", wrappedETHABIJSON)
)

func mustParseABI(name, raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Errorf("Invalid %s ABI: %w", name, err))
	}
	return &parsed
}
