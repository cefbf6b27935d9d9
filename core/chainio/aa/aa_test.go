package aa_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/core/testutil"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
)

var owner = common.FromHex("0x" +
	"1111111111111111111111111111111111111111111111111111111111111111" +
	"2222222222222222222222222222222222222222222222222222222222222222")

func TestGetInitCode(t *testing.T) {
	factory := aa.DefaultFactoryAddress

	initCode, err := aa.GetInitCode(factory, [][]byte{owner}, big.NewInt(3))
	require.NoError(t, err)

	// first 20 bytes is the factory
	assert.Equal(t, factory.Bytes(), initCode[:20])

	method, err := aa.SmartWalletFactoryABI.MethodById(initCode[20:24])
	require.NoError(t, err)
	assert.Equal(t, "createAccount", method.Name)

	args, err := method.Inputs.Unpack(initCode[24:])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{owner}, args[0])
	assert.Equal(t, big.NewInt(3), args[1])
}

func TestGetInitCodeRequiresOwner(t *testing.T) {
	_, err := aa.GetInitCode(aa.DefaultFactoryAddress, nil, nil)
	assert.Error(t, err)
}

func TestGetSenderAddress(t *testing.T) {
	expected := common.HexToAddress("0xBdCcA49575918De45bb32f5ba75388e7c3fBB5e4")
	chain := testutil.NewFakeChain().ReturnAt(aa.DefaultFactoryAddress, "getAddress", expected)

	sender, err := aa.GetSenderAddress(context.Background(), chain, aa.DefaultFactoryAddress, [][]byte{owner}, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, sender)

	calls := chain.CallsTo("getAddress")
	require.Len(t, calls, 1)
	assert.Equal(t, big.NewInt(0), calls[0].Args[1])
}

func TestGetNonce(t *testing.T) {
	chain := testutil.NewFakeChain().Handle("getNonce", func(args []interface{}) ([]interface{}, error) {
		assert.Equal(t, testutil.TestAccount, args[0])
		assert.Equal(t, 0, args[1].(*big.Int).Sign())
		return []interface{}{big.NewInt(42)}, nil
	})

	nonce, err := aa.GetNonce(context.Background(), chain, aa.DefaultEntrypointAddress, testutil.TestAccount, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), nonce)
}

func TestPackExecuteBatchPreservesOrder(t *testing.T) {
	a := aa.Call{Target: testutil.TestTokenA, Value: big.NewInt(1), Data: []byte{0x01}}
	b := aa.Call{Target: testutil.TestTokenB, Data: []byte{0x02}}

	ab, err := aa.PackExecuteBatch([]aa.Call{a, b})
	require.NoError(t, err)
	ba, err := aa.PackExecuteBatch([]aa.Call{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)

	method, err := aa.SmartWalletABI.MethodById(ab[:4])
	require.NoError(t, err)
	assert.Equal(t, "executeBatch", method.Name)

	args, err := method.Inputs.Unpack(ab[4:])
	require.NoError(t, err)
	var decoded []aa.Call
	require.NoError(t, method.Inputs.Copy(&decoded, args))
	require.Len(t, decoded, 2)
	assert.Equal(t, testutil.TestTokenA, decoded[0].Target)
	assert.Equal(t, testutil.TestTokenB, decoded[1].Target)
	assert.Equal(t, 0, decoded[1].Value.Sign())
}

func TestPackExecuteBatchEmpty(t *testing.T) {
	data, err := aa.PackExecuteBatch(nil)
	require.NoError(t, err)
	// selector + offset + zero length
	assert.Len(t, data, 4+32+32)
}

func TestPackHandleOps(t *testing.T) {
	op := userop.New(testutil.TestAccount, big.NewInt(5), []byte{0xde, 0xad})
	op.Signature = []byte{0xbe, 0xef}

	data, err := aa.PackHandleOps([]*userop.UserOperation{op}, testutil.TestTokenA)
	require.NoError(t, err)

	method, err := aa.EntryPointABI.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "handleOps", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, testutil.TestTokenA, args[1])
}

func TestPackConnectorExecute(t *testing.T) {
	data, err := aa.PackConnectorExecute(aa.DefaultAerodromeConnectorAddress, []byte{0xaa})
	require.NoError(t, err)

	args, err := aa.ConnectorPluginABI.Methods["execute"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, aa.DefaultAerodromeConnectorAddress, args[0])
	assert.Equal(t, []byte{0xaa}, args[1])
}

func TestFindUserOperationEvent(t *testing.T) {
	opHash := common.HexToHash("0x0abc")
	other := common.HexToAddress("0x0000000000000000000000000000000000000def")
	logs := []*types.Log{
		{Address: aa.DefaultEntrypointAddress, Topics: []common.Hash{common.HexToHash("0x01")}},
		testutil.UserOperationEventLog(aa.DefaultEntrypointAddress, common.HexToHash("0x0123"), other, true),
		testutil.UserOperationEventLog(aa.DefaultEntrypointAddress, opHash, testutil.TestAccount, false),
	}

	event, err := aa.FindUserOperationEvent(logs, aa.DefaultEntrypointAddress, testutil.TestAccount)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, opHash, event.UserOpHash)
	assert.Equal(t, testutil.TestAccount, event.Sender)
	assert.False(t, event.Success)
	assert.Equal(t, big.NewInt(21000), event.ActualGasCost)
	assert.Equal(t, big.NewInt(150000), event.ActualGasUsed)
}

func TestFindUserOperationEventIgnoresOtherContracts(t *testing.T) {
	logs := []*types.Log{
		testutil.UserOperationEventLog(testutil.TestTokenA, common.HexToHash("0x0abc"), testutil.TestAccount, true),
	}

	event, err := aa.FindUserOperationEvent(logs, aa.DefaultEntrypointAddress, testutil.TestAccount)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestAddressesWithDefaults(t *testing.T) {
	custom := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	addrs := aa.Addresses{WETH: custom}.WithDefaults()

	assert.Equal(t, custom, addrs.WETH)
	assert.Equal(t, aa.DefaultEntrypointAddress, addrs.EntryPoint)
	assert.Equal(t, aa.DefaultAerodromeRouterAddress, addrs.AerodromeRouter)
}
