package sdk

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
	"github.com/AvaProtocol/liquid-sdk/core/config"
	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/core/testutil"
	"github.com/AvaProtocol/liquid-sdk/metrics"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/userop"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
	"github.com/AvaProtocol/liquid-sdk/storage/schema"
)

const apiKey = "test-api-key"

var (
	fixedNow       = time.Unix(1_700_000_000, 0)
	derivedAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

// fakeBundler captures the operations handed to it.
type fakeBundler struct {
	mu          sync.Mutex
	estimated   []*userop.UserOperation
	sent        []*userop.UserOperation
	success     bool
	entrypoints []common.Address
}

func (f *fakeBundler) EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (*bundler.GasEstimation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimated = append(f.estimated, op.Clone())
	return &bundler.GasEstimation{
		PreVerificationGas:   big.NewInt(50000),
		VerificationGasLimit: big.NewInt(200000),
		CallGasLimit:         big.NewInt(300000),
	}, nil
}

func (f *fakeBundler) SendUserOperation(ctx context.Context, op *userop.UserOperation, entrypoint common.Address) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, op.Clone())
	return common.HexToHash("0x0abc"), nil
}

func (f *fakeBundler) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash) (*bundler.UserOperationReceipt, error) {
	receipt := &bundler.UserOperationReceipt{UserOpHash: hash, Success: f.success}
	receipt.Receipt.TransactionHash = common.HexToHash("0x0def")
	return receipt, nil
}

func (f *fakeBundler) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	return f.entrypoints, nil
}

func (f *fakeBundler) Sent() []*userop.UserOperation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*userop.UserOperation(nil), f.sent...)
}

func testConfig(backend *testutil.BackendServer, mode config.SubmissionMode) *config.Config {
	return &config.Config{
		Logger:         testutil.GetLogger(),
		Mode:           mode,
		RelayerKey:     testutil.GetRelayerKey(),
		BackendURL:     backend.URL,
		BackendAPIKey:  apiKey,
		BackendTimeout: 5 * time.Second,
		Addresses:      aa.DefaultAddresses(),
		SlippageBps:    config.DefaultSlippageBps,
		Deadline:       config.DefaultDeadline,
		Tokens:         config.DefaultTokens(),
	}
}

func accountChain() *testutil.FakeChain {
	chain := testutil.NewFakeChain()
	chain.ReturnAt(aa.DefaultEntrypointAddress, "getNonce", big.NewInt(7))
	chain.ReturnAt(aa.DefaultFactoryAddress, "getAddress", derivedAccount)
	chain.ReturnAt(aa.DefaultEntrypointAddress, "estimateUserOperationGas", big.NewInt(50000), big.NewInt(200000), big.NewInt(300000))
	chain.SetCode(testutil.TestAccount, []byte{0x60, 0x80})
	return chain
}

type harness struct {
	sdk     *SDK
	chain   *testutil.FakeChain
	backend *testutil.BackendServer
	bundler *fakeBundler
	auth    *passkey.VirtualAuthenticator
}

func setup(t *testing.T, mode config.SubmissionMode, opts ...Option) *harness {
	t.Helper()
	backend := testutil.NewBackendServer(apiKey)
	t.Cleanup(backend.Close)

	auth, err := passkey.NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	h := &harness{
		chain:   accountChain(),
		backend: backend,
		bundler: &fakeBundler{success: true, entrypoints: []common.Address{aa.DefaultEntrypointAddress}},
		auth:    auth,
	}
	db := testutil.TestMustDB()
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{
		WithChainClient(h.chain),
		WithAuthenticator(auth),
		WithBundler(h.bundler),
		WithStorage(db),
		WithCache(testutil.GetDefaultCache()),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	s, err := New(testConfig(backend, mode), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.sdk = s
	return h
}

func swapStrategy() []actions.Action {
	usdc := actions.TokenInfo{Address: testutil.TestTokenA, Symbol: "USDC", Decimals: 6}
	aero := actions.TokenInfo{Address: testutil.TestTokenB, Symbol: "AERO", Decimals: 18}
	return []actions.Action{
		actions.Approve{Token: &usdc.Address, Spender: &aa.DefaultConnectorPluginAddress, Amount: big.NewInt(1000)},
		actions.Swap{TokenIn: usdc, TokenOut: aero, AmountIn: big.NewInt(1000)},
	}
}

func TestNewRequiresAuthenticator(t *testing.T) {
	backend := testutil.NewBackendServer(apiKey)
	defer backend.Close()

	_, err := New(testConfig(backend, config.ModeDirect), WithChainClient(testutil.NewFakeChain()))
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrUnsupportedEnvironment)
}

func TestNewLoadsKeyFile(t *testing.T) {
	backend := testutil.NewBackendServer(apiKey)
	defer backend.Close()

	v, err := passkey.NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "passkey.hex")
	require.NoError(t, os.WriteFile(path, []byte(v.PrivateKeyHex()+"\n"), 0o600))

	cfg := testConfig(backend, config.ModeDirect)
	cfg.PasskeyKeyFile = path
	cfg.PasskeyRPID = "liquid.test"
	cfg.PasskeyOrigin = "https://liquid.test"

	s, err := New(cfg, WithChainClient(testutil.NewFakeChain()))
	require.NoError(t, err)
	defer s.Close()

	loaded, ok := s.authenticator.(*passkey.VirtualAuthenticator)
	require.True(t, ok)
	assert.Equal(t, v.PublicKey(), loaded.PublicKey())
}

func TestNewChecksChainID(t *testing.T) {
	backend := testutil.NewBackendServer(apiKey)
	defer backend.Close()
	auth, err := passkey.NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	cfg := testConfig(backend, config.ModeDirect)
	cfg.ChainID = big.NewInt(1)
	_, err = New(cfg, WithChainClient(testutil.NewFakeChain()), WithAuthenticator(auth))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id")
}

func TestNewRejectsUnsupportedEntryPoint(t *testing.T) {
	backend := testutil.NewBackendServer(apiKey)
	defer backend.Close()
	auth, err := passkey.NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	b := &fakeBundler{entrypoints: []common.Address{common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")}}
	_, err = New(testConfig(backend, config.ModeBundler), WithChainClient(testutil.NewFakeChain()), WithAuthenticator(auth), WithBundler(b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundler does not support entrypoint "+aa.DefaultEntrypointAddress.Hex())
}

func TestCreateSmartAccount(t *testing.T) {
	h := setup(t, config.ModeDirect)

	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, derivedAccount, account.Address)
	assert.NotEqual(t, common.Hash{}, account.TxHash)

	// the factory is asked for the address owned by the registered passkey
	getAddress := h.chain.CallsTo("getAddress")
	require.NotEmpty(t, getAddress)
	assert.Equal(t, [][]byte{h.auth.PublicKey()}, getAddress[0].Args[0])
	assert.Equal(t, AccountSalt, getAddress[0].Args[1])

	require.Len(t, h.chain.Sent(), 1)
	assert.Equal(t, aa.DefaultEntrypointAddress, *h.chain.Sent()[0].To())
	assert.Equal(t, derivedAccount.Hex(), h.backend.Address("alice"))

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountDone, journal.State)
	assert.Equal(t, account.TxHash.Hex(), journal.DeployTxHash)
}

func TestCreateSmartAccountIsIdempotent(t *testing.T) {
	h := setup(t, config.ModeDirect)
	ctx := context.Background()

	first, err := h.sdk.CreateSmartAccount(ctx, "alice")
	require.NoError(t, err)
	second, err := h.sdk.CreateSmartAccount(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)
	assert.Len(t, h.chain.Sent(), 1)
	assert.Equal(t, 1, h.backend.Calls("/registration/options"))
}

func TestCreateSmartAccountNotVerified(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.backend.SetVerified(false)

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrPassKey)
	assert.ErrorIs(t, err, ErrAttestationNotVerified)
	assert.Equal(t, "PassKey error: Failed to create smart account: Attestation verification failed", err.Error())

	// registration only: nothing on chain, no address reported
	assert.Empty(t, h.chain.Calls())
	assert.Empty(t, h.chain.Sent())
	assert.Equal(t, 0, h.backend.Calls("/user/update"))

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountIdle, journal.State)
}

func TestCreateSmartAccountResumesAfterVerification(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.chain.SendErr = errors.New("insufficient funds for gas")

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrUserOperation)
	assert.Contains(t, err.Error(), "Failed to deploy smart account")

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountAttestationVerified, journal.State)

	h.chain.SendErr = nil
	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, derivedAccount, account.Address)
	assert.Equal(t, 1, h.backend.Calls("/registration/verify"), "the passkey is not registered twice")
}

func TestCreateSmartAccountWaitsOnJournaledHash(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.chain.ReceiptErr = errors.New("request timed out")

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrUserOperation)

	require.Len(t, h.chain.Sent(), 1)
	pending := h.chain.Sent()[0].Hash()
	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountDeploySubmitted, journal.State)
	assert.Equal(t, pending.Hex(), journal.PendingHash)
	assert.Equal(t, derivedAccount.Hex(), journal.Address)
	assert.NotEmpty(t, journal.UserOpHash)

	h.chain.ReceiptErr = nil
	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, h.chain.Sent(), 1, "the deployment is not sent again")
	assert.Equal(t, []common.Hash{pending, pending}, h.chain.Waited())
	assert.Equal(t, pending, account.TxHash)

	journal, err = h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountDone, journal.State)
	assert.Empty(t, journal.PendingHash)

	records, err := h.sdk.ListExecutions(derivedAccount)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"deploy"}, records[0].Actions)
	assert.Equal(t, pending.Hex(), records[0].TxHash)
}

func TestCreateSmartAccountLostReceiptAccountDeployed(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.chain.ReceiptErr = errors.New("request timed out")

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)

	// the deployment landed, its receipt is still unavailable
	h.chain.SetCode(derivedAccount, []byte{0x60, 0x80})
	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, derivedAccount, account.Address)
	assert.Equal(t, common.Hash{}, account.TxHash)
	assert.Len(t, h.chain.Sent(), 1)
	assert.Equal(t, derivedAccount.Hex(), h.backend.Address("alice"))
}

func TestCreateSmartAccountDroppedDeploymentIsSentAgain(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.chain.ReceiptErr = errors.New("request timed out")
	ctx := context.Background()

	_, err := h.sdk.CreateSmartAccount(ctx, "alice")
	require.Error(t, err)
	_, err = h.sdk.CreateSmartAccount(ctx, "alice")
	require.Error(t, err)

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountAttestationVerified, journal.State)
	assert.Empty(t, journal.PendingHash)
	assert.Len(t, h.chain.Sent(), 1)

	h.chain.ReceiptErr = nil
	account, err := h.sdk.CreateSmartAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, derivedAccount, account.Address)
	assert.Len(t, h.chain.Sent(), 2)
	assert.Equal(t, 1, h.backend.Calls("/registration/verify"))
}

func TestCreateSmartAccountSkipsInitCodeWhenDeployed(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.chain.SendErr = errors.New("nonce too low")

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)

	h.chain.SendErr = nil
	h.chain.SetCode(derivedAccount, []byte{0x60, 0x80})
	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, derivedAccount, account.Address)
	assert.Empty(t, h.chain.Sent(), "initCode for a deployed account fails with AA10")

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountDone, journal.State)
}

func TestCreateSmartAccountUpdateRejected(t *testing.T) {
	h := setup(t, config.ModeBundler)
	h.backend.SetUpdateSuccess(false)

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrPassKey)
	assert.Contains(t, err.Error(), "Failed to update user address")

	journal, err := h.sdk.GetAccountJournal("alice")
	require.NoError(t, err)
	assert.Equal(t, schema.AccountAddressDeployed, journal.State)
	assert.Equal(t, common.HexToHash("0x0def").Hex(), journal.DeployTxHash)

	h.backend.SetUpdateSuccess(true)
	account, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x0def"), account.TxHash)
	assert.Len(t, h.bundler.Sent(), 1)
	assert.Equal(t, 2, h.backend.Calls("/user/update"))
	assert.Equal(t, derivedAccount.Hex(), h.backend.Address("alice"))
}

func TestListAccounts(t *testing.T) {
	h := setup(t, config.ModeBundler)
	ctx := context.Background()

	_, err := h.sdk.CreateSmartAccount(ctx, "bob")
	require.NoError(t, err)
	_, err = h.sdk.CreateSmartAccount(ctx, "alice")
	require.NoError(t, err)

	usernames, err := h.sdk.ListAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames)
}

func TestCreateSmartAccountBackendError(t *testing.T) {
	h := setup(t, config.ModeDirect)
	h.backend.Fail("/registration/options", http.StatusBadRequest, "user exists")

	_, err := h.sdk.CreateSmartAccount(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, "PassKey error: Failed to create smart account: user exists", err.Error())
}

func TestExecuteStrategyBundler(t *testing.T) {
	h := setup(t, config.ModeBundler)
	acts := swapStrategy()

	txHash, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, acts)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x0def"), txHash)

	sent := h.bundler.Sent()
	require.Len(t, sent, 1)
	op := sent[0]

	// an existing account: on-chain nonce and no initCode
	assert.Equal(t, testutil.TestAccount, op.Sender)
	assert.Equal(t, int64(7), op.Nonce.Int64())
	assert.Empty(t, op.InitCode)
	assert.NotEmpty(t, op.Signature)
	assert.Equal(t, int64(300000), op.CallGasLimit.Int64())
	assert.Positive(t, op.MaxFeePerGas.Sign())

	encoder := actions.NewEncoder(aa.DefaultAddresses(), actions.WithClock(func() time.Time { return fixedNow }))
	calls, err := encoder.EncodeAll(acts, testutil.TestAccount)
	require.NoError(t, err)
	callData, err := actions.Compose(calls)
	require.NoError(t, err)
	assert.Equal(t, callData, op.CallData)

	assert.Equal(t, 1, h.backend.Calls("/authentication/verify"))

	records, err := h.sdk.ListExecutions(testutil.TestAccount)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"approve", "swap"}, records[0].Actions)
	assert.Equal(t, txHash.Hex(), records[0].TxHash)
	assert.Equal(t, "bundler", records[0].Mode)
	assert.NotEmpty(t, records[0].UserOpHash)
}

func TestCountExecutions(t *testing.T) {
	h := setup(t, config.ModeBundler)

	n, err := h.sdk.CountExecutions(testutil.TestAccount)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, swapStrategy())
	require.NoError(t, err)
	n, err = h.sdk.CountExecutions(testutil.TestAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExecuteStrategyDirect(t *testing.T) {
	h := setup(t, config.ModeDirect)

	txHash, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, swapStrategy())
	require.NoError(t, err)

	require.Len(t, h.chain.Sent(), 1)
	assert.Equal(t, h.chain.Sent()[0].Hash(), txHash)
	assert.Len(t, h.chain.CallsTo("estimateUserOperationGas"), 1)
}

func TestExecuteStrategyEmpty(t *testing.T) {
	h := setup(t, config.ModeBundler)

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrEncoding)
	assert.Equal(t, "Failed to execute strategy: Encoding error: strategy has no actions", err.Error())
	assert.Equal(t, 0, h.backend.Calls("/authentication/options"))
}

func TestExecuteStrategyRejectsUnknownAccount(t *testing.T) {
	h := setup(t, config.ModeBundler)

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestTokenB, swapStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrUserOperation)
	assert.Contains(t, err.Error(), "is not deployed")

	_, err = h.sdk.ExecuteStrategy(context.Background(), "alice", common.Address{}, swapStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrEncoding)
	assert.Contains(t, err.Error(), "account is required")

	// the passkey is never asked to sign for an account that cannot execute
	assert.Equal(t, 0, h.backend.Calls("/authentication/options"))
	assert.Empty(t, h.bundler.Sent())
}

func TestExecuteStrategyAuthenticationFailed(t *testing.T) {
	h := setup(t, config.ModeBundler)
	h.backend.SetAuthSuccess(false)

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, swapStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, sdkerr.ErrPassKey)

	// no operation was built: the nonce was never read and nothing reached the bundler
	assert.Empty(t, h.chain.CallsTo("getNonce"))
	assert.Empty(t, h.bundler.Sent())

	records, err := h.sdk.ListExecutions(testutil.TestAccount)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecuteStrategyRejected(t *testing.T) {
	h := setup(t, config.ModeBundler)
	h.bundler.success = false

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, swapStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrUserOperation)
	assert.Contains(t, err.Error(), "Failed to execute strategy: ")
}

func TestExecuteStrategyInvalidAction(t *testing.T) {
	h := setup(t, config.ModeBundler)

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, []actions.Action{actions.Wrap{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrEncoding)
	assert.Equal(t, 0, h.backend.Calls("/authentication/options"))
}

func TestMetricsAreRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := setup(t, config.ModeBundler, WithMetrics(metrics.NewSDKMetrics(reg)))

	_, err := h.sdk.ExecuteStrategy(context.Background(), "alice", testutil.TestAccount, swapStrategy())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["liquid_strategies_executed_total"])
	assert.True(t, names["liquid_userops_submitted_total"])
	assert.True(t, names["liquid_step_duration_seconds"])
}
