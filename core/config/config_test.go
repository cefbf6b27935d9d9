package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
)

const relayerKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const fullConfig = `
environment: development
rpc_url: http://localhost:8545
chain_id: 8453
mode: bundler
bundler_url: http://localhost:4337
backend:
  url: https://api.liquid.test
  api_key: secret
  timeout: 5s
passkey:
  rp_id: liquid.test
  origin: https://liquid.test
contracts:
  entrypoint: "0x0000000000000000000000000000000000000001"
slippage_bps: 50
deadline: 10m
tokens:
  - address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    symbol: USDC
    decimals: 6
  - address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631"
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, ModeBundler, cfg.Mode)
	assert.Equal(t, "http://localhost:4337", cfg.BundlerURL)
	assert.Equal(t, int64(8453), cfg.ChainID.Int64())
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "secret", cfg.BackendAPIKey)
	assert.Equal(t, uint64(50), cfg.SlippageBps)
	assert.Equal(t, 10*time.Minute, cfg.Deadline)
	assert.Equal(t, DefaultReceiptTimeout, cfg.ReceiptTimeout)
	assert.NotNil(t, cfg.Logger)

	assert.Equal(t, common.HexToAddress("0x01"), cfg.Addresses.EntryPoint)
	assert.Equal(t, aa.DefaultFactoryAddress, cfg.Addresses.Factory, "unset contracts keep their defaults")

	require.Len(t, cfg.Tokens, 2)
	assert.Equal(t, uint8(6), cfg.Tokens[0].Decimals)
	assert.Equal(t, "", cfg.Tokens[1].Symbol)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("relayer_private_key: " + relayerKey + "\nbackend:\n  url: https://api.liquid.test\n"))
	require.NoError(t, err)

	assert.Equal(t, ModeDirect, cfg.Mode)
	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Nil(t, cfg.ChainID)
	assert.Equal(t, uint64(DefaultSlippageBps), cfg.SlippageBps)
	assert.Equal(t, DefaultDeadline, cfg.Deadline)
	assert.Equal(t, aa.DefaultAddresses(), cfg.Addresses)
	assert.Equal(t, DefaultTokens(), cfg.Tokens)

	key, err := crypto.HexToECDSA(relayerKey[2:])
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(cfg.RelayerKey.PublicKey))
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"missing backend":     "relayer_private_key: " + relayerKey + "\n",
		"bad mode":            "mode: carrier\nbackend:\n  url: https://a.test\n",
		"bundler without url": "mode: bundler\nbackend:\n  url: https://a.test\n",
		"direct without key":  "mode: direct\nbackend:\n  url: https://a.test\n",
		"bad key":             "relayer_private_key: 0x1234\nbackend:\n  url: https://a.test\n",
		"bad address":         "relayer_private_key: " + relayerKey + "\nbackend:\n  url: https://a.test\ncontracts:\n  factory: nope\n",
		"bad token":           "relayer_private_key: " + relayerKey + "\nbackend:\n  url: https://a.test\ntokens:\n  - symbol: X\n",
		"slippage too high":   "relayer_private_key: " + relayerKey + "\nbackend:\n  url: https://a.test\nslippage_bps: 20000\n",
		"unknown field":       "relayer_private_key: " + relayerKey + "\nbackend:\n  url: https://a.test\nfoo: bar\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liquid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ModeBundler, cfg.Mode)

	_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
