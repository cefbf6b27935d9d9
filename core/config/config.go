package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	sdkutils "github.com/Layr-Labs/eigensdk-go/utils"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/aa"
)

// SubmissionMode selects how a signed UserOperation reaches the EntryPoint.
type SubmissionMode string

const (
	// ModeDirect sends handleOps from the configured relayer key.
	ModeDirect = SubmissionMode("direct")
	// ModeBundler hands the operation to an ERC-4337 bundler.
	ModeBundler = SubmissionMode("bundler")
)

const (
	DefaultRPCURL         = "https://mainnet.base.org"
	DefaultBackendTimeout = 30 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultSlippageBps    = 20
	DefaultDeadline       = 20 * time.Minute
)

// Config is the resolved configuration of one SDK instance.
type Config struct {
	Environment sdklogging.LogLevel
	Logger      sdklogging.Logger `json:"-"`

	RPCURL string
	// ChainID is optional. When set, the connected node must report the same id.
	ChainID *big.Int

	Mode       SubmissionMode
	BundlerURL string
	RelayerKey *ecdsa.PrivateKey `json:"-"`

	BackendURL     string
	BackendAPIKey  string `json:"-"`
	BackendTimeout time.Duration

	PasskeyRPID    string
	PasskeyOrigin  string
	PasskeyKeyFile string

	Addresses      aa.Addresses
	SlippageBps    uint64
	Deadline       time.Duration
	ReceiptTimeout time.Duration

	// StoragePath is the badger directory. Empty keeps state in memory.
	StoragePath string

	Tokens []actions.TokenInfo
}

// These are read from the yaml config file
type ConfigRaw struct {
	Environment sdklogging.LogLevel `yaml:"environment" validate:"omitempty,oneof=development production"`
	RPCURL      string              `yaml:"rpc_url" validate:"omitempty,url"`
	ChainID     int64               `yaml:"chain_id" validate:"gte=0"`

	Mode              string `yaml:"mode" validate:"omitempty,oneof=direct bundler"`
	BundlerURL        string `yaml:"bundler_url" validate:"required_if=Mode bundler,omitempty,url"`
	RelayerPrivateKey string `yaml:"relayer_private_key"`

	Backend   BackendRaw   `yaml:"backend"`
	Passkey   PasskeyRaw   `yaml:"passkey"`
	Contracts ContractsRaw `yaml:"contracts"`

	SlippageBps    *uint64       `yaml:"slippage_bps" validate:"omitempty,lte=10000"`
	Deadline       time.Duration `yaml:"deadline" validate:"gte=0"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout" validate:"gte=0"`
	StoragePath    string        `yaml:"storage_path"`

	Tokens []TokenRaw `yaml:"tokens" validate:"dive"`
}

type BackendRaw struct {
	URL     string        `yaml:"url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type PasskeyRaw struct {
	RPID           string `yaml:"rp_id"`
	Origin         string `yaml:"origin" validate:"omitempty,url"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

type ContractsRaw struct {
	EntryPoint         string `yaml:"entrypoint" validate:"omitempty,eth_addr"`
	Factory            string `yaml:"factory" validate:"omitempty,eth_addr"`
	ConnectorPlugin    string `yaml:"connector_plugin" validate:"omitempty,eth_addr"`
	AerodromeConnector string `yaml:"aerodrome_connector" validate:"omitempty,eth_addr"`
	AerodromeFactory   string `yaml:"aerodrome_factory" validate:"omitempty,eth_addr"`
	AerodromeRouter    string `yaml:"aerodrome_router" validate:"omitempty,eth_addr"`
	WETH               string `yaml:"weth" validate:"omitempty,eth_addr"`
}

type TokenRaw struct {
	Address  string `yaml:"address" validate:"required,eth_addr"`
	Symbol   string `yaml:"symbol"`
	Decimals *uint8 `yaml:"decimals" validate:"omitempty,lte=36"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewConfig reads and resolves the yaml file at configFilePath.
func NewConfig(configFilePath string) (*Config, error) {
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", configFilePath, err)
	}
	return Parse(data)
}

// Parse resolves a config from yaml bytes.
func Parse(data []byte) (*Config, error) {
	var raw ConfigRaw
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return raw.Resolve()
}

// Resolve validates the raw values and fills defaults.
func (raw ConfigRaw) Resolve() (*Config, error) {
	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	env := raw.Environment
	if env == "" {
		env = sdklogging.Production
	}
	logger, err := sdklogging.NewZapLogger(env)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:    env,
		Logger:         logger,
		RPCURL:         orDefault(raw.RPCURL, DefaultRPCURL),
		Mode:           SubmissionMode(orDefault(raw.Mode, string(ModeDirect))),
		BundlerURL:     raw.BundlerURL,
		BackendURL:     raw.Backend.URL,
		BackendAPIKey:  raw.Backend.APIKey,
		BackendTimeout: durationOr(raw.Backend.Timeout, DefaultBackendTimeout),
		PasskeyRPID:    raw.Passkey.RPID,
		PasskeyOrigin:  raw.Passkey.Origin,
		PasskeyKeyFile: raw.Passkey.PrivateKeyFile,
		Addresses:      raw.Contracts.addresses(),
		SlippageBps:    DefaultSlippageBps,
		Deadline:       durationOr(raw.Deadline, DefaultDeadline),
		ReceiptTimeout: durationOr(raw.ReceiptTimeout, DefaultReceiptTimeout),
		StoragePath:    raw.StoragePath,
		Tokens:         raw.tokens(),
	}
	if raw.ChainID > 0 {
		cfg.ChainID = big.NewInt(raw.ChainID)
	}
	if raw.SlippageBps != nil {
		cfg.SlippageBps = *raw.SlippageBps
	}

	if raw.RelayerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strip0x(raw.RelayerPrivateKey))
		if err != nil {
			logger.Error("Cannot parse relayer private key", "err", err)
			return nil, fmt.Errorf("invalid relayer_private_key: %w", err)
		}
		relayer, err := sdkutils.EcdsaPrivateKeyToAddress(key)
		if err != nil {
			return nil, fmt.Errorf("invalid relayer_private_key: %w", err)
		}
		logger.Debug("loaded relayer key", "address", relayer.Hex())
		cfg.RelayerKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Mode == ModeDirect && c.RelayerKey == nil {
		return fmt.Errorf("invalid config: relayer_private_key is required in direct mode")
	}
	return nil
}

func (c ContractsRaw) addresses() aa.Addresses {
	return aa.Addresses{
		EntryPoint:         parseAddress(c.EntryPoint),
		Factory:            parseAddress(c.Factory),
		ConnectorPlugin:    parseAddress(c.ConnectorPlugin),
		AerodromeConnector: parseAddress(c.AerodromeConnector),
		AerodromeFactory:   parseAddress(c.AerodromeFactory),
		AerodromeRouter:    parseAddress(c.AerodromeRouter),
		WETH:               parseAddress(c.WETH),
	}.WithDefaults()
}

// tokens leaves Decimals at 0 and Symbol empty when absent; callers resolve them on-chain.
func (raw ConfigRaw) tokens() []actions.TokenInfo {
	if len(raw.Tokens) == 0 {
		return DefaultTokens()
	}
	out := make([]actions.TokenInfo, 0, len(raw.Tokens))
	for _, t := range raw.Tokens {
		info := actions.TokenInfo{Address: parseAddress(t.Address), Symbol: t.Symbol}
		if t.Decimals != nil {
			info.Decimals = *t.Decimals
		}
		out = append(out, info)
	}
	return out
}

// DefaultTokens is the Base mainnet list used when the config has none.
func DefaultTokens() []actions.TokenInfo {
	return []actions.TokenInfo{
		{Address: aa.DefaultWETHAddress, Symbol: "WETH", Decimals: 18},
		{Address: parseAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Symbol: "USDC", Decimals: 6},
		{Address: parseAddress("0x940181a94A35A4569E4529A3CDfB74e38FD98631"), Symbol: "AERO", Decimals: 18},
	}
}
