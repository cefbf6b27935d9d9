// Package sdk is the entry point for applications: it creates passkey-owned smart accounts and
// executes Aerodrome strategies through them.
package sdk

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
	"github.com/AvaProtocol/liquid-sdk/core/aerodrome"
	"github.com/AvaProtocol/liquid-sdk/core/apiclient"
	"github.com/AvaProtocol/liquid-sdk/core/chainio"
	"github.com/AvaProtocol/liquid-sdk/core/chainio/signer"
	"github.com/AvaProtocol/liquid-sdk/core/config"
	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/metrics"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/preset"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
	"github.com/AvaProtocol/liquid-sdk/storage"
)

// Backend is the Liquid backend surface the SDK talks to. *apiclient.Client implements it.
type Backend interface {
	GetRegistrationOptions(ctx context.Context, username string) (*passkey.CreationOptions, error)
	VerifyRegistration(ctx context.Context, username string, result passkey.RegistrationResult) (*apiclient.RegistrationVerification, error)
	GetAuthenticationOptions(ctx context.Context, username string) (*passkey.RequestOptions, error)
	VerifyAuthentication(ctx context.Context, username string, result passkey.AuthenticationResult) (*apiclient.AuthenticationVerification, error)
	UpdateUserAddress(ctx context.Context, username string, address common.Address) (*apiclient.UpdateResult, error)
}

// Bundler is what bundler mode needs from an ERC-4337 bundler. *bundler.BundlerClient implements it.
type Bundler interface {
	preset.GasEstimator
	preset.UserOpSender
	SupportedEntryPoints(ctx context.Context) ([]common.Address, error)
}

type options struct {
	client        chainio.Client
	authenticator passkey.Authenticator
	backend       Backend
	bundler       Bundler
	db            storage.Storage
	cache         *bigcache.BigCache
	metrics       metrics.MetricsGenerator
	logger        logger.Logger
	now           func() time.Time
}

type Option func(*options)

func WithChainClient(c chainio.Client) Option {
	return func(o *options) { o.client = c }
}

// WithAuthenticator sets the platform passkey implementation.
func WithAuthenticator(a passkey.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

func WithBundler(b Bundler) Option {
	return func(o *options) { o.bundler = b }
}

// WithStorage sets the store for the account journal and execution records. The caller keeps
// ownership and closes it.
func WithStorage(db storage.Storage) Option {
	return func(o *options) { o.db = db }
}

func WithCache(c *bigcache.BigCache) Option {
	return func(o *options) { o.cache = c }
}

func WithMetrics(m metrics.MetricsGenerator) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// AccountSalt is the factory nonce every account is created with.
var AccountSalt = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type SDK struct {
	config *config.Config
	logger logger.Logger

	client        chainio.Client
	authenticator passkey.Authenticator
	backend       Backend

	encoder   *actions.Encoder
	builder   *preset.Builder
	estimator preset.Estimator
	fees      *preset.FeeFiller
	submitter preset.Submitter
	resolver  *aerodrome.Resolver

	db      storage.Storage
	metrics metrics.MetricsGenerator
	now     func() time.Time

	closers []func() error
}

// New wires an SDK from cfg. Components not injected through opts are built from cfg. Without a
// passkey authenticator, either injected or loaded from cfg.PasskeyKeyFile, New fails with an
// UnsupportedEnvironmentError since nothing could sign for the account.
func New(cfg *config.Config, opts ...Option) (*SDK, error) {
	if cfg == nil {
		return nil, sdkerr.SDKError("Failed to initialize SDK", fmt.Errorf("config is required"))
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = cfg.Logger
	}
	lgr := logger.EnsureLogger(o.logger)

	if o.authenticator == nil && cfg.PasskeyKeyFile != "" {
		a, err := loadVirtualAuthenticator(cfg)
		if err != nil {
			return nil, sdkerr.PassKeyError("Failed to load passkey", err)
		}
		lgr.Warn("using a software passkey; never use this outside development", "keyFile", cfg.PasskeyKeyFile)
		o.authenticator = a
	}
	if o.authenticator == nil {
		return nil, sdkerr.UnsupportedEnvironmentError("LiquidSDK")
	}

	s := &SDK{
		config:        cfg,
		logger:        lgr,
		authenticator: o.authenticator,
		backend:       o.backend,
		client:        o.client,
		db:            o.db,
		metrics:       o.metrics,
		now:           o.now,
	}
	if err := s.init(o); err != nil {
		s.Close()
		return nil, sdkerr.SDKError("Failed to initialize SDK", err)
	}
	return s, nil
}

func (s *SDK) init(o *options) error {
	cfg := s.config
	addrs := cfg.Addresses.WithDefaults()

	if s.metrics == nil {
		s.metrics = metrics.NewNoopMetrics()
	}

	if s.client == nil {
		client, err := chainio.Dial(context.Background(), cfg.RPCURL, s.logger)
		if err != nil {
			return fmt.Errorf("cannot connect to %s: %w", cfg.RPCURL, err)
		}
		s.client = client
		s.closers = append(s.closers, func() error { client.Close(); return nil })
	}
	if cfg.ChainID != nil {
		chainID, err := s.client.ChainID(context.Background())
		if err != nil {
			return fmt.Errorf("cannot read chain id: %w", err)
		}
		if chainID.Cmp(cfg.ChainID) != 0 {
			return fmt.Errorf("rpc reports chain id %s, config expects %s", chainID, cfg.ChainID)
		}
	}

	if s.backend == nil {
		s.backend = apiclient.New(cfg.BackendURL, cfg.BackendAPIKey, s.logger).SetTimeout(cfg.BackendTimeout)
	}

	if s.db == nil {
		var (
			db  storage.Storage
			err error
		)
		if cfg.StoragePath != "" {
			db, err = storage.NewWithPath(cfg.StoragePath)
		} else {
			db, err = storage.NewInMemory()
		}
		if err != nil {
			return fmt.Errorf("cannot open storage: %w", err)
		}
		s.db = db
		s.closers = append(s.closers, db.Close)
		s.logger.Info("opened storage", "path", db.DbPath())
	}

	cache := o.cache
	if cache == nil {
		c, err := newCache()
		if err != nil {
			return err
		}
		cache = c
		s.closers = append(s.closers, c.Close)
	}

	s.encoder = actions.NewEncoder(addrs,
		actions.WithSlippageBps(cfg.SlippageBps),
		actions.WithDeadline(cfg.Deadline),
		actions.WithClock(s.now))
	s.builder = preset.NewBuilder(s.client, addrs, s.logger)
	s.fees = preset.NewFeeFiller(s.client)
	s.resolver = aerodrome.NewResolver(s.client, addrs, cache, s.logger)

	switch cfg.Mode {
	case config.ModeBundler:
		b := o.bundler
		if b == nil {
			client, err := bundler.NewBundlerClient(cfg.BundlerURL, s.logger)
			if err != nil {
				return fmt.Errorf("cannot connect to bundler: %w", err)
			}
			client.ReceiptTimeout = cfg.ReceiptTimeout
			s.closers = append(s.closers, func() error { client.Close(); return nil })
			b = client
		}
		entrypoints, err := b.SupportedEntryPoints(context.Background())
		if err != nil {
			return fmt.Errorf("cannot read bundler entrypoints: %w", err)
		}
		if !lo.Contains(entrypoints, addrs.EntryPoint) {
			return fmt.Errorf("bundler does not support entrypoint %s", addrs.EntryPoint.Hex())
		}
		s.estimator = preset.NewBundlerEstimator(b, addrs.EntryPoint, s.logger)
		s.submitter = preset.NewBundlerSubmitter(b, addrs.EntryPoint, s.logger)
	default:
		if cfg.RelayerKey == nil {
			return fmt.Errorf("direct mode requires a relayer key")
		}
		s.estimator = preset.NewEntryPointEstimator(s.client, addrs.EntryPoint, s.logger)
		s.submitter = preset.NewDirectSubmitter(s.client, signer.NewRelayer(cfg.RelayerKey), addrs.EntryPoint, s.logger)
	}
	return nil
}

// Close releases everything New opened itself. Injected components are left alone.
func (s *SDK) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("failed to close sdk resource", "err", err)
		}
	}
	s.closers = nil
}

// Encoder is the action encoder ExecuteStrategy uses, configured with the SDK's slippage and
// deadline.
func (s *SDK) Encoder() *actions.Encoder {
	return s.encoder
}

// Config returns the configuration the SDK was built with.
func (s *SDK) Config() *config.Config {
	return s.config
}

func loadVirtualAuthenticator(cfg *config.Config) (*passkey.VirtualAuthenticator, error) {
	data, err := os.ReadFile(cfg.PasskeyKeyFile)
	if err != nil {
		return nil, err
	}
	return passkey.VirtualAuthenticatorFromHex(strings.TrimSpace(string(data)), cfg.PasskeyRPID, cfg.PasskeyOrigin)
}

// newCache holds token metadata, which never changes for a deployed token.
func newCache() (*bigcache.BigCache, error) {
	cache, err := bigcache.New(context.Background(), bigcache.Config{
		// number of shards (must be a power of 2)
		Shards:             16,
		LifeWindow:         24 * time.Hour,
		CleanWindow:        10 * time.Minute,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       256,
		Verbose:            false,
		HardMaxCacheSize:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create cache: %w", err)
	}
	return cache, nil
}
