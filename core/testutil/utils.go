package testutil

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/AvaProtocol/liquid-sdk/storage"
)

// Well known accounts used across tests
var (
	TestAccount  = common.HexToAddress("0x7c3a76086588230c7B3f4839A4c1F5BBafcd57C6")
	TestTokenA   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	TestTokenB   = common.HexToAddress("0x940181a94A35A4569E4529A3CDfB74e38FD98631")
	TestRelayKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

// TestMustDB opens an in-memory badger store and panics if it cannot.
func TestMustDB() storage.Storage {
	db, err := storage.NewInMemory()
	if err != nil {
		panic(err)
	}
	return db
}

func GetLogger() sdklogging.Logger {
	logger, err := sdklogging.NewZapLogger("development")
	if err != nil {
		panic(err)
	}
	return logger
}

func GetRelayerKey() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(TestRelayKey[2:])
	if err != nil {
		panic(err)
	}
	return key
}

func GetDefaultCache() *bigcache.BigCache {
	config := bigcache.DefaultConfig(10 * time.Minute)
	config.Shards = 16
	config.MaxEntriesInWindow = 1000
	config.MaxEntrySize = 500
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		panic(fmt.Errorf("error get default cache for test"))
	}
	return cache
}
