package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Relayer is the EOA that pays for handleOps when operations are sent straight to the EntryPoint.
type Relayer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewRelayer(key *ecdsa.PrivateKey) *Relayer {
	return &Relayer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func FromPrivateKeyHex(privateKeyHex string) (*Relayer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid relayer key: %w", err)
	}

	return NewRelayer(privateKey), nil
}

func (r *Relayer) Address() common.Address {
	return r.address
}

// SignTx signs tx for chainID with the latest signer the chain supports.
func (r *Relayer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), r.key)
}
