package passkey

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
)

// VirtualAuthenticator is a software P-256 passkey for development and tests. It signs real
// WebAuthn assertions, so its output passes on-chain verification against its public key.
type VirtualAuthenticator struct {
	key          *ecdsa.PrivateKey
	credentialID []byte
	rpID         string
	origin       string

	// Native switches the result shape to the flat mobile form with standard base64.
	Native bool

	mu        sync.Mutex
	signCount uint32
}

// NewVirtualAuthenticator generates a fresh key.
func NewVirtualAuthenticator(rpID, origin string) (*VirtualAuthenticator, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return newVirtual(key, rpID, origin), nil
}

// VirtualAuthenticatorFromHex loads a 32-byte P-256 scalar, e.g. from a dev key file.
func VirtualAuthenticatorFromHex(keyHex, rpID, origin string) (*VirtualAuthenticator, error) {
	d, err := ChallengeFromHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid passkey private key: %w", err)
	}
	priv, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("invalid passkey private key: %w", err)
	}
	pub := priv.PublicKey().Bytes()

	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pub[1:33]),
			Y:     new(big.Int).SetBytes(pub[33:]),
		},
		D: new(big.Int).SetBytes(d),
	}
	return newVirtual(key, rpID, origin), nil
}

func newVirtual(key *ecdsa.PrivateKey, rpID, origin string) *VirtualAuthenticator {
	pub := make([]byte, 64)
	key.X.FillBytes(pub[:32])
	key.Y.FillBytes(pub[32:])
	return &VirtualAuthenticator{
		key:          key,
		credentialID: crypto.Keccak256(pub)[:16],
		rpID:         rpID,
		origin:       origin,
	}
}

// PublicKey returns the 64-byte x||y owner bytes.
func (v *VirtualAuthenticator) PublicKey() []byte {
	pub := make([]byte, 64)
	v.key.X.FillBytes(pub[:32])
	v.key.Y.FillBytes(pub[32:])
	return pub
}

// PrivateKeyHex is the inverse of VirtualAuthenticatorFromHex.
func (v *VirtualAuthenticator) PrivateKeyHex() string {
	d := make([]byte, 32)
	v.key.D.FillBytes(d)
	return hexutil.Encode(d)
}

// CredentialID is the base64url credential id.
func (v *VirtualAuthenticator) CredentialID() string {
	return base64.RawURLEncoding.EncodeToString(v.credentialID)
}

// CreateCredential returns a registration whose attestationObject carries the raw uncompressed
// public key. Only development backends accept it.
func (v *VirtualAuthenticator) CreateCredential(ctx context.Context, options CreationOptions) (RegistrationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	challenge, err := options.ChallengeBytes()
	if err != nil {
		return nil, err
	}

	clientData, err := v.clientData("webauthn.create", challenge)
	if err != nil {
		return nil, err
	}
	attestation := append([]byte{0x04}, v.PublicKey()...)

	if v.Native {
		return NativeRegistrationResult{
			CredentialID:      v.CredentialID(),
			AttestationObject: base64.StdEncoding.EncodeToString(attestation),
			ClientDataJSON:    base64.StdEncoding.EncodeToString(clientData),
		}, nil
	}
	return WebRegistrationResult{
		ID:    v.CredentialID(),
		RawID: v.CredentialID(),
		Type:  "public-key",
		Response: AttestationResponse{
			AttestationObject: base64.RawURLEncoding.EncodeToString(attestation),
			ClientDataJSON:    base64.RawURLEncoding.EncodeToString(clientData),
		},
	}, nil
}

// GetAssertion signs sha256(authenticatorData || sha256(clientDataJSON)) as a platform
// authenticator would.
func (v *VirtualAuthenticator) GetAssertion(ctx context.Context, options RequestOptions) (AuthenticationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	challenge, err := options.ChallengeBytes()
	if err != nil {
		return nil, err
	}

	clientData, err := v.clientData("webauthn.get", challenge)
	if err != nil {
		return nil, err
	}
	authData := v.authenticatorData()

	clientHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(append([]byte{}, authData...), clientHash[:]...))
	der, err := ecdsa.SignASN1(rand.Reader, v.key, digest[:])
	if err != nil {
		return nil, err
	}

	if v.Native {
		return NativeAuthenticationResult{
			CredentialID:      v.CredentialID(),
			AuthenticatorData: base64.StdEncoding.EncodeToString(authData),
			ClientDataJSON:    base64.StdEncoding.EncodeToString(clientData),
			Signature:         base64.StdEncoding.EncodeToString(der),
		}, nil
	}
	return WebAuthenticationResult{
		ID:    v.CredentialID(),
		RawID: v.CredentialID(),
		Type:  "public-key",
		Response: AssertionResponse{
			AuthenticatorData: base64.RawURLEncoding.EncodeToString(authData),
			ClientDataJSON:    base64.RawURLEncoding.EncodeToString(clientData),
			Signature:         base64.RawURLEncoding.EncodeToString(der),
		},
	}, nil
}

// clientData keeps the field order browsers emit: type, challenge, origin, crossOrigin.
func (v *VirtualAuthenticator) clientData(typ string, challenge []byte) ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Challenge   string `json:"challenge"`
		Origin      string `json:"origin"`
		CrossOrigin bool   `json:"crossOrigin"`
	}{
		Type:      typ,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    v.origin,
	})
}

func (v *VirtualAuthenticator) authenticatorData() []byte {
	v.mu.Lock()
	v.signCount++
	count := v.signCount
	v.mu.Unlock()

	rpHash := sha256.Sum256([]byte(v.rpID))
	out := make([]byte, 0, 37)
	out = append(out, rpHash[:]...)
	out = append(out, flagUserPresent|flagUserVerified)
	return binary.BigEndian.AppendUint32(out, count)
}
