package passkey

import (
	"crypto/elliptic"
	"encoding/base64"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

const (
	typeGet         = `"type":"webauthn.get"`
	challengePrefix = `"challenge":"`
)

var (
	p256N     = elliptic.P256().Params().N
	p256HalfN = new(big.Int).Rsh(p256N, 1)
)

// Normalize converts an assertion of either shape into a Signature. challenge is the raw challenge
// the assertion was requested with; it must appear base64url encoded in clientDataJSON.
func Normalize(result AuthenticationResult, challenge []byte) (*Signature, error) {
	if result == nil {
		return nil, sdkerr.SignatureDecodingError("authentication result is nil")
	}
	assertion := result.Assertion()

	der, err := DecodeBase64(assertion.Signature)
	if err != nil {
		return nil, err
	}
	authData, err := DecodeBase64(assertion.AuthenticatorData)
	if err != nil {
		return nil, err
	}
	clientData, err := DecodeBase64(assertion.ClientDataJSON)
	if err != nil {
		return nil, err
	}
	clientDataJSON := string(clientData)

	r, s, err := parseDER(der)
	if err != nil {
		return nil, err
	}

	typeIndex := strings.Index(clientDataJSON, typeGet)
	if typeIndex < 0 {
		return nil, sdkerr.SignatureDecodingError("clientDataJSON is not a webauthn.get assertion")
	}
	challengeIndex, err := locateChallenge(clientDataJSON, challenge)
	if err != nil {
		return nil, err
	}

	return &Signature{
		SignatureHex: hexutil.Encode(der),
		R:            r,
		S:            s,
		WebAuthn: WebAuthnData{
			AuthenticatorData:        hexutil.Encode(authData),
			ClientDataJSON:           clientDataJSON,
			ChallengeIndex:           uint64(challengeIndex),
			TypeIndex:                uint64(typeIndex),
			UserVerificationRequired: false,
		},
	}, nil
}

// locateChallenge returns the offset of the encoded challenge value, i.e. just past `"challenge":"`.
func locateChallenge(clientDataJSON string, challenge []byte) (int, error) {
	encoded := base64.RawURLEncoding.EncodeToString(challenge)
	idx := strings.Index(clientDataJSON, challengePrefix+encoded+`"`)
	if idx < 0 {
		return 0, sdkerr.SignatureDecodingError("challenge not found in clientDataJSON")
	}
	return idx + len(challengePrefix), nil
}

// parseDER reads an ASN.1 ECDSA signature and returns r and the low-s form of s.
func parseDER(der []byte) (*big.Int, *big.Int, error) {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, sdkerr.SignatureDecodingError("invalid DER signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(p256N) >= 0 || s.Cmp(p256N) >= 0 {
		return nil, nil, sdkerr.SignatureDecodingError("signature values out of range")
	}

	if s.Cmp(p256HalfN) > 0 {
		s.Sub(p256N, s)
	}
	return r, s, nil
}

type webAuthnAuth struct {
	AuthenticatorData []byte
	ClientDataJSON    string
	ChallengeIndex    *big.Int
	TypeIndex         *big.Int
	R                 *big.Int
	S                 *big.Int
}

type signatureWrapper struct {
	OwnerIndex    *big.Int
	SignatureData []byte
}

var (
	webAuthnAuthT, _ = abi.NewType("tuple", "struct WebAuthnAuth", []abi.ArgumentMarshaling{
		{Name: "authenticatorData", Type: "bytes"},
		{Name: "clientDataJSON", Type: "string"},
		{Name: "challengeIndex", Type: "uint256"},
		{Name: "typeIndex", Type: "uint256"},
		{Name: "r", Type: "uint256"},
		{Name: "s", Type: "uint256"},
	})
	signatureWrapperT, _ = abi.NewType("tuple", "struct SignatureWrapper", []abi.ArgumentMarshaling{
		{Name: "ownerIndex", Type: "uint256"},
		{Name: "signatureData", Type: "bytes"},
	})
)

// Encode produces the smart wallet signature: abi.encode(SignatureWrapper(ownerIndex,
// abi.encode(WebAuthnAuth))). The on-chain verifier expects challengeIndex to point at the
// `"challenge"` key rather than at the value.
func (sig *Signature) Encode(ownerIndex uint64) ([]byte, error) {
	if sig == nil || sig.R == nil || sig.S == nil {
		return nil, sdkerr.EncodingError("signature is incomplete")
	}
	authData, err := hexutil.Decode(sig.WebAuthn.AuthenticatorData)
	if err != nil {
		return nil, sdkerr.EncodingError("invalid authenticator data: %v", err)
	}
	if sig.WebAuthn.ChallengeIndex < uint64(len(challengePrefix)) {
		return nil, sdkerr.EncodingError("challenge index %d precedes the challenge key", sig.WebAuthn.ChallengeIndex)
	}

	auth, err := abi.Arguments{{Type: webAuthnAuthT}}.Pack(webAuthnAuth{
		AuthenticatorData: authData,
		ClientDataJSON:    sig.WebAuthn.ClientDataJSON,
		ChallengeIndex:    new(big.Int).SetUint64(sig.WebAuthn.ChallengeIndex - uint64(len(challengePrefix))),
		TypeIndex:         new(big.Int).SetUint64(sig.WebAuthn.TypeIndex),
		R:                 sig.R,
		S:                 sig.S,
	})
	if err != nil {
		return nil, sdkerr.EncodingError("failed to encode WebAuthnAuth: %v", err)
	}

	out, err := abi.Arguments{{Type: signatureWrapperT}}.Pack(signatureWrapper{
		OwnerIndex:    new(big.Int).SetUint64(ownerIndex),
		SignatureData: auth,
	})
	if err != nil {
		return nil, sdkerr.EncodingError("failed to encode SignatureWrapper: %v", err)
	}
	return out, nil
}

// DummySignature is an encoded signature with the size and layout of a real assertion from a
// platform authenticator. Its r and s do not verify. Gas estimation needs it because
// preVerificationGas grows with signature length and validation decodes the wrapper.
func DummySignature() []byte {
	clientData := `{"type":"webauthn.get","challenge":"` + strings.Repeat("A", 43) + `","origin":"https://keys.coinbase.com","crossOrigin":false}`
	authData := make([]byte, 37)
	authData[32] = 0x05

	sig := &Signature{
		R: new(big.Int).Set(p256HalfN),
		S: new(big.Int).Set(p256HalfN),
		WebAuthn: WebAuthnData{
			AuthenticatorData: hexutil.Encode(authData),
			ClientDataJSON:    clientData,
			ChallengeIndex:    uint64(strings.Index(clientData, challengePrefix) + len(challengePrefix)),
			TypeIndex:         uint64(strings.Index(clientData, typeGet)),
		},
	}
	out, err := sig.Encode(0)
	if err != nil {
		panic(err)
	}
	return out
}
