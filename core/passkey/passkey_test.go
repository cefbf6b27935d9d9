package passkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

var testChallenge = []byte("a backend issued challenge \xff\xfe")

func requestOptions() RequestOptions {
	return RequestOptions{Challenge: base64.StdEncoding.EncodeToString(testChallenge), RPID: "liquid.test"}
}

func assertion(t *testing.T, native bool) (*VirtualAuthenticator, AuthenticationResult) {
	t.Helper()
	v, err := NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)
	v.Native = native

	result, err := v.GetAssertion(context.Background(), requestOptions())
	require.NoError(t, err)
	return v, result
}

func TestCanonicalBase64(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbf, 0x01}
	std := base64.StdEncoding.EncodeToString(raw)
	url := base64.RawURLEncoding.EncodeToString(raw)

	got, err := CanonicalBase64(url)
	require.NoError(t, err)
	assert.Equal(t, std, got)

	again, err := CanonicalBase64(got)
	require.NoError(t, err)
	assert.Equal(t, got, again, "idempotent on canonical input")

	noisy, err := CanonicalBase64(" " + url[:3] + "\n" + url[3:] + "==")
	require.NoError(t, err)
	assert.Equal(t, std, noisy)

	_, err = CanonicalBase64("abcde")
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("A")
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestChallengeFromHex(t *testing.T) {
	a, err := ChallengeFromHex("0xdeadbeef")
	require.NoError(t, err)
	b, err := ChallengeFromHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, a)
	assert.Equal(t, a, b)

	_, err = ChallengeFromHex("0xzz")
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestNormalizeShapesAgree(t *testing.T) {
	v, web := assertion(t, false)

	// the same assertion re-encoded in the native shape
	a := web.Assertion()
	reencode := func(s string) string {
		raw, err := DecodeBase64(s)
		require.NoError(t, err)
		return base64.StdEncoding.EncodeToString(raw)
	}
	native := NativeAuthenticationResult{
		CredentialID:      v.CredentialID(),
		AuthenticatorData: reencode(a.AuthenticatorData),
		ClientDataJSON:    reencode(a.ClientDataJSON),
		Signature:         reencode(a.Signature),
	}

	fromWeb, err := Normalize(web, testChallenge)
	require.NoError(t, err)
	fromNative, err := Normalize(native, testChallenge)
	require.NoError(t, err)
	assert.Equal(t, fromWeb, fromNative)
}

func TestNormalizeIndices(t *testing.T) {
	for _, native := range []bool{false, true} {
		_, result := assertion(t, native)
		sig, err := Normalize(result, testChallenge)
		require.NoError(t, err)

		cd := sig.WebAuthn.ClientDataJSON
		encoded := base64.RawURLEncoding.EncodeToString(testChallenge)
		slice := cd[sig.WebAuthn.ChallengeIndex : sig.WebAuthn.ChallengeIndex+uint64(len(encoded))]
		decoded, err := base64.RawURLEncoding.DecodeString(slice)
		require.NoError(t, err)
		assert.Equal(t, testChallenge, decoded)

		assert.Equal(t, `"type":"webauthn.get"`, cd[sig.WebAuthn.TypeIndex:sig.WebAuthn.TypeIndex+21])
		assert.False(t, sig.WebAuthn.UserVerificationRequired)
		assert.Len(t, hexutil.MustDecode(sig.WebAuthn.AuthenticatorData), 37)
	}
}

func TestNormalizeProducesVerifiableLowS(t *testing.T) {
	v, result := assertion(t, false)
	sig, err := Normalize(result, testChallenge)
	require.NoError(t, err)

	assert.True(t, sig.S.Cmp(p256HalfN) <= 0)

	authData := hexutil.MustDecode(sig.WebAuthn.AuthenticatorData)
	clientHash := sha256.Sum256([]byte(sig.WebAuthn.ClientDataJSON))
	digest := sha256.Sum256(append(authData, clientHash[:]...))

	pub := v.PublicKey()
	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pub[:32]),
		Y:     new(big.Int).SetBytes(pub[32:]),
	}
	assert.True(t, ecdsa.Verify(key, digest[:], sig.R, sig.S))
}

func TestNormalizeErrors(t *testing.T) {
	_, web := assertion(t, false)

	_, err := Normalize(web, []byte("some other challenge"))
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)

	broken := web.(WebAuthenticationResult)
	broken.Response.Signature = "!"
	_, err = Normalize(broken, testChallenge)
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)

	notDER := web.(WebAuthenticationResult)
	notDER.Response.Signature = base64.RawURLEncoding.EncodeToString([]byte{0x30, 0x01, 0x00})
	_, err = Normalize(notDER, testChallenge)
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)

	_, err = Normalize(nil, testChallenge)
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestParseDERFlipsHighS(t *testing.T) {
	r := big.NewInt(12345)
	highS := new(big.Int).Sub(p256N, big.NewInt(7))

	der := derSignature(r, highS)
	gotR, gotS, err := parseDER(der)
	require.NoError(t, err)
	assert.Equal(t, r, gotR)
	assert.Equal(t, big.NewInt(7), gotS)
}

func derSignature(r, s *big.Int) []byte {
	integer := func(v *big.Int) []byte {
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return append([]byte{0x02, byte(len(b))}, b...)
	}
	body := append(integer(r), integer(s)...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestParseAuthenticationResult(t *testing.T) {
	_, web := assertion(t, false)
	data, err := json.Marshal(web)
	require.NoError(t, err)

	parsed, err := ParseAuthenticationResult(data)
	require.NoError(t, err)
	assert.IsType(t, WebAuthenticationResult{}, parsed)
	assert.Equal(t, web, parsed)

	_, native := assertion(t, true)
	data, err = json.Marshal(native)
	require.NoError(t, err)

	parsed, err = ParseAuthenticationResult(data)
	require.NoError(t, err)
	assert.IsType(t, NativeAuthenticationResult{}, parsed)
	assert.Equal(t, native.Credential(), parsed.Credential())

	_, err = ParseAuthenticationResult([]byte("not json"))
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestParseRegistrationResult(t *testing.T) {
	v, err := NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	reg, err := v.CreateCredential(context.Background(), CreationOptions{Challenge: "Y2hhbGxlbmdl"})
	require.NoError(t, err)
	data, err := json.Marshal(reg)
	require.NoError(t, err)

	parsed, err := ParseRegistrationResult(data)
	require.NoError(t, err)
	assert.IsType(t, WebRegistrationResult{}, parsed)
	assert.Equal(t, v.CredentialID(), parsed.Credential())

	v.Native = true
	reg, err = v.CreateCredential(context.Background(), CreationOptions{Challenge: "Y2hhbGxlbmdl"})
	require.NoError(t, err)
	data, err = json.Marshal(reg)
	require.NoError(t, err)

	parsed, err = ParseRegistrationResult(data)
	require.NoError(t, err)
	assert.IsType(t, NativeRegistrationResult{}, parsed)
}

func TestPublicKeyFromBase64(t *testing.T) {
	v, err := NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)
	pub := v.PublicKey()

	uncompressed := append([]byte{0x04}, pub...)
	got, err := PublicKeyFromBase64(base64.StdEncoding.EncodeToString(uncompressed))
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	got, err = PublicKeyFromBase64(base64.RawURLEncoding.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	_, err = PublicKeyFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 64)))
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)

	_, err = PublicKeyFromBase64(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, sdkerr.ErrSignatureDecoding)
}

func TestVirtualAuthenticatorFromHex(t *testing.T) {
	v, err := NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	loaded, err := VirtualAuthenticatorFromHex(v.PrivateKeyHex(), "liquid.test", "https://liquid.test")
	require.NoError(t, err)
	assert.Equal(t, v.PublicKey(), loaded.PublicKey())
	assert.Equal(t, v.CredentialID(), loaded.CredentialID())

	_, err = VirtualAuthenticatorFromHex("0x00", "liquid.test", "")
	assert.Error(t, err)
}

func TestVirtualAuthenticatorHonorsContext(t *testing.T) {
	v, err := NewVirtualAuthenticator("liquid.test", "https://liquid.test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.GetAssertion(ctx, requestOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignatureEncode(t *testing.T) {
	_, result := assertion(t, false)
	sig, err := Normalize(result, testChallenge)
	require.NoError(t, err)

	encoded, err := sig.Encode(1)
	require.NoError(t, err)

	outer, err := abi.Arguments{{Type: signatureWrapperT}}.Unpack(encoded)
	require.NoError(t, err)
	wrapper := *abi.ConvertType(outer[0], new(signatureWrapper)).(*signatureWrapper)
	assert.Equal(t, int64(1), wrapper.OwnerIndex.Int64())

	inner, err := abi.Arguments{{Type: webAuthnAuthT}}.Unpack(wrapper.SignatureData)
	require.NoError(t, err)
	auth := *abi.ConvertType(inner[0], new(webAuthnAuth)).(*webAuthnAuth)

	assert.Equal(t, sig.WebAuthn.ClientDataJSON, auth.ClientDataJSON)
	assert.Equal(t, sig.R, auth.R)
	assert.Equal(t, sig.S, auth.S)
	assert.Equal(t, sig.WebAuthn.TypeIndex, auth.TypeIndex.Uint64())

	// the verifier slices from the challenge key
	key := auth.ChallengeIndex.Uint64()
	assert.Equal(t, `"challenge":"`, auth.ClientDataJSON[key:key+13])

	_, err = (&Signature{}).Encode(0)
	assert.ErrorIs(t, err, sdkerr.ErrEncoding)
}

func TestDummySignatureHasRealLayout(t *testing.T) {
	encoded := DummySignature()
	// a real passkey signature is several hundred bytes, far more than a bare 32 byte hash
	assert.Greater(t, len(encoded), 500)

	outer, err := abi.Arguments{{Type: signatureWrapperT}}.Unpack(encoded)
	require.NoError(t, err)
	wrapper := *abi.ConvertType(outer[0], new(signatureWrapper)).(*signatureWrapper)

	inner, err := abi.Arguments{{Type: webAuthnAuthT}}.Unpack(wrapper.SignatureData)
	require.NoError(t, err)
	auth := *abi.ConvertType(inner[0], new(webAuthnAuth)).(*webAuthnAuth)

	assert.Len(t, auth.AuthenticatorData, 37)
	key := auth.ChallengeIndex.Uint64()
	assert.Equal(t, `"challenge":"`, auth.ClientDataJSON[key:key+13])
	assert.Equal(t, typeGet, auth.ClientDataJSON[auth.TypeIndex.Uint64():auth.TypeIndex.Uint64()+uint64(len(typeGet))])
}
