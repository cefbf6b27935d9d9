package passkey

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mitchellh/mapstructure"

	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
)

// CanonicalBase64 rewrites base64 or base64url input as padded standard base64. Characters
// outside both alphabets are dropped. Already canonical input is returned unchanged.
func CanonicalBase64(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) + 3)
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
			b.WriteRune(c)
		case c == '-':
			b.WriteByte('+')
		case c == '_':
			b.WriteByte('/')
		}
	}

	out := b.String()
	switch len(out) % 4 {
	case 1:
		return "", sdkerr.SignatureDecodingError("invalid base64 length %d", len(out))
	case 2:
		out += "=="
	case 3:
		out += "="
	}
	return out, nil
}

// DecodeBase64 accepts either alphabet, with or without padding.
func DecodeBase64(s string) ([]byte, error) {
	canonical, err := CanonicalBase64(s)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(canonical)
	if err != nil {
		return nil, sdkerr.SignatureDecodingError("invalid base64 content: %v", err)
	}
	return raw, nil
}

// ChallengeFromHex decodes a hex challenge with or without the 0x prefix.
func ChallengeFromHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, sdkerr.SignatureDecodingError("invalid challenge %q: %v", s, err)
	}
	return raw, nil
}

// PublicKeyFromBase64 converts the backend's P-256 public key into the 64-byte x||y form the
// smart wallet factory takes as an owner.
func PublicKeyFromBase64(s string) ([]byte, error) {
	raw, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}

	switch {
	case len(raw) == 64:
		raw = append([]byte{0x04}, raw...)
	case len(raw) == 65 && raw[0] == 0x04:
	default:
		return nil, sdkerr.SignatureDecodingError("unexpected public key length %d", len(raw))
	}

	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return nil, sdkerr.SignatureDecodingError("public key is not on P-256: %v", err)
	}
	return raw[1:], nil
}

// ParseAuthenticationResult decodes an assertion in either shape. A "response" field selects the
// web shape.
func ParseAuthenticationResult(raw []byte) (AuthenticationResult, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if _, ok := fields["response"]; ok {
		var r WebAuthenticationResult
		if err := decodeInto(fields, &r); err != nil {
			return nil, err
		}
		return r, nil
	}

	var r NativeAuthenticationResult
	if err := decodeInto(fields, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRegistrationResult is ParseAuthenticationResult for registrations.
func ParseRegistrationResult(raw []byte) (RegistrationResult, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if _, ok := fields["response"]; ok {
		var r WebRegistrationResult
		if err := decodeInto(fields, &r); err != nil {
			return nil, err
		}
		return r, nil
	}

	var r NativeRegistrationResult
	if err := decodeInto(fields, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeObject(raw []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, sdkerr.SignatureDecodingError("invalid passkey result: %v", err)
	}
	if fields == nil {
		return nil, sdkerr.SignatureDecodingError("invalid passkey result: empty document")
	}
	return fields, nil
}

func decodeInto(fields map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: false,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(fields); err != nil {
		return sdkerr.SignatureDecodingError("invalid passkey result: %v", err)
	}
	return nil
}
