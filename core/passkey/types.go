// Package passkey normalizes WebAuthn passkey results into the signature the smart wallet verifies.
//
// Two result shapes exist. The browser shape nests the assertion under a "response" field and uses
// base64url; the native mobile shape is flat and usually standard base64. Both are parsed into a
// closed set of Go types here and erased by Normalize, so nothing downstream branches on shape.
package passkey

import (
	"context"
	"math/big"
)

// AssertionResponse holds the encoded fields of a WebAuthn assertion.
type AssertionResponse struct {
	AuthenticatorData string `json:"authenticatorData" mapstructure:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON" mapstructure:"clientDataJSON"`
	Signature         string `json:"signature" mapstructure:"signature"`
	UserHandle        string `json:"userHandle,omitempty" mapstructure:"userHandle"`
}

// AttestationResponse holds the encoded fields of a WebAuthn registration.
type AttestationResponse struct {
	AttestationObject string `json:"attestationObject" mapstructure:"attestationObject"`
	ClientDataJSON    string `json:"clientDataJSON" mapstructure:"clientDataJSON"`
}

// AuthenticationResult is implemented by WebAuthenticationResult and NativeAuthenticationResult.
type AuthenticationResult interface {
	Credential() string
	Assertion() AssertionResponse
	isAuthenticationResult()
}

// RegistrationResult is implemented by WebRegistrationResult and NativeRegistrationResult.
type RegistrationResult interface {
	Credential() string
	Attestation() AttestationResponse
	isRegistrationResult()
}

type WebAuthenticationResult struct {
	ID       string            `json:"id" mapstructure:"id"`
	RawID    string            `json:"rawId" mapstructure:"rawId"`
	Type     string            `json:"type" mapstructure:"type"`
	Response AssertionResponse `json:"response" mapstructure:"response"`
}

type NativeAuthenticationResult struct {
	CredentialID      string `json:"credentialId" mapstructure:"credentialId"`
	AuthenticatorData string `json:"authenticatorData" mapstructure:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON" mapstructure:"clientDataJSON"`
	Signature         string `json:"signature" mapstructure:"signature"`
	UserHandle        string `json:"userHandle,omitempty" mapstructure:"userHandle"`
}

type WebRegistrationResult struct {
	ID       string              `json:"id" mapstructure:"id"`
	RawID    string              `json:"rawId" mapstructure:"rawId"`
	Type     string              `json:"type" mapstructure:"type"`
	Response AttestationResponse `json:"response" mapstructure:"response"`
}

type NativeRegistrationResult struct {
	CredentialID      string `json:"credentialId" mapstructure:"credentialId"`
	AttestationObject string `json:"attestationObject" mapstructure:"attestationObject"`
	ClientDataJSON    string `json:"clientDataJSON" mapstructure:"clientDataJSON"`
}

func (r WebAuthenticationResult) Credential() string            { return r.ID }
func (r WebAuthenticationResult) Assertion() AssertionResponse { return r.Response }
func (WebAuthenticationResult) isAuthenticationResult()        {}

func (r NativeAuthenticationResult) Credential() string { return r.CredentialID }
func (r NativeAuthenticationResult) Assertion() AssertionResponse {
	return AssertionResponse{
		AuthenticatorData: r.AuthenticatorData,
		ClientDataJSON:    r.ClientDataJSON,
		Signature:         r.Signature,
		UserHandle:        r.UserHandle,
	}
}
func (NativeAuthenticationResult) isAuthenticationResult() {}

func (r WebRegistrationResult) Credential() string                { return r.ID }
func (r WebRegistrationResult) Attestation() AttestationResponse { return r.Response }
func (WebRegistrationResult) isRegistrationResult()              {}

func (r NativeRegistrationResult) Credential() string { return r.CredentialID }
func (r NativeRegistrationResult) Attestation() AttestationResponse {
	return AttestationResponse{AttestationObject: r.AttestationObject, ClientDataJSON: r.ClientDataJSON}
}
func (NativeRegistrationResult) isRegistrationResult() {}

type RelyingParty struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredentialParameter struct {
	Alg  int    `json:"alg"`
	Type string `json:"type"`
}

type CredentialDescriptor struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CreationOptions is the registration options document issued by the backend.
type CreationOptions struct {
	Challenge        string                `json:"challenge"`
	RP               RelyingParty          `json:"rp"`
	User             User                  `json:"user"`
	PubKeyCredParams []CredentialParameter `json:"pubKeyCredParams"`
	Timeout          int                   `json:"timeout,omitempty"`
	Attestation      string                `json:"attestation,omitempty"`
}

// RequestOptions is the authentication options document issued by the backend.
type RequestOptions struct {
	Challenge        string                 `json:"challenge"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials,omitempty"`
	Timeout          int                    `json:"timeout,omitempty"`
	RPID             string                 `json:"rpId,omitempty"`
}

// ChallengeBytes decodes the challenge, which backends send as base64 or base64url.
func (o RequestOptions) ChallengeBytes() ([]byte, error) {
	return DecodeBase64(o.Challenge)
}

func (o CreationOptions) ChallengeBytes() ([]byte, error) {
	return DecodeBase64(o.Challenge)
}

// Authenticator is the platform passkey capability: a browser bridge, a mobile module or the
// software VirtualAuthenticator.
type Authenticator interface {
	CreateCredential(ctx context.Context, options CreationOptions) (RegistrationResult, error)
	GetAssertion(ctx context.Context, options RequestOptions) (AuthenticationResult, error)
}

// WebAuthnData locates the signed fields for on-chain verification.
type WebAuthnData struct {
	// AuthenticatorData is 0x-prefixed hex.
	AuthenticatorData        string `json:"authenticatorData"`
	ClientDataJSON           string `json:"clientDataJSON"`
	ChallengeIndex           uint64 `json:"challengeIndex"`
	TypeIndex                uint64 `json:"typeIndex"`
	UserVerificationRequired bool   `json:"userVerificationRequired"`
}

// Signature is the shape-independent form of an assertion.
type Signature struct {
	// SignatureHex is the DER signature as 0x-prefixed hex.
	SignatureHex string       `json:"signatureHex"`
	R            *big.Int     `json:"r"`
	S            *big.Int     `json:"s"`
	WebAuthn     WebAuthnData `json:"webauthn"`
}
