// Package apiclient talks to the Liquid backend, which issues WebAuthn challenges, verifies
// attestations and assertions, and records the smart account address of each user.
package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"

	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/pkg/logger"
)

const DefaultTimeout = 30 * time.Second

// HTTPError is a non-2xx backend response. Message is the backend's "error" field when present.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

type errorBody struct {
	Error string `json:"error"`
}

type RegistrationVerification struct {
	Verified  bool   `json:"verified"`
	PublicKey string `json:"publicKey"`
}

type AuthenticationVerification struct {
	Success bool `json:"success"`
}

type UpdateResult struct {
	Success bool `json:"success"`
}

type Client struct {
	http   *resty.Client
	apiKey string
	logger logger.Logger
}

func New(baseURL, apiKey string, lgr logger.Logger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultTimeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   c,
		apiKey: apiKey,
		logger: logger.EnsureLogger(lgr),
	}
}

// SetTimeout overrides DefaultTimeout for every request.
func (c *Client) SetTimeout(d time.Duration) *Client {
	c.http.SetTimeout(d)
	return c
}

func (c *Client) GetRegistrationOptions(ctx context.Context, username string) (*passkey.CreationOptions, error) {
	var out passkey.CreationOptions
	if err := c.do(ctx, http.MethodGet, "/registration/options", username, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyRegistration(ctx context.Context, username string, result passkey.RegistrationResult) (*RegistrationVerification, error) {
	body := map[string]interface{}{
		"userName":             username,
		"registrationResponse": result,
	}
	var out RegistrationVerification
	if err := c.do(ctx, http.MethodPost, "/registration/verify", "", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAuthenticationOptions(ctx context.Context, username string) (*passkey.RequestOptions, error) {
	var out passkey.RequestOptions
	if err := c.do(ctx, http.MethodGet, "/authentication/options", username, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyAuthentication(ctx context.Context, username string, result passkey.AuthenticationResult) (*AuthenticationVerification, error) {
	body := map[string]interface{}{
		"userName":               username,
		"authenticationResponse": result,
	}
	var out AuthenticationVerification
	if err := c.do(ctx, http.MethodPost, "/authentication/verify", "", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserAddress is the only authenticated call; it sends the API key.
func (c *Client) UpdateUserAddress(ctx context.Context, username string, address common.Address) (*UpdateResult, error) {
	body := map[string]interface{}{
		"userName":    username,
		"userAddress": address.Hex(),
	}
	var out UpdateResult
	if err := c.do(ctx, http.MethodPut, "/user/update", "", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, user string, body, result interface{}, withKey bool) error {
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errorBody{})
	if user != "" {
		req.SetQueryParam("user", user)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if withKey {
		req.SetHeader("X-API-Key", c.apiKey)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		herr := &HTTPError{Status: resp.StatusCode()}
		if e, ok := resp.Error().(*errorBody); ok && e != nil {
			herr.Message = e.Error
		}
		c.logger.Debug("backend request failed", "method", method, "path", path, "status", herr.Status, "error", herr.Message)
		return herr
	}
	return nil
}
