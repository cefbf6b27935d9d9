package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/AvaProtocol/liquid-sdk/core/passkey"
)

// TestChallenge is the challenge BackendServer issues unless overridden.
var TestChallenge = []byte("liquid-test-challenge-0001")

type backendFailure struct {
	status  int
	message string
}

// BackendServer is an echo backed stand-in for the Liquid backend. Registration verification
// accepts the raw public key that VirtualAuthenticator places in its attestation object.
type BackendServer struct {
	*httptest.Server

	mu            sync.Mutex
	challenge     []byte
	apiKey        string
	verified      bool
	authSuccess   bool
	updateSuccess bool
	failures      map[string]backendFailure
	calls         map[string]int
	addresses     map[string]string
}

func NewBackendServer(apiKey string) *BackendServer {
	s := &BackendServer{
		challenge:     TestChallenge,
		apiKey:        apiKey,
		verified:      true,
		authSuccess:   true,
		updateSuccess: true,
		failures:      map[string]backendFailure{},
		calls:         map[string]int{},
		addresses:     map[string]string{},
	}

	e := echo.New()
	e.HideBanner = true
	e.GET("/registration/options", s.registrationOptions)
	e.POST("/registration/verify", s.registrationVerify)
	e.GET("/authentication/options", s.authenticationOptions)
	e.POST("/authentication/verify", s.authenticationVerify)
	e.PUT("/user/update", s.userUpdate)
	s.Server = httptest.NewServer(e)
	return s
}

// SetVerified controls the "verified" flag of registration verification.
func (s *BackendServer) SetVerified(v bool) *BackendServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = v
	return s
}

// SetAuthSuccess controls the "success" flag of authentication verification.
func (s *BackendServer) SetAuthSuccess(v bool) *BackendServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authSuccess = v
	return s
}

// SetUpdateSuccess controls the "success" flag of the user address update. A rejected update
// records no address.
func (s *BackendServer) SetUpdateSuccess(v bool) *BackendServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateSuccess = v
	return s
}

// Fail makes path answer with status and {"error": message}. An empty message omits the body field.
func (s *BackendServer) Fail(path string, status int, message string) *BackendServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = backendFailure{status: status, message: message}
	return s
}

func (s *BackendServer) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Address returns the address recorded through /user/update.
func (s *BackendServer) Address(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses[user]
}

// enter counts the call and reports an injected failure, if any.
func (s *BackendServer) enter(c echo.Context) (bool, error) {
	path := c.Path()
	s.mu.Lock()
	s.calls[path]++
	f, failing := s.failures[path]
	s.mu.Unlock()

	if !failing {
		return false, nil
	}
	body := map[string]string{}
	if f.message != "" {
		body["error"] = f.message
	}
	return true, c.JSON(f.status, body)
}

func (s *BackendServer) registrationOptions(c echo.Context) error {
	if done, err := s.enter(c); done {
		return err
	}
	user := c.QueryParam("user")
	return c.JSON(http.StatusOK, passkey.CreationOptions{
		Challenge:        base64.StdEncoding.EncodeToString(s.challenge),
		RP:               passkey.RelyingParty{Name: "Liquid", ID: "liquid.test"},
		User:             passkey.User{ID: user, Name: user, DisplayName: user},
		PubKeyCredParams: []passkey.CredentialParameter{{Alg: -7, Type: "public-key"}},
		Timeout:          60000,
		Attestation:      "none",
	})
}

func (s *BackendServer) registrationVerify(c echo.Context) error {
	if done, err := s.enter(c); done {
		return err
	}
	var req struct {
		UserName             string          `json:"userName"`
		RegistrationResponse json.RawMessage `json:"registrationResponse"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	result, err := passkey.ParseRegistrationResult(req.RegistrationResponse)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	publicKey, err := passkey.DecodeBase64(result.Attestation().AttestationObject)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	verified := s.verified
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"verified":  verified,
		"publicKey": base64.StdEncoding.EncodeToString(publicKey),
	})
}

func (s *BackendServer) authenticationOptions(c echo.Context) error {
	if done, err := s.enter(c); done {
		return err
	}
	return c.JSON(http.StatusOK, passkey.RequestOptions{
		Challenge: base64.StdEncoding.EncodeToString(s.challenge),
		RPID:      "liquid.test",
		Timeout:   60000,
	})
}

func (s *BackendServer) authenticationVerify(c echo.Context) error {
	if done, err := s.enter(c); done {
		return err
	}
	var req struct {
		UserName               string          `json:"userName"`
		AuthenticationResponse json.RawMessage `json:"authenticationResponse"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if _, err := passkey.ParseAuthenticationResult(req.AuthenticationResponse); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	success := s.authSuccess
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"success": success})
}

func (s *BackendServer) userUpdate(c echo.Context) error {
	if done, err := s.enter(c); done {
		return err
	}
	if c.Request().Header.Get("X-API-Key") != s.apiKey {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid API key"})
	}
	var req struct {
		UserName    string `json:"userName"`
		UserAddress string `json:"userAddress"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	success := s.updateSuccess
	if success {
		s.addresses[req.UserName] = req.UserAddress
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"success": success})
}
