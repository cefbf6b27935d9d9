package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
)

// RPCHandler answers one JSON-RPC method. A non-nil *RPCError becomes the response error object.
type RPCHandler func(params []json.RawMessage) (interface{}, *RPCError)

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCServer is an echo backed JSON-RPC 2.0 stub, used in place of a bundler or node.
type RPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandler
	calls    map[string]int
}

func NewRPCServer() *RPCServer {
	s := &RPCServer{handlers: map[string]RPCHandler{}, calls: map[string]int{}}

	e := echo.New()
	e.HideBanner = true
	e.POST("/", s.serve)
	s.Server = httptest.NewServer(e)
	return s
}

func (s *RPCServer) Handle(method string, h RPCHandler) *RPCServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	return s
}

// CallCount returns how many times method was requested.
func (s *RPCServer) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *RPCServer) serve(c echo.Context) error {
	var req rpcRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, rpcResponse{JSONRPC: "2.0", Error: &RPCError{Code: -32700, Message: "parse error"}})
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &RPCError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
		return c.JSON(http.StatusOK, resp)
	}

	result, rpcErr := h(req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
	} else if result == nil {
		// explicit null result
		return c.JSONBlob(http.StatusOK, []byte(`{"jsonrpc":"2.0","id":`+string(req.ID)+`,"result":null}`))
	} else {
		resp.Result = result
	}
	return c.JSON(http.StatusOK, resp)
}
