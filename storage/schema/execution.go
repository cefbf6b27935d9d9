package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
)

type ExecutionStatus string

const (
	ExecutionSubmitted ExecutionStatus = "submitted"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionReverted  ExecutionStatus = "reverted"
)

// ExecutionRecord is one strategy sent on behalf of an account.
type ExecutionRecord struct {
	ID         string          `json:"id"`
	Account    string          `json:"account"`
	Username   string          `json:"username"`
	Actions    []string        `json:"actions"`
	Mode       string          `json:"mode"`
	UserOpHash string          `json:"userOpHash"`
	TxHash     string          `json:"txHash"`
	Status     ExecutionStatus `json:"status"`
	CreatedAt  int64           `json:"createdAt"`
}

// NewExecutionID returns a ULID so records under one account sort by creation time.
func NewExecutionID() string {
	return ulid.Make().String()
}

// CreatedTime recovers the creation time embedded in the record id.
func (r *ExecutionRecord) CreatedTime() (time.Time, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

func (r *ExecutionRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func (r *ExecutionRecord) FromStorageData(body []byte) error {
	return json.Unmarshal(body, r)
}

// ExecutionStorageKey is e:<account>:<ulid>
func ExecutionStorageKey(account common.Address, id string) []byte {
	return []byte(fmt.Sprintf("e:%s:%s", strings.ToLower(account.Hex()), id))
}

// ExecutionByAccountPrefix returns the storage prefix for all executions of an account
func ExecutionByAccountPrefix(account common.Address) []byte {
	return []byte(fmt.Sprintf("e:%s:", strings.ToLower(account.Hex())))
}
