package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AccountState is how far CreateSmartAccount got for a username.
type AccountState string

const (
	AccountIdle                AccountState = "idle"
	AccountOptionsRequested    AccountState = "options_requested"
	AccountCredentialCreated   AccountState = "credential_created"
	AccountAttestationVerified AccountState = "attestation_verified"
	AccountDeploySubmitted     AccountState = "deploy_submitted"
	AccountAddressDeployed     AccountState = "address_deployed"
	AccountDone                AccountState = "done"
)

// AccountJournal is the persisted progress of one account creation.
type AccountJournal struct {
	Username     string       `json:"username"`
	State        AccountState `json:"state"`
	CredentialID string       `json:"credentialId,omitempty"`
	// PublicKey is the 64 byte P-256 owner key, hex encoded
	PublicKey  string `json:"publicKey,omitempty"`
	Address    string `json:"address,omitempty"`
	UserOpHash string `json:"userOpHash,omitempty"`
	// PendingHash is what the deployment is awaited on: the handleOps transaction in direct mode,
	// the userOpHash in bundler mode. It is set only in deploy_submitted.
	PendingHash  string `json:"pendingHash,omitempty"`
	DeployTxHash string `json:"deployTxHash,omitempty"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// Verified reports whether the backend already accepted the credential.
func (j *AccountJournal) Verified() bool {
	switch j.State {
	case AccountAttestationVerified, AccountDeploySubmitted, AccountAddressDeployed, AccountDone:
		return true
	}
	return false
}

func (j *AccountJournal) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

func (j *AccountJournal) FromStorageData(body []byte) error {
	return json.Unmarshal(body, j)
}

// AccountJournalKey is a:<username>. Usernames are case sensitive at the backend so they are kept as is.
func AccountJournalKey(username string) []byte {
	return []byte(fmt.Sprintf("a:%s", username))
}

func AccountJournalPrefix() []byte {
	return []byte("a:")
}

func UsernameFromJournalKey(key []byte) string {
	return strings.TrimPrefix(string(key), "a:")
}
