package sdk

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AvaProtocol/liquid-sdk/core/passkey"
	"github.com/AvaProtocol/liquid-sdk/pkg/erc4337/preset"
	"github.com/AvaProtocol/liquid-sdk/pkg/sdkerr"
	"github.com/AvaProtocol/liquid-sdk/pkg/timekeeper"
	"github.com/AvaProtocol/liquid-sdk/storage"
	"github.com/AvaProtocol/liquid-sdk/storage/schema"
)

var (
	// ErrAttestationNotVerified is returned when the backend answers registration with verified:false.
	ErrAttestationNotVerified = errors.New("Attestation verification failed")
	// ErrAuthenticationFailed is returned when the backend answers authentication with success:false.
	ErrAuthenticationFailed = errors.New("Authentication failed")
)

// Account is a deployed smart account owned by a passkey.
type Account struct {
	Username string         `json:"username"`
	Address  common.Address `json:"address"`
	// TxHash is the deployment transaction. It is empty when the deployment receipt was never
	// seen or the account existed before.
	TxHash common.Hash `json:"txHash"`
}

// deploymentAction labels the execution record of an account deployment.
const deploymentAction = "deploy"

// CreateSmartAccount registers a passkey for username, deploys a smart account owned by it and
// reports the address to the backend.
//
// Progress is journaled per username. A call for a username whose credential the backend already
// verified skips registration and continues from where the previous call stopped. A finished
// username returns its account without touching the chain. Failures before verification leave
// no journal behind.
func (s *SDK) CreateSmartAccount(ctx context.Context, username string) (*Account, error) {
	sw := timekeeper.NewStopwatchWithClock(s.now)
	account, err := s.createSmartAccount(ctx, username, sw)
	s.observe(sw)
	if err != nil {
		s.metrics.IncAccountCreated("failed")
		s.logger.Error("failed to create smart account", "username", username, "kind", sdkerr.KindOf(err).String(), "err", err)
		return nil, sdkerr.PassKeyError("Failed to create smart account", err)
	}
	s.metrics.IncAccountCreated("success")
	s.logger.Info("smart account ready", append([]interface{}{"username", username, "address", account.Address.Hex()}, sw.KeyValues()...)...)
	return account, nil
}

func (s *SDK) createSmartAccount(ctx context.Context, username string, sw *timekeeper.Stopwatch) (*Account, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	journal, err := s.loadJournal(username)
	if err != nil {
		return nil, err
	}
	if journal.State == schema.AccountDone {
		return accountFromJournal(journal), nil
	}

	if !journal.Verified() {
		if err := s.register(ctx, journal); err != nil {
			// nothing was verified, so there is nothing worth resuming
			if derr := s.db.Delete(schema.AccountJournalKey(username)); derr != nil {
				s.logger.Error("failed to clear account journal", "username", username, "err", derr)
			}
			return nil, err
		}
		sw.Lap("register")
	}

	owner, err := hex.DecodeString(journal.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("corrupt journal public key: %w", err)
	}

	resumed := journal.State == schema.AccountDeploySubmitted
	if journal.State == schema.AccountAttestationVerified {
		if err := s.submitDeployment(ctx, journal, owner); err != nil {
			return nil, fmt.Errorf("Failed to deploy smart account: %w", err)
		}
	}
	if journal.State == schema.AccountDeploySubmitted {
		if err := s.awaitDeployment(ctx, journal, resumed); err != nil {
			return nil, fmt.Errorf("Failed to deploy smart account: %w", err)
		}
		sw.Lap("deploy")
	}

	address := common.HexToAddress(journal.Address)
	result, err := s.backend.UpdateUserAddress(ctx, username, address)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, sdkerr.SDKError("Failed to update user address", fmt.Errorf("backend did not accept %s for %s", address.Hex(), username))
	}
	if err := s.advance(journal, schema.AccountDone, nil); err != nil {
		return nil, err
	}
	sw.Lap("update_user")

	return accountFromJournal(journal), nil
}

func accountFromJournal(journal *schema.AccountJournal) *Account {
	account := &Account{Username: journal.Username, Address: common.HexToAddress(journal.Address)}
	if journal.DeployTxHash != "" {
		account.TxHash = common.HexToHash(journal.DeployTxHash)
	}
	return account
}

// register runs the passkey ceremony and leaves journal at AttestationVerified.
func (s *SDK) register(ctx context.Context, journal *schema.AccountJournal) error {
	username := journal.Username

	options, err := s.backend.GetRegistrationOptions(ctx, username)
	if err != nil {
		return err
	}
	if err := s.advance(journal, schema.AccountOptionsRequested, nil); err != nil {
		return err
	}

	result, err := s.authenticator.CreateCredential(ctx, *options)
	if err != nil {
		return err
	}
	journal.CredentialID = result.Credential()
	if err := s.advance(journal, schema.AccountCredentialCreated, nil); err != nil {
		return err
	}

	verification, err := s.backend.VerifyRegistration(ctx, username, result)
	if err != nil {
		return err
	}
	if !verification.Verified {
		return ErrAttestationNotVerified
	}

	owner, err := passkey.PublicKeyFromBase64(verification.PublicKey)
	if err != nil {
		return err
	}
	journal.PublicKey = hex.EncodeToString(owner)
	return s.advance(journal, schema.AccountAttestationVerified, nil)
}

// submitDeployment sends the UserOperation whose initCode creates the account and journals the
// pending hash before anything waits on it. An account that already has code skips straight to
// address_deployed.
func (s *SDK) submitDeployment(ctx context.Context, journal *schema.AccountJournal, owner []byte) error {
	op, err := s.builder.Build(ctx, common.Address{}, nil, nil, &preset.Deployment{
		Owners: [][]byte{owner},
		Salt:   AccountSalt,
	})
	if err != nil {
		return err
	}
	journal.Address = op.Sender.Hex()
	if !op.IsDeployment() {
		s.logger.Info("smart account already deployed", "username", journal.Username, "address", journal.Address)
		return s.advance(journal, schema.AccountAddressDeployed, nil)
	}

	if op, err = s.estimator.Estimate(ctx, op); err != nil {
		return err
	}
	if op, err = s.fees.Fill(ctx, op); err != nil {
		return err
	}

	pending, err := s.submitter.Send(ctx, op)
	if err != nil {
		return err
	}
	s.metrics.IncUserOpSubmitted(string(s.config.Mode))

	journal.PendingHash = pending.Hex()
	journal.UserOpHash = s.userOpHash(ctx, op)
	return s.advance(journal, schema.AccountDeploySubmitted, nil)
}

// awaitDeployment waits on the journaled pending hash. When the wait fails the account's code
// decides: code means the deployment landed, no code keeps the hash for one more wait and after
// that sends the deployment again.
func (s *SDK) awaitDeployment(ctx context.Context, journal *schema.AccountJournal, resumed bool) error {
	address := common.HexToAddress(journal.Address)
	pending := common.HexToHash(journal.PendingHash)

	inclusion, err := s.submitter.Wait(ctx, address, pending)
	if err != nil {
		deployed, cerr := s.builder.IsDeployed(ctx, address)
		switch {
		case cerr != nil:
			return fmt.Errorf("%w (deployment status unknown: %v)", err, cerr)
		case deployed:
			s.logger.Warn("deployment receipt unavailable, account has code", "username", journal.Username, "address", address.Hex(), "pending", pending.Hex())
			journal.PendingHash = ""
			return s.advance(journal, schema.AccountAddressDeployed, nil)
		case resumed:
			s.logger.Warn("deployment not found on chain, it will be sent again", "username", journal.Username, "pending", pending.Hex())
			journal.PendingHash = ""
			if aerr := s.advance(journal, schema.AccountAttestationVerified, nil); aerr != nil {
				return aerr
			}
		}
		return err
	}

	if err := inclusion.Err(); err != nil {
		journal.PendingHash = ""
		if aerr := s.advance(journal, schema.AccountAttestationVerified, nil); aerr != nil {
			return aerr
		}
		return err
	}

	journal.PendingHash = ""
	journal.DeployTxHash = inclusion.TxHash.Hex()
	record := &schema.ExecutionRecord{
		ID:         schema.NewExecutionID(),
		Account:    journal.Address,
		Username:   journal.Username,
		Actions:    []string{deploymentAction},
		Mode:       string(s.config.Mode),
		UserOpHash: journal.UserOpHash,
		TxHash:     journal.DeployTxHash,
		Status:     schema.ExecutionSuccess,
		CreatedAt:  s.now().UnixMilli(),
	}
	data, err := record.ToJSON()
	if err != nil {
		return err
	}
	return s.advance(journal, schema.AccountAddressDeployed, map[string][]byte{
		string(schema.ExecutionStorageKey(address, record.ID)): data,
	})
}

func (s *SDK) loadJournal(username string) (*schema.AccountJournal, error) {
	data, err := s.db.GetKey(schema.AccountJournalKey(username))
	if storage.IsNotFound(err) {
		return &schema.AccountJournal{Username: username, State: schema.AccountIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read account journal: %w", err)
	}

	journal := &schema.AccountJournal{}
	if err := journal.FromStorageData(data); err != nil {
		return nil, fmt.Errorf("corrupt account journal: %w", err)
	}
	return journal, nil
}

// advance moves journal to state. Extra records are committed in the same write.
func (s *SDK) advance(journal *schema.AccountJournal, state schema.AccountState, extra map[string][]byte) error {
	journal.State = state
	journal.UpdatedAt = s.now().UnixMilli()
	data, err := journal.ToJSON()
	if err != nil {
		return err
	}

	updates := map[string][]byte{string(schema.AccountJournalKey(journal.Username)): data}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.db.BatchWrite(updates); err != nil {
		return fmt.Errorf("cannot write account journal: %w", err)
	}
	s.logger.Debug("account creation advanced", "username", journal.Username, "state", string(state))
	return nil
}

// GetAccountJournal returns the recorded progress of account creation for username.
func (s *SDK) GetAccountJournal(username string) (*schema.AccountJournal, error) {
	journal, err := s.loadJournal(username)
	if err != nil {
		return nil, sdkerr.SDKError("Failed to get account journal", err)
	}
	return journal, nil
}

// ListAccounts returns the usernames with a journal, finished or not, in key order.
func (s *SDK) ListAccounts() ([]string, error) {
	keys, err := s.db.ListKeys(string(schema.AccountJournalPrefix()))
	if err != nil {
		return nil, sdkerr.SDKError("Failed to list accounts", err)
	}
	usernames := make([]string, 0, len(keys))
	for _, k := range keys {
		usernames = append(usernames, schema.UsernameFromJournalKey([]byte(k)))
	}
	return usernames, nil
}
