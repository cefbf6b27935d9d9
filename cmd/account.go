package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/liquid-sdk/core/passkey"
)

var (
	passkeyOut    string
	passkeyRPID   string
	passkeyOrigin string

	createAccountCmd = &cobra.Command{
		Use:   "create-account <username>",
		Short: "Register a passkey and deploy a smart account for it",
		Long: `Register a passkey with the backend, deploy a smart account owned by it and report
the address back to the backend.

Re-running for a username resumes where the previous attempt stopped.`,
		Args: requireArgs(1, "<username>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			account, err := s.CreateSmartAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), account)
			return nil
		},
	}

	accountsCmd = &cobra.Command{
		Use:   "accounts",
		Short: "List usernames with account creation progress",
		Long: `List every username this SDK started creating an account for, with how far it got.
Run create-account again for any username that is not done.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			usernames, err := s.ListAccounts()
			if err != nil {
				return err
			}
			out := make([]map[string]string, 0, len(usernames))
			for _, username := range usernames {
				journal, err := s.GetAccountJournal(username)
				if err != nil {
					return err
				}
				out = append(out, map[string]string{
					"username": username,
					"state":    string(journal.State),
					"address":  journal.Address,
				})
			}
			printResult(cmd.OutOrStdout(), out)
			return nil
		},
	}

	newPasskeyCmd = &cobra.Command{
		Use:   "new-passkey",
		Short: "Generate a software passkey for development",
		Long: `Generate a P-256 key usable as passkey.private_key_file in the config.

A software key is not bound to a device. Use it only against development backends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writePasskey(cmd, passkeyOut, passkeyRPID, passkeyOrigin)
		},
	}
)

func init() {
	newPasskeyCmd.Flags().StringVarP(&passkeyOut, "out", "o", "passkey.hex", "file to write the private key to")
	newPasskeyCmd.Flags().StringVar(&passkeyRPID, "rp-id", "localhost", "relying party id")
	newPasskeyCmd.Flags().StringVar(&passkeyOrigin, "origin", "http://localhost", "origin placed in client data")

	rootCmd.AddCommand(createAccountCmd, accountsCmd, newPasskeyCmd)
}

func writePasskey(cmd *cobra.Command, out, rpID, origin string) error {
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	}

	v, err := passkey.NewVirtualAuthenticator(rpID, origin)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(v.PrivateKeyHex()+"\n"), 0o600); err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), map[string]string{
		"file":         out,
		"credentialId": v.CredentialID(),
	})
	return nil
}
