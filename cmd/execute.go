package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/liquid-sdk/core/actions"
)

var (
	executeUser     string
	executeAccount  string
	executeStrategy string
	executeDryRun   bool

	executeCmd = &cobra.Command{
		Use:   "execute",
		Short: "Run a strategy file from a smart account",
		Long: `Run the actions of a YAML strategy file atomically from a smart account.

Use --strategy=path-to-your-strategy-file. Each action is one of swap, deposit,
withdraw, approve or wrap. With --dry-run the calls are printed and nothing is signed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !executeDryRun && executeUser == "" {
				return fmt.Errorf("--user is required unless --dry-run is set")
			}
			account, err := parseAddress(executeAccount)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(executeStrategy)
			if err != nil {
				return fmt.Errorf("cannot read strategy: %w", err)
			}
			acts, err := actions.ParseStrategy(data)
			if err != nil {
				return err
			}

			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			if executeDryRun {
				return describeStrategy(cmd, s.Encoder(), acts, account)
			}

			txHash, err := s.ExecuteStrategy(cmd.Context(), executeUser, account, acts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), map[string]string{"txHash": txHash.Hex()})
			return nil
		},
	}

	executionsCmd = &cobra.Command{
		Use:   "executions <account>",
		Short: "List strategies executed from an account",
		Args:  requireArgs(1, "<account>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			s, err := loadSDK()
			if err != nil {
				return err
			}
			defer s.Close()

			count, err := s.CountExecutions(account)
			if err != nil {
				return err
			}
			if count == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no executions recorded for %s\n", account.Hex())
				return nil
			}
			records, err := s.ListExecutions(account)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), records)
			return nil
		},
	}
)

func init() {
	executeCmd.Flags().StringVarP(&executeUser, "user", "u", "", "username the passkey is registered under")
	executeCmd.Flags().StringVarP(&executeAccount, "account", "a", "", "smart account address")
	executeCmd.Flags().StringVarP(&executeStrategy, "strategy", "s", "", "path to the strategy file")
	executeCmd.Flags().BoolVar(&executeDryRun, "dry-run", false, "print the encoded calls without executing")
	_ = executeCmd.MarkFlagRequired("account")
	_ = executeCmd.MarkFlagRequired("strategy")

	rootCmd.AddCommand(executeCmd, executionsCmd)
}

// describeStrategy prints what each action encodes to, with the same encoder execution uses.
func describeStrategy(cmd *cobra.Command, encoder *actions.Encoder, acts []actions.Action, account common.Address) error {
	calls, err := encoder.EncodeAll(acts, account)
	if err != nil {
		return err
	}
	out := make([]map[string]string, 0, len(calls))
	for _, call := range calls {
		out = append(out, map[string]string{
			"target": call.Target.Hex(),
			"value":  call.Value.String(),
			"call":   actions.Describe(call),
		})
	}
	printResult(cmd.OutOrStdout(), out)
	return nil
}
