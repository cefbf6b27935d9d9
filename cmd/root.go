package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/AvaProtocol/liquid-sdk/core/config"
	"github.com/AvaProtocol/liquid-sdk/sdk"
)

// rootCmd represents the base command when called without any subcommands
var (
	configPath = "./config/liquid.yaml"
	rootCmd    = &cobra.Command{
		Use:   "liquid",
		Short: "Liquid smart account CLI",
		Long: `Liquid CLI to create passkey owned smart accounts and run Aerodrome strategies
through them on Base.

Such as "liquid create-account alice" or "liquid execute --strategy swap.yaml" and so on
`,
		SilenceUsage: true,
	}
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "Path to config file")
}

// loadSDK builds an SDK from the --config file. The caller closes it.
func loadSDK() (*sdk.SDK, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}
	return sdk.New(cfg)
}

// printResult pretty prints v. Colors are only used on a terminal.
func printResult(w io.Writer, v interface{}) {
	printer := pp.New()
	printer.SetOutput(w)
	if f, ok := w.(*os.File); !ok || !isTerminal(f) {
		printer.SetColoringEnabled(false)
	}
	printer.Println(v)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func requireArgs(n int, names string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("expected %s", names)
		}
		return nil
	}
}
