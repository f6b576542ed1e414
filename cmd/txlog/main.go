// Package main implements txlog, which extracts card transactions from
// merchant notification emails and appends them to a transaction log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/cc-transaction-logger/internal/cli"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/config"
)

var (
	configPath string
	verbose    bool
	version    = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "txlog",
	Short: "Log card transactions from merchant emails",
	Long: `txlog reads merchant notification emails (Grab, Foodpanda, Metrobank,
GreenGSM), extracts the card number, amount and merchant from each, and
appends them to a SQLite transaction log.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file (falls back to environment variables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(merchantsCmd, extractCmd, runCmd, serveCmd, runsCmd, transactionsCmd)
}

// newApp loads configuration and builds the shared services.
func newApp() (*cli.App, error) {
	return cli.NewApp(config.LoadOrEnvWithPath(configPath), verbose)
}
