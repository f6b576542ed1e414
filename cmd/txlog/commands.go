package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/cc-transaction-logger/internal/cli"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

var merchantsCmd = &cobra.Command{
	Use:   "merchants",
	Short: "List supported merchants and their sender addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		cli.PrintMerchants(cmd.OutOrStdout(), app.Registry.GetAll())
		return nil
	},
}

var (
	extractMerchant  string
	extractSubject   string
	extractNoSubject bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract one email body with a merchant's parsers",
	Long: `Extract one email body (HTML or plain text) with a merchant's parsers and
print the result. Nothing is stored.

Examples:
  # Extract a saved receipt
  txlog extract --merchant Grab --subject "Your GrabFood E-Receipt" receipt.html

  # Read the body from stdin
  cat notice.txt | txlog extract --merchant Metrobank --subject "Transaction Notification" -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		app, err := newApp()
		if err != nil {
			return err
		}

		var subject *string
		if !extractNoSubject {
			subject = &extractSubject
		}
		rec, err := app.Service.ExtractOne(extractMerchant, body, subject)
		if err != nil {
			return err
		}
		cli.PrintRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

var (
	runMerchants []string
	runDays      int
	runLimit     int
	runDryRun    bool
	runSince     string
	runCard      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract new emails from the mailbox into the transaction log",
	Long: `Fetch each merchant's emails from the mailbox, extract them, and append the
results to the transaction log. Each merchant's window starts at its last
run unless --since is given.

Examples:
  # Process every enabled merchant
  txlog run

  # Preview two merchants over the last 30 days
  txlog run --merchant Grab --merchant Metrobank --days 30 --dry-run

  # Log one configured card
  txlog run --card "Metrobank Visa"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		opts := app.RunOptions(runMerchants, runDays, runLimit, runDryRun)
		if runCard != "" {
			if opts, err = app.CardRunOptions(runCard, runMerchants, runDays, runLimit, runDryRun); err != nil {
				return err
			}
		}
		if runSince != "" {
			since, err := time.ParseInLocation(time.DateOnly, runSince, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --since %q: %w", runSince, err)
			}
			opts.Start = since
		}

		runner, err := app.Runner()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cli.PrintHeader(out, opts)
		report, err := runner.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		cli.PrintRows(out, report.Result.Rows)
		cli.PrintRunSummary(out, report)
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RunServe(app, servePort)
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		store, err := app.Store()
		if err != nil {
			return err
		}
		runs, err := store.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		cli.PrintRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var (
	txSource string
	txCard   string
	txLimit  int
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List logged transactions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		store, err := app.Store()
		if err != nil {
			return err
		}
		list, err := store.ListTransactions(storage.TransactionFilters{
			Source:     txSource,
			CardNumber: txCard,
			Limit:      txLimit,
		})
		if err != nil {
			return err
		}
		cli.PrintLogged(cmd.OutOrStdout(), list.Transactions)
		fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d\n", len(list.Transactions), list.TotalCount)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractMerchant, "merchant", "m", "", "merchant key, e.g. Grab (required)")
	extractCmd.Flags().StringVarP(&extractSubject, "subject", "s", "", "email subject line")
	extractCmd.Flags().BoolVar(&extractNoSubject, "no-subject", false, "treat the email as having no subject")
	_ = extractCmd.MarkFlagRequired("merchant")

	runCmd.Flags().StringArrayVarP(&runMerchants, "merchant", "m", nil, "merchant to process (repeatable; default: enabled merchants)")
	runCmd.Flags().IntVar(&runDays, "days", 0, "lookback days when a merchant has no previous run (default: config)")
	runCmd.Flags().IntVar(&runLimit, "max", 0, "max emails per merchant (default: config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and print without storing")
	runCmd.Flags().StringVar(&runCard, "card", "", "configured card nickname: its merchants and only its rows")
	runCmd.Flags().StringVar(&runSince, "since", "", "start date YYYY-MM-DD, overriding each merchant's last run")

	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default: config)")

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")

	transactionsCmd.Flags().StringVar(&txSource, "source", "", "filter by merchant key")
	transactionsCmd.Flags().StringVar(&txCard, "card", "", "filter by card number")
	transactionsCmd.Flags().IntVar(&txLimit, "limit", 50, "number of rows to show")
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	return string(data), nil
}
