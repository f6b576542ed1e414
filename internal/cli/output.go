package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/extraction"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02 15:04"

// PrintHeader prints the run banner.
func PrintHeader(w io.Writer, opts extraction.RunOptions) {
	mode := "LOG"
	if opts.DryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "txlog: %s (%s mode)\n", strings.Join(opts.Merchants, ", "), mode)
	fmt.Fprintf(w, "Lookback: %d days", opts.LookbackDays)
	if len(opts.Cards) > 0 {
		fmt.Fprintf(w, " | Cards: %s", strings.Join(opts.Cards, ", "))
	}
	if opts.Limit > 0 {
		fmt.Fprintf(w, " | Max emails: %d", opts.Limit)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

// PrintRows prints extracted rows as a table.
func PrintRows(w io.Writer, rows []transaction.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSOURCE\tCARD\tAMOUNT\tMERCHANT\tCATEGORY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date.Local().Format(dateLayout), r.Source, r.CardNumber, orDash(r.AmountString()), r.Merchant, orDash(r.Category))
	}
	_ = tw.Flush()
}

// PrintLogged prints rows read back from the transaction log.
func PrintLogged(w io.Writer, logged []storage.LoggedTransaction) {
	rows := make([]transaction.Row, 0, len(logged))
	for _, t := range logged {
		rows = append(rows, t.Row)
	}
	PrintRows(w, rows)
}

// PrintRunSummary prints per-merchant counts and any merchant errors.
func PrintRunSummary(w io.Writer, report *extraction.RunReport) {
	fmt.Fprintln(w, strings.Repeat("-", 60))

	result := report.Result
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MERCHANT\tSEEN\tVALID\tFAILED\tMALFORMED")
	for _, name := range sortedBatchNames(result) {
		s := result.Batches[name].Stats
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, s.Seen, s.Valid, s.Failed, s.Malformed)
	}
	_ = tw.Flush()

	totals := result.Totals()
	fmt.Fprintf(w, "\nSummary: Emails=%d Rows=%d Failed=%d Malformed=%d",
		totals.Seen, len(result.Rows), totals.Failed, totals.Malformed)
	if report.Filtered > 0 {
		fmt.Fprintf(w, " OtherCards=%d", report.Filtered)
	}
	if !report.DryRun {
		fmt.Fprintf(w, " Inserted=%d", report.Inserted)
	}
	fmt.Fprintln(w)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %v\n", e)
		}
	}
	if !report.DryRun {
		fmt.Fprintf(w, "\nRun %s recorded.\n", report.RunID)
	}
}

// PrintRecord prints a single extraction result.
func PrintRecord(w io.Writer, rec transaction.Record) {
	if !rec.IsValid() {
		fmt.Fprintln(w, "No transaction recognized.")
		return
	}
	amount := "-"
	if rec.Amount.Valid {
		amount = rec.Amount.Decimal.StringFixed(2)
	}
	fmt.Fprintf(w, "Card:     %s\n", rec.CardNumber)
	fmt.Fprintf(w, "Amount:   %s\n", amount)
	fmt.Fprintf(w, "Merchant: %s\n", rec.Merchant)
	if rec.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", rec.Category)
	}
	if rec.IsMalformed() {
		fmt.Fprintln(w, "Warning: record is malformed")
	}
}

// PrintMerchants lists registered merchants and their sender addresses.
func PrintMerchants(w io.Writer, merchants []extractors.MerchantExtractor) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MERCHANT\tSENDER")
	for _, m := range merchants {
		fmt.Fprintf(tw, "%s\t%s\n", m.Name(), m.MerchantEmail())
	}
	_ = tw.Flush()
}

// PrintRuns lists recorded runs.
func PrintRuns(w io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tEMAILS\tROWS\tINSERTED\tMALFORMED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.EmailsSeen, r.RowsExtracted, r.RowsInserted, r.Malformed)
	}
	_ = tw.Flush()
}

func sortedBatchNames(result *extraction.RunResult) []string {
	names := make([]string, 0, len(result.Batches))
	for name := range result.Batches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
