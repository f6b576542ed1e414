package storage

import (
	"errors"
	"time"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing with
// mocks straightforward.
type Repository interface {
	TransactionLog
	RunRepository
	Close() error
}

// TransactionLog is the append-only log of extracted transactions.
type TransactionLog interface {
	// AppendRows writes rows that are not already logged and returns how many
	// were new. A row is identified by source, date, subject, card number
	// and amount, so appending the same rows twice is a no-op.
	AppendRows(runID string, rows []transaction.Row) (int, error)

	// ListTransactions returns logged rows matching the filters, newest first.
	ListTransactions(filters TransactionFilters) (*TransactionListResult, error)
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	Source     string    // Filter by merchant key (empty = all)
	CardNumber string    // Filter by card (empty = all)
	Start      time.Time // Inclusive lower bound on email date (zero = none)
	End        time.Time // Exclusive upper bound on email date (zero = none)
	Limit      int       // Max results (0 = default 100)
	Offset     int       // Pagination offset
}

// TransactionListResult contains paginated transaction results
type TransactionListResult struct {
	Transactions []LoggedTransaction
	TotalCount   int
	Limit        int
	Offset       int
}

// RunRepository tracks extraction runs and per-merchant watermarks.
type RunRepository interface {
	// StartRun records the start of a run. run.ID must be set.
	StartRun(run *Run) error

	// CompleteRun stores the final counts of a run. A non-nil runErr marks
	// the run failed.
	CompleteRun(id string, stats RunStats, runErr error) error

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]Run, error)

	// GetRun retrieves a run by ID
	GetRun(id string) (*Run, error)

	// LastRunTime returns the end of the last window processed for a
	// merchant, or the zero time if it was never processed.
	LastRunTime(merchant string) (time.Time, error)

	// SetLastRunTime advances a merchant's watermark. It never moves it back.
	SetLastRunTime(merchant string, t time.Time) error
}
