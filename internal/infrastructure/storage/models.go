package storage

import (
	"time"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// LoggedTransaction is a row as stored in the transaction log.
type LoggedTransaction struct {
	ID       int64
	RunID    string
	LoggedAt time.Time
	transaction.Row
}

// Run represents one extraction run
type Run struct {
	ID           string
	Merchants    []string
	WindowStart  time.Time
	WindowEnd    time.Time
	DryRun       bool
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       string
	ErrorMessage string
	RunStats
}

// RunStats are the counts recorded when a run completes.
type RunStats struct {
	EmailsSeen    int
	RowsExtracted int
	RowsInserted  int
	Failed        int
	Malformed     int
	Errors        int
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
