package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It applies the same identity rule as the SQLite log, so duplicate rows are
// ignored.
type MockRepository struct {
	mu           sync.Mutex
	transactions []LoggedTransaction
	seen         map[string]bool
	runs         map[string]*Run
	watermarks   map[string]time.Time
	nextID       int64

	// Hooks for test assertions
	AppendRowsCalls int
	LastRunID       string
	StartRunCalled  bool

	// Error injection for testing error paths
	AppendRowsErr  error
	StartRunErr    error
	CompleteRunErr error
	WatermarkErr   error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		seen:       make(map[string]bool),
		runs:       make(map[string]*Run),
		watermarks: make(map[string]time.Time),
		nextID:     1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func rowKey(r transaction.Row) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", r.Source, formatTime(r.Date), r.Subject, r.CardNumber, r.AmountString())
}

// AppendRows stores rows not seen before
func (m *MockRepository) AppendRows(runID string, rows []transaction.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendRowsCalls++
	m.LastRunID = runID
	if m.AppendRowsErr != nil {
		return 0, m.AppendRowsErr
	}

	inserted := 0
	for _, r := range rows {
		key := rowKey(r)
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.transactions = append(m.transactions, LoggedTransaction{
			ID:       m.nextID,
			RunID:    runID,
			LoggedAt: time.Now(),
			Row:      r,
		})
		m.nextID++
		inserted++
	}
	return inserted, nil
}

// ListTransactions filters stored rows, newest first
func (m *MockRepository) ListTransactions(filters TransactionFilters) (*TransactionListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filters.Limit <= 0 {
		filters.Limit = defaultTransactionLimit
	}

	var matched []LoggedTransaction
	for _, t := range m.transactions {
		if filters.Source != "" && t.Source != filters.Source {
			continue
		}
		if filters.CardNumber != "" && t.CardNumber != filters.CardNumber {
			continue
		}
		if !filters.Start.IsZero() && t.Date.Before(filters.Start) {
			continue
		}
		if !filters.End.IsZero() && !t.Date.Before(filters.End) {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})

	result := &TransactionListResult{
		Transactions: []LoggedTransaction{},
		TotalCount:   len(matched),
		Limit:        filters.Limit,
		Offset:       filters.Offset,
	}
	if filters.Offset < len(matched) {
		end := min(filters.Offset+filters.Limit, len(matched))
		result.Transactions = append(result.Transactions, matched[filters.Offset:end]...)
	}
	return result, nil
}

// StartRun records a new run
func (m *MockRepository) StartRun(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunStatusRunning

	stored := *run
	stored.Merchants = append([]string(nil), run.Merchants...)
	m.runs[run.ID] = &stored
	return nil
}

// CompleteRun marks a run as complete
func (m *MockRepository) CompleteRun(id string, stats RunStats, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}

	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	now := time.Now()
	run.CompletedAt = &now
	run.RunStats = stats
	run.Status = RunStatusCompleted
	if runErr != nil {
		run.Status = RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}
	return nil
}

// ListRuns returns recent runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = defaultRunLimit
	}

	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	run := *r
	return &run, nil
}

// LastRunTime returns a merchant's watermark
func (m *MockRepository) LastRunTime(merchant string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WatermarkErr != nil {
		return time.Time{}, m.WatermarkErr
	}
	return m.watermarks[merchant], nil
}

// SetLastRunTime advances a merchant's watermark
func (m *MockRepository) SetLastRunTime(merchant string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WatermarkErr != nil {
		return m.WatermarkErr
	}
	if t.After(m.watermarks[merchant]) {
		m.watermarks[merchant] = t
	}
	return nil
}

// Helper methods for test setup

// GetAllTransactions returns every stored row in insertion order (for assertions)
func (m *MockRepository) GetAllTransactions() []LoggedTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]LoggedTransaction(nil), m.transactions...)
}

// Reset clears all data and flags (for reuse between tests)
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = nil
	m.seen = make(map[string]bool)
	m.runs = make(map[string]*Run)
	m.watermarks = make(map[string]time.Time)
	m.nextID = 1
	m.AppendRowsCalls = 0
	m.LastRunID = ""
	m.StartRunCalled = false
	m.AppendRowsErr = nil
	m.StartRunErr = nil
	m.CompleteRunErr = nil
	m.WatermarkErr = nil
}
