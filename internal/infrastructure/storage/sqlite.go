package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

const (
	defaultTransactionLimit = 100
	defaultRunLimit         = 20
)

// Storage provides SQLite access for the transaction log and run history.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens the SQLite database at dbPath and applies pending
// migrations.
func NewStorage(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// AppendRows inserts rows with INSERT OR IGNORE inside one transaction.
func (s *Storage) AppendRows(runID string, rows []transaction.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO transactions
		(source, date, subject, card_number, amount, merchant, category, run_id, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	loggedAt := formatTime(time.Now())
	inserted := 0
	for _, r := range rows {
		res, err := stmt.Exec(
			r.Source,
			formatTime(r.Date),
			r.Subject,
			r.CardNumber,
			r.AmountString(),
			r.Merchant,
			r.Category,
			runID,
			loggedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert row for %s: %w", r.Source, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rows: %w", err)
	}

	s.logger.Debug("appended rows",
		slog.String("run_id", runID),
		slog.Int("rows", len(rows)),
		slog.Int("inserted", inserted),
	)
	return inserted, nil
}

// ListTransactions returns logged rows matching the filters, newest first.
func (s *Storage) ListTransactions(filters TransactionFilters) (*TransactionListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultTransactionLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var conditions []string
	var args []interface{}
	if filters.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filters.Source)
	}
	if filters.CardNumber != "" {
		conditions = append(conditions, "card_number = ?")
		args = append(args, filters.CardNumber)
	}
	if !filters.Start.IsZero() {
		conditions = append(conditions, "date >= ?")
		args = append(args, formatTime(filters.Start))
	}
	if !filters.End.IsZero() {
		conditions = append(conditions, "date < ?")
		args = append(args, formatTime(filters.End))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `
	SELECT id, source, date, subject, card_number, amount, merchant, category, run_id, logged_at
	FROM transactions ` + where + `
	ORDER BY date DESC, id DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &TransactionListResult{
		Transactions: []LoggedTransaction{},
		TotalCount:   total,
		Limit:        filters.Limit,
		Offset:       filters.Offset,
	}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, *t)
	}

	return result, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*LoggedTransaction, error) {
	var (
		t        LoggedTransaction
		date     string
		amount   string
		loggedAt string
	)
	err := rows.Scan(
		&t.ID,
		&t.Source,
		&date,
		&t.Subject,
		&t.CardNumber,
		&amount,
		&t.Merchant,
		&t.Category,
		&t.RunID,
		&loggedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if t.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("transaction %d has bad date %q: %w", t.ID, date, err)
	}
	if t.LoggedAt, err = parseTime(loggedAt); err != nil {
		return nil, fmt.Errorf("transaction %d has bad logged_at %q: %w", t.ID, loggedAt, err)
	}
	if amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d has bad amount %q: %w", t.ID, amount, err)
		}
		t.Amount = decimal.NewNullDecimal(d)
	}

	return &t, nil
}
