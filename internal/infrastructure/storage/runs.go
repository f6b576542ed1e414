package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StartRun records the start of an extraction run.
func (s *Storage) StartRun(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunStatusRunning

	_, err := s.db.Exec(`
		INSERT INTO extraction_runs (id, merchants, window_start, window_end, dry_run, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		strings.Join(run.Merchants, ","),
		formatTime(run.WindowStart),
		formatTime(run.WindowEnd),
		run.DryRun,
		formatTime(run.StartedAt),
		run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun records the final counts of a run.
func (s *Storage) CompleteRun(id string, stats RunStats, runErr error) error {
	status := RunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = RunStatusFailed
		errMsg = runErr.Error()
	}

	res, err := s.db.Exec(`
		UPDATE extraction_runs
		SET completed_at = ?, emails_seen = ?, rows_extracted = ?, rows_inserted = ?,
		    failed = ?, malformed = ?, errors = ?, status = ?, error_message = ?
		WHERE id = ?
	`,
		formatTime(time.Now()),
		stats.EmailsSeen,
		stats.RowsExtracted,
		stats.RowsInserted,
		stats.Failed,
		stats.Malformed,
		stats.Errors,
		status,
		errMsg,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, merchants, window_start, window_end, dry_run, started_at, completed_at,
	emails_seen, rows_extracted, rows_inserted, failed, malformed, errors, status, error_message`

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM extraction_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(id string) (*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM extraction_runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run         Run
		merchants   string
		windowStart string
		windowEnd   string
		startedAt   string
		completedAt sql.NullString
	)
	err := rows.Scan(
		&run.ID,
		&merchants,
		&windowStart,
		&windowEnd,
		&run.DryRun,
		&startedAt,
		&completedAt,
		&run.EmailsSeen,
		&run.RowsExtracted,
		&run.RowsInserted,
		&run.Failed,
		&run.Malformed,
		&run.Errors,
		&run.Status,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if merchants != "" {
		run.Merchants = strings.Split(merchants, ",")
	}
	if run.WindowStart, err = parseTime(windowStart); err != nil {
		return nil, fmt.Errorf("run %s: bad window_start: %w", run.ID, err)
	}
	if run.WindowEnd, err = parseTime(windowEnd); err != nil {
		return nil, fmt.Errorf("run %s: bad window_end: %w", run.ID, err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at: %w", run.ID, err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}

	return &run, nil
}

// LastRunTime returns a merchant's watermark, or the zero time.
func (s *Storage) LastRunTime(merchant string) (time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT last_run_at FROM merchant_watermarks WHERE merchant = ?`, merchant).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark for %s: %w", merchant, err)
	}
	return parseTime(value)
}

// SetLastRunTime advances a merchant's watermark.
func (s *Storage) SetLastRunTime(merchant string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO merchant_watermarks (merchant, last_run_at) VALUES (?, ?)
		ON CONFLICT(merchant) DO UPDATE SET last_run_at = MAX(last_run_at, excluded.last_run_at)
	`, merchant, formatTime(t))
	if err != nil {
		return fmt.Errorf("failed to set watermark for %s: %w", merchant, err)
	}
	return nil
}
