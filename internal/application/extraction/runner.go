package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/emailsource"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/metrics"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

// DefaultLookbackDays is used when neither a start time nor a watermark is
// available.
const DefaultLookbackDays = 7

// RunOptions configures one pipeline run
type RunOptions struct {
	RunID        string   // generated when empty
	Merchants    []string // empty = every registered merchant
	Start        time.Time
	End          time.Time // zero = now
	LookbackDays int       // used when Start is zero and no watermark exists
	Limit        int       // max emails per merchant (0 = no limit)
	Cards        []string  // keep only rows for these card numbers (empty = all)
	DryRun       bool      // extract only, store nothing
}

// RunReport summarizes a finished run
type RunReport struct {
	RunID       string
	DryRun      bool
	WindowStart time.Time
	WindowEnd   time.Time
	Result      *RunResult
	Inserted    int
	Filtered    int // rows dropped by the card filter
}

// Runner drives a full run: fetch each merchant's emails, extract them,
// append the rows to the log and record the run.
type Runner struct {
	service *Service
	source  emailsource.Source
	repo    storage.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRunner creates a runner
func NewRunner(service *Service, source emailsource.Source, repo storage.Repository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service: service,
		source:  source,
		repo:    repo,
		logger:  logger,
		metrics: metrics.Default(),
		now:     time.Now,
	}
}

// Run executes one extraction run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	merchants := opts.Merchants
	if len(merchants) == 0 {
		merchants = r.service.Merchants()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	end := opts.End
	if end.IsZero() {
		end = r.now()
	}
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	logger := r.logger.With(slog.String("run_id", runID))

	starts := make(map[string]time.Time, len(merchants))
	windowStart := end
	for _, m := range merchants {
		start, err := r.windowStart(WatermarkKey(m, opts.Cards), opts.Start, end, lookback)
		if err != nil {
			return nil, err
		}
		starts[m] = start
		if start.Before(windowStart) {
			windowStart = start
		}
	}

	report := &RunReport{
		RunID:       runID,
		DryRun:      opts.DryRun,
		WindowStart: windowStart,
		WindowEnd:   end,
	}

	if !opts.DryRun {
		run := &storage.Run{
			ID:          runID,
			Merchants:   merchants,
			WindowStart: windowStart,
			WindowEnd:   end,
		}
		if err := r.repo.StartRun(run); err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
	}

	logger.Info("run started",
		slog.Any("merchants", merchants),
		slog.Time("window_start", windowStart),
		slog.Time("window_end", end),
		slog.Bool("dry_run", opts.DryRun),
	)

	result, marks, err := r.execute(ctx, logger, merchants, starts, end, opts)
	if err != nil {
		r.finish(runID, opts.DryRun, storage.RunStats{Errors: 1}, err)
		return nil, err
	}
	if len(opts.Cards) > 0 {
		result.Rows, report.Filtered = keepCards(result.Rows, opts.Cards)
	}
	report.Result = result

	totals := result.Totals()
	stats := storage.RunStats{
		EmailsSeen:    totals.Seen,
		RowsExtracted: len(result.Rows),
		Failed:        totals.Failed,
		Malformed:     totals.Malformed,
		Errors:        len(result.Errors),
	}

	if !opts.DryRun {
		inserted, err := r.repo.AppendRows(runID, result.Rows)
		if err != nil {
			err = fmt.Errorf("failed to append rows: %w", err)
			stats.Errors++
			r.finish(runID, false, stats, err)
			return nil, err
		}
		report.Inserted = inserted
		stats.RowsInserted = inserted
		r.metrics.RowsLogged.Add(float64(inserted))

		for m := range result.Batches {
			if err := r.repo.SetLastRunTime(WatermarkKey(m, opts.Cards), marks[m]); err != nil {
				logger.Warn("failed to advance watermark", slog.String("merchant", m), slog.String("error", err.Error()))
			}
		}
	}

	r.finish(runID, opts.DryRun, stats, nil)

	logger.Info("run completed",
		slog.Int("emails", stats.EmailsSeen),
		slog.Int("rows", stats.RowsExtracted),
		slog.Int("inserted", stats.RowsInserted),
		slog.Int("failed", stats.Failed),
		slog.Int("malformed", stats.Malformed),
		slog.Int("errors", stats.Errors),
	)
	return report, nil
}

// execute fetches every merchant's emails and extracts them. Unknown
// merchants become merchant errors; a mail source failure aborts the run.
// It also returns the watermark each fetched merchant may advance to.
func (r *Runner) execute(ctx context.Context, logger *slog.Logger, merchants []string, starts map[string]time.Time, end time.Time, opts RunOptions) (*RunResult, map[string]time.Time, error) {
	batches := make(map[string][]transaction.Email, len(merchants))
	marks := make(map[string]time.Time, len(merchants))
	var unknown []MerchantError

	for _, m := range merchants {
		e, err := r.service.registry.Get(m)
		if err != nil {
			unknown = append(unknown, MerchantError{Merchant: m, Err: err})
			continue
		}

		emails, err := r.source.Fetch(ctx, emailsource.FetchOptions{
			Sender: e.MerchantEmail(),
			Start:  starts[m],
			End:    end,
			Limit:  opts.Limit,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch emails for %s: %w", m, err)
		}
		logger.Debug("fetched emails", slog.String("merchant", m), slog.Int("count", len(emails)))
		batches[m] = emails
		marks[m] = watermark(emails, opts.Limit, end)
		if marks[m].Before(end) {
			logger.Info("email limit reached, window resumes next run",
				slog.String("merchant", m),
				slog.Int("limit", opts.Limit),
				slog.Time("resume_from", marks[m]),
			)
		}
	}

	result, err := r.service.ExtractAll(ctx, batches)
	if err != nil {
		return nil, nil, err
	}
	result.Errors = append(unknown, result.Errors...)
	return result, marks, nil
}

// watermark is end unless the fetch hit the limit. Then later emails in
// the window were not fetched, so it stops just after the newest email
// processed. The source never splits emails sharing a timestamp.
func watermark(emails []transaction.Email, limit int, end time.Time) time.Time {
	if limit <= 0 || len(emails) < limit {
		return end
	}
	return emails[len(emails)-1].Date.Add(time.Nanosecond)
}

// WatermarkKey names the watermark of a merchant. A card-filtered run keeps
// its own watermark so it never skips rows of other cards.
func WatermarkKey(merchant string, cards []string) string {
	if len(cards) == 0 {
		return merchant
	}
	sorted := slices.Clone(cards)
	slices.Sort(sorted)
	return merchant + "#" + strings.Join(sorted, ",")
}

func keepCards(rows []transaction.Row, cards []string) ([]transaction.Row, int) {
	kept := rows[:0]
	for _, row := range rows {
		if slices.Contains(cards, row.CardNumber) {
			kept = append(kept, row)
		}
	}
	return kept, len(rows) - len(kept)
}

// windowStart picks the start of a merchant's window: the explicit start,
// else the watermark under key, else the lookback period before end.
func (r *Runner) windowStart(key string, explicit, end time.Time, lookbackDays int) (time.Time, error) {
	if !explicit.IsZero() {
		return explicit, nil
	}
	last, err := r.repo.LastRunTime(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark %s: %w", key, err)
	}
	if !last.IsZero() && last.Before(end) {
		return last, nil
	}
	return end.AddDate(0, 0, -lookbackDays), nil
}

func (r *Runner) finish(runID string, dryRun bool, stats storage.RunStats, runErr error) {
	if dryRun {
		return
	}
	if err := r.repo.CompleteRun(runID, stats, runErr); err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		r.logger.Error("failed to record run completion",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}
