// Package extraction runs merchant emails through their extractors and turns
// the results into transaction log rows.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/metrics"
)

// DefaultConcurrency bounds how many merchant batches ExtractAll runs at once.
const DefaultConcurrency = 4

// Registry resolves merchant keys to extractors.
type Registry interface {
	Get(name string) (extractors.MerchantExtractor, error)
	List() []string
}

// Stats counts the outcomes of one batch.
type Stats struct {
	Seen      int // emails processed
	Valid     int // records with a card number, all of which became rows
	Failed    int // emails no parser recognized
	Malformed int // valid records missing an amount or flagged Invalid
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Seen += other.Seen
	s.Valid += other.Valid
	s.Failed += other.Failed
	s.Malformed += other.Malformed
}

// BatchResult is the output of ExtractBatch.
type BatchResult struct {
	Merchant string
	Rows     []transaction.Row
	Stats    Stats
}

// MerchantError records a merchant whose batch could not run.
type MerchantError struct {
	Merchant string
	Err      error
}

func (e MerchantError) Error() string {
	return fmt.Sprintf("%s: %v", e.Merchant, e.Err)
}

func (e MerchantError) Unwrap() error {
	return e.Err
}

// RunResult is the merged output of ExtractAll.
type RunResult struct {
	Rows    []transaction.Row
	Batches map[string]*BatchResult
	Errors  []MerchantError
}

// Totals sums the stats of every batch.
func (r *RunResult) Totals() Stats {
	var total Stats
	for _, b := range r.Batches {
		total.Add(b.Stats)
	}
	return total
}

// Service extracts transactions from emails
type Service struct {
	registry    Registry
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// NewService creates an extraction service over a registry
func NewService(registry Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:    registry,
		logger:      logger,
		metrics:     metrics.Default(),
		concurrency: DefaultConcurrency,
	}
}

// Merchants returns the registered merchant keys.
func (s *Service) Merchants() []string {
	return s.registry.List()
}

// ExtractOne runs one email body through a merchant's extractor. The only
// error is an unknown merchant; an unrecognized email is an empty record.
func (s *Service) ExtractOne(merchant, body string, subject *string) (transaction.Record, error) {
	e, err := s.registry.Get(merchant)
	if err != nil {
		return transaction.Empty(), err
	}

	rec := e.Extract(body, subject)
	s.observe(merchant, rec)
	return rec, nil
}

// ExtractBatch extracts every email of one merchant. Records without a card
// number are dropped; the rest are stamped with their email's date and
// subject.
func (s *Service) ExtractBatch(merchant string, emails []transaction.Email) (*BatchResult, error) {
	e, err := s.registry.Get(merchant)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.BatchDuration.WithLabelValues(merchant).Observe(time.Since(start).Seconds())
	}()

	result := &BatchResult{Merchant: merchant, Rows: []transaction.Row{}}
	for _, email := range emails {
		result.Stats.Seen++

		rec := e.Extract(email.Body, email.Subject)
		s.observe(merchant, rec)

		if !rec.IsValid() {
			result.Stats.Failed++
			s.logger.Debug("email not recognized",
				slog.String("merchant", merchant),
				slog.String("subject", email.SubjectText()),
			)
			continue
		}

		result.Stats.Valid++
		if rec.IsMalformed() {
			result.Stats.Malformed++
			s.logger.Warn("malformed extraction",
				slog.String("merchant", merchant),
				slog.String("subject", email.SubjectText()),
				slog.Time("date", email.Date),
				slog.String("card", rec.CardNumber),
				slog.String("extracted_merchant", rec.Merchant),
			)
		}
		result.Rows = append(result.Rows, transaction.NewRow(merchant, email, rec))
	}

	s.logger.Info("batch extracted",
		slog.String("merchant", merchant),
		slog.Int("seen", result.Stats.Seen),
		slog.Int("valid", result.Stats.Valid),
		slog.Int("failed", result.Stats.Failed),
		slog.Int("malformed", result.Stats.Malformed),
	)
	return result, nil
}

// ExtractAll runs one batch per merchant concurrently and merges the rows in
// date order. A merchant that cannot be processed is recorded in Errors and
// does not stop the others. Only context cancellation fails the call.
func (s *Service) ExtractAll(ctx context.Context, batches map[string][]transaction.Email) (*RunResult, error) {
	result := &RunResult{
		Rows:    []transaction.Row{},
		Batches: make(map[string]*BatchResult, len(batches)),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, merchant := range sortedKeys(batches) {
		emails := batches[merchant]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			batch, err := s.ExtractBatch(merchant, emails)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("batch failed", slog.String("merchant", merchant), slog.String("error", err.Error()))
				result.Errors = append(result.Errors, MerchantError{Merchant: merchant, Err: err})
				return nil
			}
			result.Batches[merchant] = batch
			result.Rows = append(result.Rows, batch.Rows...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortRows(result.Rows)
	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Merchant < result.Errors[j].Merchant
	})
	return result, nil
}

// SortRows orders rows by date, then subject, then source.
func SortRows(rows []transaction.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Source < b.Source
	})
}

func (s *Service) observe(merchant string, rec transaction.Record) {
	outcome := metrics.OutcomeValid
	switch {
	case !rec.IsValid():
		outcome = metrics.OutcomeNoMatch
	case rec.IsMalformed():
		outcome = metrics.OutcomeMalformed
	}
	s.metrics.ExtractionsTotal.WithLabelValues(merchant, outcome).Inc()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
