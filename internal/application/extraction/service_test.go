package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
	"github.com/eshaffer321/cc-transaction-logger/internal/registry"
)

// stubExtractor returns records keyed by email body and counts calls.
type stubExtractor struct {
	name    string
	sender  string
	records map[string]transaction.Record
	calls   atomic.Int32
}

func (s *stubExtractor) Name() string          { return s.name }
func (s *stubExtractor) MerchantEmail() string { return s.sender }
func (s *stubExtractor) Extract(content string, _ *string) transaction.Record {
	s.calls.Add(1)
	if rec, ok := s.records[content]; ok {
		return rec
	}
	return transaction.Empty()
}

func newStub(name string, records map[string]transaction.Record) *stubExtractor {
	return &stubExtractor{name: name, sender: name + "@example.com", records: records}
}

func newStubService(t *testing.T, stubs ...*stubExtractor) *Service {
	t.Helper()
	reg := registry.New(nil)
	for _, s := range stubs {
		require.NoError(t, reg.Register(s))
	}
	return NewService(reg, nil)
}

func subject(s string) *string { return &s }

func email(body, subj string, day int) transaction.Email {
	return transaction.Email{
		Sender:  "x@example.com",
		Subject: subject(subj),
		Date:    time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC),
		Body:    body,
	}
}

func TestExtractOne_DefaultRegistry(t *testing.T) {
	svc := NewService(registry.NewDefault(nil), nil)

	body := "Your Metrobank Card ending in 9999 was used at Test Merchant for PHP000150000 on 03/02/2024."
	rec, err := svc.ExtractOne("Metrobank", body, subject("Transaction Notification"))
	require.NoError(t, err)
	assert.Equal(t, "9999", rec.CardNumber)
	assert.Equal(t, "Test Merchant", rec.Merchant)
	assert.True(t, rec.Amount.Decimal.Equal(decimal.RequireFromString("1500")))

	rec, err = svc.ExtractOne("Metrobank", "hello", nil)
	require.NoError(t, err)
	assert.False(t, rec.IsValid())
}

func TestExtractOne_UnknownMerchant(t *testing.T) {
	svc := NewService(registry.NewDefault(nil), nil)

	_, err := svc.ExtractOne("Lazada", "body", nil)
	assert.ErrorIs(t, err, extractors.ErrUnknownMerchant)

	_, err = svc.ExtractOne("grab", "body", nil)
	assert.ErrorIs(t, err, extractors.ErrUnknownMerchant, "keys are case-sensitive")
}

func TestExtractBatch_DropsUnrecognizedAndCountsMalformed(t *testing.T) {
	stub := newStub("Shop", map[string]transaction.Record{
		"ok":        transaction.Record{CardNumber: "1234", Merchant: "Shop"}.WithAmount(decimal.RequireFromString("10.50")),
		"no-amount": {CardNumber: "5678", Merchant: "Shop"},
		"invalid":   transaction.Record{CardNumber: "9012", Merchant: transaction.InvalidMerchant}.WithAmount(decimal.Zero),

		// Parsed an amount but no card: still discarded.
		"amount-only": transaction.Record{Merchant: "Shop"}.WithAmount(decimal.RequireFromString("99.00")),
	})
	svc := newStubService(t, stub)

	emails := []transaction.Email{
		email("ok", "Receipt", 1),
		email("junk", "Promo", 2),
		email("no-amount", "Receipt", 3),
		email("invalid", "Receipt", 4),
		email("amount-only", "Receipt", 5),
	}

	batch, err := svc.ExtractBatch("Shop", emails)
	require.NoError(t, err)

	assert.Equal(t, Stats{Seen: 5, Valid: 3, Failed: 2, Malformed: 2}, batch.Stats)
	require.Len(t, batch.Rows, 3)

	first := batch.Rows[0]
	assert.Equal(t, "Shop", first.Source)
	assert.Equal(t, "Receipt", first.Subject)
	assert.True(t, first.Date.Equal(emails[0].Date))
	assert.Equal(t, "10.50", first.AmountString())

	assert.Equal(t, "", batch.Rows[1].AmountString())
	assert.Equal(t, transaction.InvalidMerchant, batch.Rows[2].Merchant)
	for _, row := range batch.Rows {
		assert.NotEmpty(t, row.CardNumber)
	}
}

func TestExtractBatch_UnknownMerchantParsesNothing(t *testing.T) {
	stub := newStub("Shop", nil)
	svc := newStubService(t, stub)

	batch, err := svc.ExtractBatch("Other", []transaction.Email{email("ok", "Receipt", 1)})
	assert.ErrorIs(t, err, extractors.ErrUnknownMerchant)
	assert.Nil(t, batch)
	assert.Zero(t, stub.calls.Load())
}

func TestExtractBatch_EmptyInput(t *testing.T) {
	svc := newStubService(t, newStub("Shop", nil))

	batch, err := svc.ExtractBatch("Shop", nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Rows)
	assert.NotNil(t, batch.Rows)
	assert.Equal(t, Stats{}, batch.Stats)
}

func TestExtractBatch_Idempotent(t *testing.T) {
	svc := NewService(registry.NewDefault(nil), nil)
	emails := []transaction.Email{{
		Sender:  "Customerservice@metrobankcard.com",
		Subject: subject("Transaction Notification"),
		Date:    time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC),
		Body:    "Card ending in 1234 was used at Shell for PHP000050000.",
	}}

	first, err := svc.ExtractBatch("Metrobank", emails)
	require.NoError(t, err)
	second, err := svc.ExtractBatch("Metrobank", emails)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractAll_MergesInDateOrder(t *testing.T) {
	a := newStub("Alpha", map[string]transaction.Record{
		"a1": transaction.Record{CardNumber: "1111", Merchant: "Alpha"}.WithAmount(decimal.NewFromInt(1)),
		"a3": transaction.Record{CardNumber: "1111", Merchant: "Alpha"}.WithAmount(decimal.NewFromInt(3)),
	})
	b := newStub("Beta", map[string]transaction.Record{
		"b2": transaction.Record{CardNumber: "2222", Merchant: "Beta"}.WithAmount(decimal.NewFromInt(2)),
	})
	svc := newStubService(t, a, b)

	result, err := svc.ExtractAll(context.Background(), map[string][]transaction.Email{
		"Alpha": {email("a3", "R", 3), email("a1", "R", 1)},
		"Beta":  {email("b2", "R", 2), email("nothing", "R", 4)},
		"Gamma": {email("g", "R", 5)},
	})
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, []string{"Alpha", "Beta", "Alpha"}, []string{result.Rows[0].Source, result.Rows[1].Source, result.Rows[2].Source})
	assert.Equal(t, "1.00", result.Rows[0].AmountString())
	assert.Equal(t, "3.00", result.Rows[2].AmountString())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Gamma", result.Errors[0].Merchant)
	assert.ErrorIs(t, result.Errors[0], extractors.ErrUnknownMerchant)

	assert.Len(t, result.Batches, 2)
	assert.Equal(t, Stats{Seen: 4, Valid: 3, Failed: 1}, result.Totals())
}

func TestExtractAll_ManyMerchants(t *testing.T) {
	var stubs []*stubExtractor
	batches := make(map[string][]transaction.Email)
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("M%02d", i)
		stubs = append(stubs, newStub(name, map[string]transaction.Record{
			"hit": {CardNumber: "0000", Merchant: name},
		}))
		batches[name] = []transaction.Email{email("hit", name, i+1)}
	}
	svc := newStubService(t, stubs...)

	result, err := svc.ExtractAll(context.Background(), batches)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 10)
	assert.Empty(t, result.Errors)
	for _, s := range stubs {
		assert.EqualValues(t, 1, s.calls.Load())
	}
}

func TestExtractAll_CancelledContext(t *testing.T) {
	svc := newStubService(t, newStub("Shop", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ExtractAll(ctx, map[string][]transaction.Email{"Shop": {email("x", "R", 1)}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSortRows_TieBreaks(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []transaction.Row{
		{Source: "B", Date: day, Subject: "x"},
		{Source: "A", Date: day, Subject: "x"},
		{Source: "C", Date: day, Subject: "a"},
		{Source: "D", Date: day.Add(-time.Hour), Subject: "z"},
	}
	SortRows(rows)

	var got []string
	for _, r := range rows {
		got = append(got, r.Source)
	}
	assert.Equal(t, []string{"D", "C", "A", "B"}, got)
}
