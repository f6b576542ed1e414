// Package metrobank extracts card transactions from Metrobank credit card
// notifications. Both notification templates are plain text.
package metrobank

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

const (
	Name          = "Metrobank"
	DefaultSender = "Customerservice@metrobankcard.com"

	SubjectTransaction = "Transaction Notification"
	SubjectBillPayment = "Card Payment Confirmation"

	// BillPaymentLabel is both the normalized merchant and the category of
	// bill payment confirmations.
	BillPaymentLabel = "Bill Payment"
)

// Marker layout of the transaction notification:
//
//	... ending in 1234 was used at MERCHANT for PHP000150000 on ...
const (
	cardMarker   = "ending in "
	amountMarker = "for PHP"

	cardWidth   = 4
	amountWidth = 10
)

var merchantMarker = regexp.MustCompile(`\bat\s+`)

var (
	billCard    = regexp.MustCompile(`ending in (\d{4})`)
	billAmount  = regexp.MustCompile(`PHP\s*([\d,]+(?:\.\d+)?)`)
	billKeyword = regexp.MustCompile(`(?i)\b(?:bills?\s*)?payments?\b`)
	billFor     = regexp.MustCompile(`(?i)for your ([^.]+?) transaction`)
)

var _ extractors.MerchantExtractor = (*Extractor)(nil)

// Extractor handles Metrobank card notifications.
type Extractor struct {
	*extractors.Dispatcher
	sender string
}

// New creates a Metrobank extractor with the default sender address.
func New(logger *slog.Logger) *Extractor {
	return NewWithSender(DefaultSender, logger)
}

// NewWithSender creates a Metrobank extractor for a specific sender address.
func NewWithSender(sender string, logger *slog.Logger) *Extractor {
	e := &Extractor{sender: sender}
	e.Dispatcher = extractors.NewDispatcher(Name, logger, nil, []extractors.Route{
		{Name: "transaction", Match: extractors.Exact(SubjectTransaction), Parse: parseTransaction},
		{Name: "bill_payment", Match: extractors.Exact(SubjectBillPayment), Parse: parseBillPayment},
	})
	return e
}

func (e *Extractor) Name() string          { return Name }
func (e *Extractor) MerchantEmail() string { return e.sender }

// parseTransaction scans the fixed markers of a transaction notification.
// Each field is scanned over the whole text on its own. The card is the 4
// characters after "ending in ", the merchant follows the last "at" before
// "for PHP", and the amount is the digits of the 10 characters after
// "for PHP" read as centavos. Only a missing card means no match.
func parseTransaction(in extractors.Input) transaction.Record {
	if in.SubjectText() != SubjectTransaction {
		return transaction.Empty()
	}
	text := in.Raw

	card, ok := scanCard(text)
	if !ok {
		return transaction.Empty()
	}
	rec := transaction.Record{CardNumber: card}

	amountAt := strings.Index(text, amountMarker)
	if amountAt < 0 {
		rec.Merchant = transaction.InvalidMerchant
		return rec.WithAmount(decimal.Zero)
	}
	rec.Merchant = merchantBefore(text[:amountAt])

	windowStart := amountAt + len(amountMarker)
	windowEnd := min(windowStart+amountWidth, len(text))
	amount, ok := extractors.CentsFromDigits(text[windowStart:windowEnd])
	if !ok {
		// Recognized but unreadable. Keep the card so the row is visible.
		rec.Merchant = transaction.InvalidMerchant
	}
	return rec.WithAmount(amount)
}

func scanCard(text string) (string, bool) {
	i := strings.Index(text, cardMarker)
	if i < 0 {
		return "", false
	}
	start := i + len(cardMarker)
	end := start + cardWidth
	if end > len(text) {
		return "", false
	}
	return text[start:end], true
}

// merchantBefore returns the text after the last "at" in s.
func merchantBefore(s string) string {
	locs := merchantMarker.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return ""
	}
	return strings.TrimSpace(s[locs[len(locs)-1][1]:])
}

// parseBillPayment reads a card payment confirmation. A "payment" or
// "bill payment" keyword anywhere in the body normalizes the merchant to
// BillPaymentLabel.
func parseBillPayment(in extractors.Input) transaction.Record {
	if in.SubjectText() != SubjectBillPayment {
		return transaction.Empty()
	}
	text := in.Raw

	m := billCard.FindStringSubmatch(text)
	if m == nil {
		return transaction.Empty()
	}

	rec := transaction.Record{
		CardNumber: m[1],
		Merchant:   billMerchant(text),
		Category:   BillPaymentLabel,
	}
	if m := billAmount.FindStringSubmatch(text); m != nil {
		if amount, ok := extractors.ParseAmount(m[1]); ok {
			rec = rec.WithAmount(amount)
		}
	}
	return rec
}

func billMerchant(text string) string {
	if billKeyword.MatchString(text) {
		return BillPaymentLabel
	}
	m := billFor.FindStringSubmatch(text)
	if m == nil {
		return BillPaymentLabel
	}
	name := strings.TrimSpace(m[1])
	if name == "" || billKeyword.MatchString(name) {
		return BillPaymentLabel
	}
	return name
}
