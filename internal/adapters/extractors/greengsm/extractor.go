// Package greengsm extracts card payments to Green and Smart Mobility
// (GSM) from 2C2P payment gateway receipts.
package greengsm

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

const (
	Name          = "GreenGSM"
	DefaultSender = "noreply@2c2p.com"

	// SubjectPrefix starts every receipt subject; a reference number follows.
	SubjectPrefix = "RECEIPT FOR YOUR PAYMENT"
)

var (
	amountPattern   = regexp.MustCompile(`([0-9]+\.[0-9]{2})\s*PHP`)
	merchantPattern = regexp.MustCompile(`(?i)payment of [0-9.]+\s*PHP to (.+?)\.`)
	cardPattern     = regexp.MustCompile(`(?i)Paid via:\s*(?:MasterCard|Visa|AMEX|JCB)\s+[0-9X]+([0-9]{4})`)
)

var _ extractors.MerchantExtractor = (*Extractor)(nil)

// Extractor handles 2C2P receipts.
type Extractor struct {
	*extractors.Dispatcher
	sender string
}

// New creates a GreenGSM extractor with the default sender address.
func New(logger *slog.Logger) *Extractor {
	return NewWithSender(DefaultSender, logger)
}

// NewWithSender creates a GreenGSM extractor for a specific sender address.
func NewWithSender(sender string, logger *slog.Logger) *Extractor {
	e := &Extractor{sender: sender}
	e.Dispatcher = extractors.NewDispatcher(Name, logger, []extractors.Route{
		{Name: "receipt", Match: extractors.Prefix(SubjectPrefix), Parse: parseReceipt},
	}, nil)
	return e
}

func (e *Extractor) Name() string          { return Name }
func (e *Extractor) MerchantEmail() string { return e.sender }

// parseReceipt runs three independent patterns over the visible text. A
// pattern that does not match leaves its field unset.
func parseReceipt(in extractors.Input) transaction.Record {
	text := in.Doc.Text()

	var rec transaction.Record
	if m := cardPattern.FindStringSubmatch(text); m != nil {
		rec.CardNumber = m[1]
	}
	if m := merchantPattern.FindStringSubmatch(text); m != nil {
		rec.Merchant = strings.TrimSpace(m[1])
	}
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		if amount, ok := extractors.ParseAmount(m[1]); ok {
			rec = rec.WithAmount(amount)
		}
	}
	return rec
}
