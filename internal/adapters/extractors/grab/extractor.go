// Package grab extracts card transactions from Grab e-receipts. One sender
// produces two template shapes: GrabFood orders and GrabRide trips.
package grab

import (
	"log/slog"
	"strings"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/markup"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

const (
	Name          = "Grab"
	DefaultSender = "no-reply@grab.com"

	SubjectFood = "Your GrabFood E-Receipt"
	SubjectRide = "Your Grab E-Receipt"

	MerchantFood = "GrabFood"
	MerchantRide = "GrabRide"
)

const (
	cardSpanStyle  = "font-weight:bold; color:#000000;"
	foodTotalLabel = "TOTAL (INCL. TAX)"
	rideTotalLabel = "Total Paid"
)

// cardBrands are the alt texts of the payment logo on ride receipts.
var cardBrands = []string{"MasterCard", "Visa"}

var _ extractors.MerchantExtractor = (*Extractor)(nil)

// Extractor handles Grab receipts.
type Extractor struct {
	*extractors.Dispatcher
	sender string
}

// New creates a Grab extractor with the default sender address.
func New(logger *slog.Logger) *Extractor {
	return NewWithSender(DefaultSender, logger)
}

// NewWithSender creates a Grab extractor for a specific sender address.
func NewWithSender(sender string, logger *slog.Logger) *Extractor {
	e := &Extractor{sender: sender}
	e.Dispatcher = extractors.NewDispatcher(Name, logger, []extractors.Route{
		{Name: "food", Match: extractors.Exact(SubjectFood), Parse: parseFood},
		{Name: "ride", Match: extractors.Exact(SubjectRide), Parse: parseRide},
	}, nil)
	return e
}

func (e *Extractor) Name() string          { return Name }
func (e *Extractor) MerchantEmail() string { return e.sender }

// parseFood reads a GrabFood receipt. The bold inline span carrying the card
// description is the anchor; without it the email is not a food receipt.
func parseFood(in extractors.Input) transaction.Record {
	want := markup.NormalizeStyle(cardSpanStyle)
	span := in.Doc.FindElement("span", func(n *markup.Node) bool {
		return n.NormalizedStyle() == want
	})
	if span == nil {
		return transaction.Empty()
	}

	fields := strings.Fields(span.Text())
	if len(fields) == 0 {
		return transaction.Empty()
	}

	rec := transaction.Record{
		CardNumber: fields[len(fields)-1],
		Merchant:   MerchantFood,
	}

	label := in.Doc.FindElement("span", func(n *markup.Node) bool {
		return strings.Contains(n.Text(), foodTotalLabel)
	})
	cell := label.Closest("td").NextElement("td")
	if amount, ok := extractors.AmountFromDigits(cell.Text()); ok {
		rec = rec.WithAmount(amount)
	}
	return rec
}

// parseRide reads a GrabRide receipt. The payment logo image is the anchor
// and the cell beside it holds the last four digits.
func parseRide(in extractors.Input) transaction.Record {
	var logo *markup.Node
	for _, brand := range cardBrands {
		if logo = in.Doc.Find(`img[alt="` + brand + `"]`); logo != nil {
			break
		}
	}
	if logo == nil {
		return transaction.Empty()
	}

	last4 := strings.TrimSpace(logo.Closest("td").NextElement("td").Text())
	if last4 == "" {
		return transaction.Empty()
	}

	rec := transaction.Record{
		CardNumber: last4,
		Merchant:   MerchantRide,
	}

	label := in.Doc.FindElement("td", func(n *markup.Node) bool {
		return strings.TrimSpace(n.Text()) == rideTotalLabel
	})
	if amount, ok := extractors.AmountFromDigits(label.NextElement("td").Text()); ok {
		rec = rec.WithAmount(amount)
	}
	return rec
}
