// Package foodpanda extracts order totals from Foodpanda order confirmation
// emails. Foodpanda never shows card details, so records carry a fixed
// placeholder card code.
package foodpanda

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/markup"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

const (
	Name          = "Foodpanda"
	DefaultSender = "info@mail.foodpanda.ph"

	// CardPlaceholder stands in for the card number on every record.
	CardPlaceholder = "FPND"

	// DefaultMerchant is used when no restaurant name can be found.
	DefaultMerchant = "FoodPanda"

	SubjectOrderPlaced       = "Your order has been placed"
	SubjectOrderPlacedPeriod = "Your order has been placed."
)

// siblingScanLimit bounds how far past the "Order Total" label the price is
// looked for.
const siblingScanLimit = 5

var (
	priceInElement = regexp.MustCompile(`₱\s*([0-9,.]+)`)

	// Label and price on the same or adjacent lines. Item lines can produce
	// earlier false positives, so the last match wins.
	orderTotalInline = regexp.MustCompile(`Order\s+Total\s*[\s\n]*₱\s*([0-9,.]+)`)

	// Label, currency symbol and digits each on their own line.
	orderTotalSplit = regexp.MustCompile(`Order\s+Total[\s\n]*₱[\s\n]*([0-9,.]+)`)

	restaurantOnItsWay = regexp.MustCompile(`from\s+(.+?)\s+will be on its way`)
	restaurantPlaced   = regexp.MustCompile(`(?s)Your order from\s+(.+?)\s+has been placed`)
)

var _ extractors.MerchantExtractor = (*Extractor)(nil)

// Extractor handles Foodpanda order confirmations.
type Extractor struct {
	*extractors.Dispatcher
	sender string
}

// New creates a Foodpanda extractor with the default sender address.
func New(logger *slog.Logger) *Extractor {
	return NewWithSender(DefaultSender, logger)
}

// NewWithSender creates a Foodpanda extractor for a specific sender address.
func NewWithSender(sender string, logger *slog.Logger) *Extractor {
	e := &Extractor{sender: sender}
	e.Dispatcher = extractors.NewDispatcher(Name, logger,
		[]extractors.Route{
			{Name: "order_placed", Match: extractors.Exact(SubjectOrderPlaced), Parse: parseOrderConfirmation},
			{Name: "order_placed_period", Match: extractors.Exact(SubjectOrderPlacedPeriod), Parse: parseOrderConfirmation},
		},
		[]extractors.Route{
			{Name: "order_placed_text", Match: extractors.Exact(SubjectOrderPlaced), Parse: parseTextConfirmation},
			{Name: "order_placed_period_text", Match: extractors.Exact(SubjectOrderPlacedPeriod), Parse: parseTextConfirmation},
		},
	)
	return e
}

func (e *Extractor) Name() string          { return Name }
func (e *Extractor) MerchantEmail() string { return e.sender }

func isOrderConfirmation(subject string) bool {
	return subject == SubjectOrderPlaced || subject == SubjectOrderPlacedPeriod
}

// parseTextConfirmation wraps a plain-text body in a minimal document and
// reuses the markup parser.
func parseTextConfirmation(in extractors.Input) transaction.Record {
	doc, err := markup.WrapText(in.Raw)
	if err != nil {
		return transaction.Empty()
	}
	in.Doc = doc
	return parseOrderConfirmation(in)
}

func parseOrderConfirmation(in extractors.Input) transaction.Record {
	if !isOrderConfirmation(in.SubjectText()) {
		return transaction.Empty()
	}

	rec := transaction.Record{
		CardNumber: CardPlaceholder,
		Merchant:   findRestaurant(in.Doc),
	}
	if amount, ok := findOrderTotal(in.Doc); ok {
		rec = rec.WithAmount(amount)
	}
	return rec
}

// findOrderTotal tries the structural lookup first, then two regexes over
// the rendered document.
func findOrderTotal(doc *markup.Document) (decimal.Decimal, bool) {
	label := doc.FindText(func(s string) bool {
		return strings.Contains(s, "Order Total")
	})
	for _, sibling := range label.Parent().NextSiblings(siblingScanLimit) {
		if m := priceInElement.FindStringSubmatch(sibling.HTML()); m != nil {
			if amount, ok := extractors.ParseAmount(m[1]); ok {
				return amount, true
			}
		}
	}

	rendered := doc.HTML()
	if matches := orderTotalInline.FindAllStringSubmatch(rendered, -1); len(matches) > 0 {
		if amount, ok := extractors.ParseAmount(matches[len(matches)-1][1]); ok {
			return amount, true
		}
	}
	if m := orderTotalSplit.FindStringSubmatch(rendered); m != nil {
		return extractors.ParseAmount(m[1])
	}
	return decimal.Zero, false
}

// findRestaurant reads the restaurant name from either template generation,
// falling back to the platform's own name.
func findRestaurant(doc *markup.Document) string {
	node := doc.FindText(func(s string) bool {
		return strings.Contains(s, "from") && strings.Contains(s, "will be on its way")
	})
	if node != nil {
		if m := restaurantOnItsWay.FindStringSubmatch(node.Text()); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" {
				return name
			}
		}
	}

	if m := restaurantPlaced.FindStringSubmatch(doc.Text()); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}

	return DefaultMerchant
}
