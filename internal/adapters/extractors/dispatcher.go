package extractors

import (
	"fmt"
	"log/slog"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/markup"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/classifier"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/metrics"
)

// Dispatcher implements the shared extraction algorithm for one merchant.
// Its route lists are fixed at construction.
type Dispatcher struct {
	merchant     string
	markupRoutes []Route
	textRoutes   []Route
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewDispatcher creates a dispatcher for the given routes.
func NewDispatcher(merchant string, logger *slog.Logger, markupRoutes, textRoutes []Route) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		merchant:     merchant,
		markupRoutes: append([]Route(nil), markupRoutes...),
		textRoutes:   append([]Route(nil), textRoutes...),
		logger:       logger.With(slog.String("merchant", merchant)),
		metrics:      metrics.Default(),
	}
}

// Extract classifies content, runs the subject-matched route and then the
// fallback sweep, and returns the first record with a card number.
func (d *Dispatcher) Extract(content string, subject *string) transaction.Record {
	contentType := classifier.Classify(content)

	in := Input{Raw: content, Subject: subject}
	routes := d.textRoutes
	if contentType == classifier.Markup {
		routes = d.markupRoutes
		if len(routes) == 0 {
			return transaction.Empty()
		}
		doc, err := markup.Parse(content)
		if err != nil {
			d.logger.Warn("markup parse failed", slog.String("error", err.Error()))
			return transaction.Empty()
		}
		in.Doc = doc
	}

	tried := -1
	if subject != nil {
		for i, route := range routes {
			if !route.Match.Match(*subject) {
				continue
			}
			tried = i
			if rec := d.run(route, in); rec.IsValid() {
				return rec
			}
			break
		}
	}

	for i, route := range routes {
		if i == tried {
			continue
		}
		if rec := d.run(route, in); rec.IsValid() {
			d.logger.Debug("fallback route matched",
				slog.String("route", route.Name),
				slog.String("subject", in.SubjectText()),
			)
			return rec
		}
	}

	d.logger.Debug("no route matched",
		slog.String("content_type", contentType.String()),
		slog.String("subject", in.SubjectText()),
	)
	return transaction.Empty()
}

// run invokes one parser, turning a panic into an empty record so a single
// broken template cannot abort the sweep.
func (d *Dispatcher) run(route Route, in Input) (rec transaction.Record) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ParserPanics.WithLabelValues(d.merchant).Inc()
			d.logger.Warn("parser failed",
				slog.String("route", route.Name),
				slog.String("error", fmt.Sprint(r)),
			)
			rec = transaction.Empty()
		}
	}()
	return route.Parse(in)
}

// Routes returns the names of the routes for a content type, in order.
func (d *Dispatcher) Routes(ct classifier.ContentType) []string {
	routes := d.textRoutes
	if ct == classifier.Markup {
		routes = d.markupRoutes
	}
	names := make([]string, 0, len(routes))
	for _, r := range routes {
		names = append(names, r.Name)
	}
	return names
}
