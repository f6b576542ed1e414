package handlers_test

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

func setChiURLParam(ctx context.Context, key, value string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func testRow(source, card, amount string, date time.Time) transaction.Row {
	row := transaction.Row{
		Source:     source,
		Date:       date,
		Subject:    "Receipt",
		CardNumber: card,
		Merchant:   source,
	}
	if amount != "" {
		row.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return row
}
