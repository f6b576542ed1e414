package handlers

import (
	"net/http"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

// TransactionsHandler serves the transaction log.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{Base: NewBase(repo)}
}

// List handles GET /api/transactions.
//
// Query parameters: source, card, start, end, limit, offset.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultTransactionListParams()
	q := r.URL.Query()
	params.Source = q.Get("source")
	params.CardNumber = q.Get("card")
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", 0)

	start, err := ParseTimeParam(r, "start")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("invalid start time"))
		return
	}
	end, err := ParseTimeParam(r, "end")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("invalid end time"))
		return
	}

	result, err := h.repo.ListTransactions(storage.TransactionFilters{
		Source:     params.Source,
		CardNumber: params.CardNumber,
		Start:      start,
		End:        end,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(result.Transactions)),
		TotalCount:   result.TotalCount,
		Limit:        result.Limit,
		Offset:       result.Offset,
	}
	for _, t := range result.Transactions {
		response.Transactions = append(response.Transactions, dto.TransactionResponse{
			ID:         t.ID,
			RunID:      t.RunID,
			Source:     t.Source,
			Date:       formatTime(t.Date),
			Subject:    t.Subject,
			CardNumber: t.CardNumber,
			Amount:     formatAmount(t.Amount),
			Merchant:   t.Merchant,
			Category:   t.Category,
			LoggedAt:   formatTime(t.LoggedAt),
		})
	}
	h.WriteJSON(w, http.StatusOK, response)
}
