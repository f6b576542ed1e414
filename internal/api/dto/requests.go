package dto

// ExtractRequest is the body of POST /api/extract.
type ExtractRequest struct {
	Merchant string  `json:"merchant"`
	Subject  *string `json:"subject"` // null when the email had no subject
	Body     string  `json:"body"`
}

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	Merchants    []string `json:"merchants"`     // empty = all registered
	LookbackDays int      `json:"lookback_days"` // used when no watermark exists
	Limit        int      `json:"limit"`         // max emails per merchant
	DryRun       bool     `json:"dry_run"`
}

// TransactionListParams are the query parameters of GET /api/transactions.
type TransactionListParams struct {
	Source     string
	CardNumber string
	Start      string // RFC 3339 or YYYY-MM-DD
	End        string
	Limit      int
	Offset     int
}

// DefaultTransactionListParams returns default values for transaction list params.
func DefaultTransactionListParams() TransactionListParams {
	return TransactionListParams{Limit: 100}
}
