package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MerchantResponse describes one registered merchant.
type MerchantResponse struct {
	Name   string `json:"name"`
	Sender string `json:"sender"`
}

// MerchantListResponse is returned when listing merchants.
type MerchantListResponse struct {
	Merchants []MerchantResponse `json:"merchants"`
	Count     int                `json:"count"`
}

// ExtractResponse is the record extracted from one email. Amount is null
// when no amount was found.
type ExtractResponse struct {
	CardNumber string  `json:"card_number"`
	Amount     *string `json:"amount"`
	Merchant   string  `json:"merchant"`
	Category   string  `json:"category"`
	Valid      bool    `json:"valid"`
	Malformed  bool    `json:"malformed"`
}

// TransactionResponse is one logged row.
type TransactionResponse struct {
	ID         int64   `json:"id"`
	RunID      string  `json:"run_id"`
	Source     string  `json:"source"`
	Date       string  `json:"date"`
	Subject    string  `json:"subject"`
	CardNumber string  `json:"card_number"`
	Amount     *string `json:"amount"`
	Merchant   string  `json:"merchant"`
	Category   string  `json:"category"`
	LoggedAt   string  `json:"logged_at"`
}

// TransactionListResponse is returned when listing logged rows.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	TotalCount   int                   `json:"total_count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// RunResponse is one recorded extraction run.
type RunResponse struct {
	ID            string   `json:"id"`
	Merchants     []string `json:"merchants"`
	WindowStart   string   `json:"window_start"`
	WindowEnd     string   `json:"window_end"`
	DryRun        bool     `json:"dry_run"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at,omitempty"`
	Status        string   `json:"status"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	EmailsSeen    int      `json:"emails_seen"`
	RowsExtracted int      `json:"rows_extracted"`
	RowsInserted  int      `json:"rows_inserted"`
	Failed        int      `json:"failed"`
	Malformed     int      `json:"malformed"`
	Errors        int      `json:"errors"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// StartRunResponse is returned when a run job is started.
type StartRunResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the state of a background run job.
type JobResponse struct {
	JobID       string             `json:"job_id"`
	Status      string             `json:"status"`
	Merchants   []string           `json:"merchants"`
	DryRun      bool               `json:"dry_run"`
	StartedAt   string             `json:"started_at"`
	CompletedAt *string            `json:"completed_at,omitempty"`
	Result      *JobResultResponse `json:"result,omitempty"`
	Error       *string            `json:"error,omitempty"`
}

// JobResultResponse summarizes a finished job.
type JobResultResponse struct {
	EmailsSeen     int                     `json:"emails_seen"`
	RowsExtracted  int                     `json:"rows_extracted"`
	RowsInserted   int                     `json:"rows_inserted"`
	Failed         int                     `json:"failed"`
	Malformed      int                     `json:"malformed"`
	MerchantErrors []MerchantErrorResponse `json:"merchant_errors,omitempty"`
}

// MerchantErrorResponse is a merchant that could not be processed in a run.
type MerchantErrorResponse struct {
	Merchant string `json:"merchant"`
	Error    string `json:"error"`
}

// JobListResponse lists background run jobs.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
