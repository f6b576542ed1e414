package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/service"
)

// JobsHandler starts and tracks background extraction runs.
type JobsHandler struct {
	*Base
	runs *service.RunService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(runs *service.RunService) *JobsHandler {
	return &JobsHandler{
		Base: &Base{},
		runs: runs,
	}
}

// Start handles POST /api/runs - starts a run in the background.
func (h *JobsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}
	if req.LookbackDays < 0 || req.Limit < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("lookback_days and limit must not be negative"))
		return
	}

	jobID, err := h.runs.StartRun(r.Context(), service.RunRequest{
		Merchants:    req.Merchants,
		LookbackDays: req.LookbackDays,
		Limit:        req.Limit,
		DryRun:       req.DryRun,
	})
	if errors.Is(err, service.ErrRunInProgress) {
		h.WriteError(w, http.StatusConflict, dto.NewAPIError(dto.ErrCodeConflict, err.Error()))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartRunResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	})
}

// List handles GET /api/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.runs.ListJobs()
	response := dto.JobListResponse{
		Jobs:  make([]dto.JobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/jobs/{jobId}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.runs.GetJob(chi.URLParam(r, "jobId"))
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("job"))
		return
	}
	h.WriteJSON(w, http.StatusOK, toJobResponse(*job))
}

// Cancel handles DELETE /api/jobs/{jobId}.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.runs.CancelJob(chi.URLParam(r, "jobId"))
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("job"))
	case errors.Is(err, service.ErrNotCancelable):
		h.WriteError(w, http.StatusConflict, dto.NewAPIError(dto.ErrCodeConflict, err.Error()))
	case err != nil:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	default:
		h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "job cancelled"})
	}
}

func toJobResponse(job service.Job) dto.JobResponse {
	resp := dto.JobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Merchants: job.Request.Merchants,
		DryRun:    job.Request.DryRun,
		StartedAt: formatTime(job.StartedAt),
	}
	if resp.Merchants == nil {
		resp.Merchants = []string{}
	}
	if job.CompletedAt != nil {
		completed := formatTime(*job.CompletedAt)
		resp.CompletedAt = &completed
	}
	if job.Error != "" {
		msg := job.Error
		resp.Error = &msg
	}
	if job.Report != nil && job.Report.Result != nil {
		totals := job.Report.Result.Totals()
		result := &dto.JobResultResponse{
			EmailsSeen:    totals.Seen,
			RowsExtracted: len(job.Report.Result.Rows),
			RowsInserted:  job.Report.Inserted,
			Failed:        totals.Failed,
			Malformed:     totals.Malformed,
		}
		for _, me := range job.Report.Result.Errors {
			result.MerchantErrors = append(result.MerchantErrors, dto.MerchantErrorResponse{
				Merchant: me.Merchant,
				Error:    me.Err.Error(),
			})
		}
		resp.Result = result
	}
	return resp
}
