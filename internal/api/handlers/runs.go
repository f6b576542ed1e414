package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

// RunsHandler serves recorded extraction runs.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(id)
	if errors.Is(err, storage.ErrRunNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

func toRunResponse(run storage.Run) dto.RunResponse {
	resp := dto.RunResponse{
		ID:            run.ID,
		Merchants:     run.Merchants,
		WindowStart:   formatTime(run.WindowStart),
		WindowEnd:     formatTime(run.WindowEnd),
		DryRun:        run.DryRun,
		StartedAt:     formatTime(run.StartedAt),
		Status:        run.Status,
		ErrorMessage:  run.ErrorMessage,
		EmailsSeen:    run.EmailsSeen,
		RowsExtracted: run.RowsExtracted,
		RowsInserted:  run.RowsInserted,
		Failed:        run.Failed,
		Malformed:     run.Malformed,
		Errors:        run.Errors,
	}
	if run.CompletedAt != nil {
		resp.CompletedAt = formatTime(*run.CompletedAt)
	}
	if resp.Merchants == nil {
		resp.Merchants = []string{}
	}
	return resp
}
