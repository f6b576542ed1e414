package handlers_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/api/handlers"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/storage"
)

func startRun(t *testing.T, repo *storage.MockRepository, id string, started time.Time, merchants ...string) {
	t.Helper()
	require.NoError(t, repo.StartRun(&storage.Run{
		ID:          id,
		Merchants:   merchants,
		WindowStart: started.AddDate(0, 0, -7),
		WindowEnd:   started,
		StartedAt:   started,
	}))
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Empty(t, response.Runs)
		assert.NotNil(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs newest first and respects limit", func(t *testing.T) {
		repo := storage.NewMockRepository()
		base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			startRun(t, repo, fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour), "Grab")
		}

		handler := handlers.NewRunsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=3", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.Runs, 3)
		assert.Equal(t, "run-4", response.Runs[0].ID)
		assert.Equal(t, storage.RunStatusRunning, response.Runs[0].Status)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run by ID", func(t *testing.T) {
		repo := storage.NewMockRepository()
		startRun(t, repo, "abc", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Grab", "Metrobank")
		require.NoError(t, repo.CompleteRun("abc", storage.RunStats{EmailsSeen: 10, RowsExtracted: 8, RowsInserted: 6, Failed: 2, Malformed: 1}, nil))

		handler := handlers.NewRunsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "abc"))
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "abc", response.ID)
		assert.Equal(t, []string{"Grab", "Metrobank"}, response.Merchants)
		assert.Equal(t, "2024-03-01T00:00:00Z", response.StartedAt)
		assert.Equal(t, "2024-02-23T00:00:00Z", response.WindowStart)
		assert.NotEmpty(t, response.CompletedAt)
		assert.Equal(t, 10, response.EmailsSeen)
		assert.Equal(t, 6, response.RowsInserted)
		assert.Equal(t, 1, response.Malformed)
		assert.Equal(t, "completed", response.Status)
	})

	t.Run("failed run carries its error", func(t *testing.T) {
		repo := storage.NewMockRepository()
		startRun(t, repo, "bad", time.Now())
		require.NoError(t, repo.CompleteRun("bad", storage.RunStats{}, errors.New("mailbox unreadable")))

		handler := handlers.NewRunsHandler(repo)
		req := httptest.NewRequest(http.MethodGet, "/api/runs/bad", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "bad"))
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "failed", response.Status)
		assert.Equal(t, "mailbox unreadable", response.ErrorMessage)
		assert.Equal(t, []string{}, response.Merchants)
	})

	t.Run("returns 404 for non-existent run", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "missing"))
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var response dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, dto.ErrCodeNotFound, response.Code)
	})

	t.Run("returns 400 for empty ID", func(t *testing.T) {
		handler := handlers.NewRunsHandler(storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodGet, "/api/runs/", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", ""))
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
