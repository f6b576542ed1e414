package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/api/handlers"
	"github.com/eshaffer321/cc-transaction-logger/internal/registry"
)

func TestMerchantsHandler_List(t *testing.T) {
	handler := handlers.NewMerchantsHandler(registry.NewDefault(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.MerchantListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, 4, response.Count)

	names := make([]string, 0, len(response.Merchants))
	for _, m := range response.Merchants {
		names = append(names, m.Name)
		assert.NotEmpty(t, m.Sender, m.Name)
	}
	assert.Equal(t, []string{"Foodpanda", "Grab", "GreenGSM", "Metrobank"}, names)
	assert.Equal(t, "Customerservice@metrobankcard.com", response.Merchants[3].Sender)
}
