package handlers

import (
	"net/http"

	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/registry"
)

// MerchantsHandler lists the registered merchants.
type MerchantsHandler struct {
	*Base
	registry *registry.Registry
}

// NewMerchantsHandler creates a new merchants handler.
func NewMerchantsHandler(reg *registry.Registry) *MerchantsHandler {
	return &MerchantsHandler{Base: &Base{}, registry: reg}
}

// List handles GET /api/merchants.
func (h *MerchantsHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.registry.GetAll()
	response := dto.MerchantListResponse{
		Merchants: make([]dto.MerchantResponse, 0, len(all)),
		Count:     len(all),
	}
	for _, e := range all {
		response.Merchants = append(response.Merchants, dto.MerchantResponse{
			Name:   e.Name(),
			Sender: e.MerchantEmail(),
		})
	}
	h.WriteJSON(w, http.StatusOK, response)
}
