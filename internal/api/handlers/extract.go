package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/api/dto"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/extraction"
)

// maxExtractBody bounds the request body of POST /api/extract.
const maxExtractBody = 2 << 20

// ExtractHandler runs a single email through a merchant's extractor.
type ExtractHandler struct {
	*Base
	service *extraction.Service
}

// NewExtractHandler creates a new extract handler.
func NewExtractHandler(service *extraction.Service) *ExtractHandler {
	return &ExtractHandler{Base: &Base{}, service: service}
}

// Extract handles POST /api/extract. An email no parser recognizes is a
// 200 with valid=false, not an error.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req dto.ExtractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.Merchant == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("merchant is required"))
		return
	}

	rec, err := h.service.ExtractOne(req.Merchant, req.Body, req.Subject)
	if err != nil {
		if errors.Is(err, extractors.ErrUnknownMerchant) {
			h.WriteError(w, http.StatusNotFound, dto.UnknownMerchantError(req.Merchant))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ExtractResponse{
		CardNumber: rec.CardNumber,
		Amount:     formatAmount(rec.Amount),
		Merchant:   rec.Merchant,
		Category:   rec.Category,
		Valid:      rec.IsValid(),
		Malformed:  rec.IsMalformed(),
	})
}
