// src/handlers/portfolio_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/services"
	"github.com/username/ledgerguard/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// HandleGetSnapshot returns one row per active holding with its resolved
// value as of ?as_of (default now).
func (h *PortfolioHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	asOf := r.URL.Query().Get("as_of")
	snapshot, err := h.portfolioService.Snapshot(r.Context(), asOf)
	if err != nil {
		logger.FromContext(r.Context()).Error("Snapshot query failed", "asOf", asOf, "error", err)
		utils.SendJSONError(w, "snapshot query failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, snapshot, http.StatusOK)
}

// HandleGetAllocation returns the asset-class breakdown with percentages.
func (h *PortfolioHandler) HandleGetAllocation(w http.ResponseWriter, r *http.Request) {
	asOf := r.URL.Query().Get("as_of")
	allocation, err := h.portfolioService.Allocation(r.Context(), asOf)
	if err != nil {
		logger.FromContext(r.Context()).Error("Allocation query failed", "asOf", asOf, "error", err)
		utils.SendJSONError(w, "allocation query failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, allocation, http.StatusOK)
}

// HandleGetStaleness lists holdings whose valuation is older than ?max_age_days
// (default 30), never-valued holdings first.
func (h *PortfolioHandler) HandleGetStaleness(w http.ResponseWriter, r *http.Request) {
	asOf := r.URL.Query().Get("as_of")
	maxAgeDays := 30
	if raw := r.URL.Query().Get("max_age_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.SendJSONError(w, "max_age_days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxAgeDays = parsed
	}

	report, err := h.portfolioService.Staleness(r.Context(), asOf, maxAgeDays)
	if err != nil {
		logger.FromContext(r.Context()).Error("Staleness query failed", "asOf", asOf, "error", err)
		utils.SendJSONError(w, "staleness query failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleGetHoldingValue resolves the single authoritative value for one
// holding as of ?as_of. Returns 404 when no eligible snapshot exists.
func (h *PortfolioHandler) HandleGetHoldingValue(w http.ResponseWriter, r *http.Request) {
	holdingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid holding id", http.StatusBadRequest)
		return
	}
	asOf := r.URL.Query().Get("as_of")

	resolved, err := h.portfolioService.ResolveValue(r.Context(), holdingID, asOf)
	if err != nil {
		logger.FromContext(r.Context()).Error("Holding value resolution failed", "holdingID", holdingID, "error", err)
		utils.SendJSONError(w, "holding value resolution failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if resolved == nil {
		utils.SendJSONError(w, "no eligible valuation for holding", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, resolved, http.StatusOK)
}

type recordValueRequest struct {
	SourceID    int64   `json:"source_id"`
	AsOfDate    string  `json:"as_of_date"`
	Quantity    *string `json:"quantity,omitempty"`
	Price       *string `json:"price,omitempty"`
	MarketValue string  `json:"market_value"`
	Currency    string  `json:"currency,omitempty"`
	FxRate      *string `json:"fx_rate,omitempty"`
}

// HandleRecordValue appends a valuation snapshot (manual entry path).
func (h *PortfolioHandler) HandleRecordValue(w http.ResponseWriter, r *http.Request) {
	holdingID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid holding id", http.StatusBadRequest)
		return
	}

	var req recordValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	marketValue, err := decimal.NewFromString(req.MarketValue)
	if err != nil {
		utils.SendJSONError(w, "market_value must be a decimal string", http.StatusBadRequest)
		return
	}
	value := &models.HoldingValue{
		HoldingID:   holdingID,
		SourceID:    req.SourceID,
		AsOfDate:    req.AsOfDate,
		MarketValue: marketValue,
		Currency:    req.Currency,
	}
	if value.Currency == "" {
		value.Currency = "EUR"
	}
	if value.Quantity, err = parseOptionalDecimal(req.Quantity, "quantity"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if value.Price, err = parseOptionalDecimal(req.Price, "price"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if value.FxRate, err = parseOptionalDecimal(req.FxRate, "fx_rate"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.portfolioService.RecordValue(r.Context(), value)
	if err != nil {
		logger.FromContext(r.Context()).Error("Recording holding value failed", "holdingID", holdingID, "error", err)
		utils.SendJSONError(w, "recording holding value failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, map[string]int64{"id": id}, http.StatusCreated)
}

func parseOptionalDecimal(raw *string, fieldName string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, &jsonFieldError{field: fieldName}
	}
	return &d, nil
}

type jsonFieldError struct {
	field string
}

func (e *jsonFieldError) Error() string {
	return e.field + " must be a decimal string"
}
