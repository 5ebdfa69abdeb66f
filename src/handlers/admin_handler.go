// src/handlers/admin_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/security/validation"
	"github.com/username/ledgerguard/src/store"
	"github.com/username/ledgerguard/src/utils"
)

// AdminHandler covers the reference data behind the portfolio views:
// instruments, holdings, asset sources and allocation targets.
type AdminHandler struct {
	store *store.Store
}

func NewAdminHandler(st *store.Store) *AdminHandler {
	return &AdminHandler{store: st}
}

type createInstrumentRequest struct {
	Name        string  `json:"name"`
	Symbol      *string `json:"symbol,omitempty"`
	Exchange    *string `json:"exchange,omitempty"`
	Currency    string  `json:"currency"`
	VehicleType string  `json:"vehicle_type"`
	ExternalIDs string  `json:"external_ids,omitempty"`
	MainClass   string  `json:"main_class,omitempty"`
	SubClass    *string `json:"sub_class,omitempty"`
}

func (h *AdminHandler) HandleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req createInstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = validation.CleanField(req.Name)
	if err := validation.ValidateStringNotEmpty(req.Name, "name"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}
	if req.ExternalIDs == "" {
		req.ExternalIDs = "{}"
	} else if err := validation.ValidateMetadataJSON(req.ExternalIDs, "external_ids"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	inst := &models.Instrument{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Exchange:    req.Exchange,
		Currency:    req.Currency,
		VehicleType: req.VehicleType,
		ExternalIDs: req.ExternalIDs,
	}
	id, err := h.store.CreateInstrument(r.Context(), inst)
	if err != nil {
		ctxLogger.Error("Creating instrument failed", "name", req.Name, "error", err)
		utils.SendJSONError(w, "creating instrument failed", http.StatusInternalServerError)
		return
	}
	inst.ID = id

	// Classification is optional; an unclassified instrument is valid.
	if req.MainClass != "" {
		class, err := h.store.GetOrCreateAssetClass(r.Context(), req.MainClass, req.SubClass)
		if err != nil {
			ctxLogger.Error("Resolving asset class failed", "main_class", req.MainClass, "error", err)
			utils.SendJSONError(w, "resolving asset class failed", http.StatusInternalServerError)
			return
		}
		if err := h.store.ClassifyInstrument(r.Context(), id, class.ID); err != nil {
			ctxLogger.Error("Classifying instrument failed", "instrument_id", id, "error", err)
			utils.SendJSONError(w, "classifying instrument failed", http.StatusInternalServerError)
			return
		}
	}
	utils.SendJSON(w, inst, http.StatusCreated)
}

type createHoldingRequest struct {
	AccountID    int64   `json:"account_id"`
	InstrumentID int64   `json:"instrument_id"`
	Side         string  `json:"side,omitempty"`
	CostBasis    string  `json:"cost_basis,omitempty"`
	CostCurrency *string `json:"cost_currency,omitempty"`
}

func (h *AdminHandler) HandleCreateHolding(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req createHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountID <= 0 || req.InstrumentID <= 0 {
		utils.SendJSONError(w, "account_id and instrument_id are required", http.StatusBadRequest)
		return
	}
	if req.Side == "" {
		req.Side = "long"
	}

	holding := &models.Holding{
		AccountID:    req.AccountID,
		InstrumentID: req.InstrumentID,
		Status:       models.HoldingActive,
		Side:         req.Side,
		CostCurrency: req.CostCurrency,
	}
	if req.CostBasis != "" {
		basis, err := decimal.NewFromString(req.CostBasis)
		if err != nil {
			utils.SendJSONError(w, "cost_basis must be a decimal string", http.StatusBadRequest)
			return
		}
		holding.CostBasis = &basis
	}

	id, err := h.store.CreateHolding(r.Context(), holding)
	if err != nil {
		ctxLogger.Error("Creating holding failed", "account_id", req.AccountID, "error", err)
		utils.SendJSONError(w, "creating holding failed", http.StatusInternalServerError)
		return
	}
	holding.ID = id
	utils.SendJSON(w, holding, http.StatusCreated)
}

func (h *AdminHandler) HandleCloseHolding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid holding id", http.StatusBadRequest)
		return
	}
	if err := h.store.CloseHolding(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.SendJSONError(w, "holding not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Closing holding failed", "id", id, "error", err)
		utils.SendJSONError(w, "closing holding failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"status": "closed"}, http.StatusOK)
}

func (h *AdminHandler) HandleGetAssetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListAssetSources(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Listing asset sources failed", "error", err)
		utils.SendJSONError(w, "listing asset sources failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, sources, http.StatusOK)
}

type upsertTargetRequest struct {
	AccountID    *int64  `json:"account_id,omitempty"`
	MainClass    string  `json:"main_class"`
	SubClass     *string `json:"sub_class,omitempty"`
	TargetWeight float64 `json:"target_weight"`
	AsOfDate     string  `json:"as_of_date"`
}

func (h *AdminHandler) HandleUpsertTarget(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req upsertTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.MainClass == "" {
		utils.SendJSONError(w, "main_class is required", http.StatusBadRequest)
		return
	}
	if req.TargetWeight < 0 || req.TargetWeight > 1 {
		utils.SendJSONError(w, "target_weight must be between 0 and 1", http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateDateString(req.AsOfDate, "as_of_date"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	class, err := h.store.GetOrCreateAssetClass(r.Context(), req.MainClass, req.SubClass)
	if err != nil {
		ctxLogger.Error("Resolving asset class failed", "main_class", req.MainClass, "error", err)
		utils.SendJSONError(w, "resolving asset class failed", http.StatusInternalServerError)
		return
	}
	target := &models.PortfolioTarget{
		AccountID:    req.AccountID,
		AssetClassID: class.ID,
		TargetWeight: req.TargetWeight,
		AsOfDate:     req.AsOfDate,
	}
	if err := h.store.UpsertPortfolioTarget(r.Context(), target); err != nil {
		ctxLogger.Error("Upserting portfolio target failed", "asset_class_id", class.ID, "error", err)
		utils.SendJSONError(w, "upserting portfolio target failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, target, http.StatusOK)
}

func (h *AdminHandler) HandleGetTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.store.ListPortfolioTargets(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Listing portfolio targets failed", "error", err)
		utils.SendJSONError(w, "listing portfolio targets failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, targets, http.StatusOK)
}
