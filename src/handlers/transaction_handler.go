// src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/processors"
	"github.com/username/ledgerguard/src/security/validation"
	"github.com/username/ledgerguard/src/store"
	"github.com/username/ledgerguard/src/utils"
)

type TransactionHandler struct {
	store *store.Store
}

func NewTransactionHandler(st *store.Store) *TransactionHandler {
	return &TransactionHandler{store: st}
}

// HandleGetTransactions lists ledger rows with optional filters:
// ?account_id, ?from, ?to (YYYY-MM-DD), ?uncategorized=true, ?limit.
func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	var filter store.TransactionFilter
	q := r.URL.Query()

	if raw := q.Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.SendJSONError(w, "account_id must be an integer", http.StatusBadRequest)
			return
		}
		filter.AccountID = &id
	}
	for _, dateParam := range []struct {
		name  string
		value string
		dest  *string
	}{
		{"from", q.Get("from"), &filter.FromDate},
		{"to", q.Get("to"), &filter.ToDate},
	} {
		if dateParam.value == "" {
			continue
		}
		if _, err := validation.ValidateDateString(dateParam.value, dateParam.name); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		*dateParam.dest = dateParam.value
	}
	filter.UncategorizedOnly = q.Get("uncategorized") == "true"
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			utils.SendJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		logger.FromContext(r.Context()).Error("Listing transactions failed", "error", err)
		utils.SendJSONError(w, "listing transactions failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

type correctCategoryRequest struct {
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"`
	LearnPattern bool   `json:"learn_pattern,omitempty"`
}

// HandleCorrectCategory is the explicit category-correction operation, the
// only sanctioned transaction mutation. An empty category clears the
// assignment. Optionally the correction is learned as a merchant pattern at
// full confidence.
func (h *TransactionHandler) HandleCorrectCategory(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}
	var req correctCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.store.GetTransactionByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		utils.SendJSONError(w, "transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		ctxLogger.Error("Loading transaction failed", "id", id, "error", err)
		utils.SendJSONError(w, "loading transaction failed", http.StatusInternalServerError)
		return
	}

	var categoryID *int64
	categoryName := validation.CleanField(req.Category)
	if categoryName != "" {
		var subcategory *string
		if sub := validation.CleanField(req.Subcategory); sub != "" {
			subcategory = &sub
		}
		category, created, err := h.store.GetOrCreateCategory(r.Context(), categoryName, subcategory, false)
		if err != nil {
			ctxLogger.Error("Resolving category failed", "category", categoryName, "error", err)
			utils.SendJSONError(w, "resolving category failed", http.StatusInternalServerError)
			return
		}
		categoryID = &category.ID
		if created {
			ctxLogger.Info("Category created from correction", "category", categoryName)
		}
	}

	if err := h.store.UpdateTransactionCategory(r.Context(), id, categoryID); err != nil {
		ctxLogger.Error("Category correction failed", "id", id, "error", err)
		utils.SendJSONError(w, "category correction failed", http.StatusInternalServerError)
		return
	}

	// A correction is ground truth; learn it at full confidence when asked.
	if req.LearnPattern && categoryID != nil {
		key := processors.NormalizeMerchantKey(tx.Merchant)
		if _, _, err := h.store.LearnPattern(r.Context(), key, *categoryID, 1.0); err != nil {
			ctxLogger.Warn("Learning pattern from correction failed", "pattern", key, "error", err)
		}
	}

	updated, err := h.store.GetTransactionByID(r.Context(), id)
	if err != nil {
		ctxLogger.Error("Reloading transaction failed", "id", id, "error", err)
		utils.SendJSONError(w, "reloading transaction failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, updated, http.StatusOK)
}

// HandleGetCategories lists the category taxonomy with usage counters.
func (h *TransactionHandler) HandleGetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Listing categories failed", "error", err)
		utils.SendJSONError(w, "listing categories failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, categories, http.StatusOK)
}

// HandleGetAccounts lists accounts.
func (h *TransactionHandler) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Listing accounts failed", "error", err)
		utils.SendJSONError(w, "listing accounts failed", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}
