// src/handlers/query_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/security/queryguard"
	"github.com/username/ledgerguard/src/services"
	"github.com/username/ledgerguard/src/utils"
)

type QueryHandler struct {
	queryService services.QueryService
}

func NewQueryHandler(queryService services.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type queryRejection struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// HandleQuery runs one guarded ad-hoc query. Guard rejections come back as
// 400 with a machine-readable reason code; nothing rejected ever reaches
// storage.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.queryService.Execute(r.Context(), req.Query, req.Limit)
	if err != nil {
		var guardErr *queryguard.GuardError
		if errors.As(err, &guardErr) {
			ctxLogger.Warn("Query rejected by guard", "reason", guardErr.Code, "detail", guardErr.Detail)
			utils.SendJSON(w, queryRejection{
				Error:  "query rejected",
				Reason: string(guardErr.Code),
				Detail: guardErr.Detail,
			}, http.StatusBadRequest)
			return
		}
		ctxLogger.Error("Guarded query execution failed", "error", err)
		utils.SendJSONError(w, "query execution failed", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}
