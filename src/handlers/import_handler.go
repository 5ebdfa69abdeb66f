// src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/security/validation"
	"github.com/username/ledgerguard/src/services"
	"github.com/username/ledgerguard/src/utils"
)

// ImportHandler exposes the preview/apply import protocol. Previewed plans
// are parked in memory under a one-time token; apply consumes the token. A
// caller can never reach apply without having first received a preview for
// that exact input.
type ImportHandler struct {
	importService services.ImportService

	mu    sync.Mutex
	plans map[string]*services.ImportPlan
}

func NewImportHandler(importService services.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		plans:         make(map[string]*services.ImportPlan),
	}
}

type importPreviewRequest struct {
	Records        []models.EnrichedRecord `json:"records"`
	LearnPatterns  bool                    `json:"learn_patterns"`
	LearnThreshold float64                 `json:"learn_threshold,omitempty"`
	DocumentHash   string                  `json:"document_hash,omitempty"`
	DocumentName   string                  `json:"document_name,omitempty"`
}

type importPreviewResponse struct {
	PlanID  string               `json:"plan_id"`
	Summary models.ImportSummary `json:"summary"`
}

// HandlePreview computes an import plan without writing anything.
func (h *ImportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req importPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	plan, err := h.importService.Preview(r.Context(), req.Records, services.ImportOptions{
		LearnPatterns:  req.LearnPatterns,
		LearnThreshold: req.LearnThreshold,
		DocumentHash:   validation.CleanField(req.DocumentHash),
		DocumentName:   validation.CleanField(req.DocumentName),
	})
	if err != nil {
		if errors.Is(err, services.ErrEmptyBatch) {
			utils.SendJSONError(w, "import batch is empty", http.StatusBadRequest)
			return
		}
		ctxLogger.Error("Import preview failed", "error", err)
		utils.SendJSONError(w, "import preview failed", http.StatusInternalServerError)
		return
	}

	planID := uuid.New().String()
	h.mu.Lock()
	h.plans[planID] = plan
	h.mu.Unlock()

	ctxLogger.Info("Import preview computed",
		"planID", planID,
		"records", len(req.Records),
		"wouldInsert", plan.Summary.Inserted,
		"wouldSkip", plan.Summary.SkippedDuplicates)
	utils.SendJSON(w, importPreviewResponse{PlanID: planID, Summary: plan.Summary}, http.StatusOK)
}

type importApplyRequest struct {
	PlanID string `json:"plan_id"`
}

// HandleApply commits a previously previewed plan. The plan token is
// single-use: a second apply with the same token is rejected.
func (h *ImportHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req importApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		utils.SendJSONError(w, "plan_id is required; call preview first", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	plan, ok := h.plans[planID]
	delete(h.plans, planID)
	h.mu.Unlock()
	if !ok {
		utils.SendJSONError(w, "unknown or already applied plan_id", http.StatusConflict)
		return
	}

	summary, err := h.importService.Apply(r.Context(), plan)
	if err != nil {
		if errors.Is(err, services.ErrPlanAlreadyApplied) {
			utils.SendJSONError(w, "plan was already applied", http.StatusConflict)
			return
		}
		ctxLogger.Error("Import apply failed", "planID", planID, "error", err)
		utils.SendJSONError(w, "import apply failed", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, summary, http.StatusOK)
}
