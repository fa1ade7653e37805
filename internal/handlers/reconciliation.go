// internal/handlers/reconciliation.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
	}
}

// POST /reconciliations
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req services.ReconciliationRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.reconciliationService.Reconcile(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// GET /reconciliations
func (h *ReconciliationHandler) History(c *gin.Context) {
	q, ok := listQuery(c, func(s string) bool { return models.ReconciliationStatus(s).IsValid() })
	if !ok {
		return
	}
	filter := services.ReconciliationFilter{
		PaginationParams: q.PaginationParams,
		VendorID:         q.VendorID,
	}
	if q.Status != "" {
		status := models.ReconciliationStatus(q.Status)
		filter.Status = &status
	}

	rows, total, err := h.reconciliationService.History(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(rows, total, q.PaginationParams)
	utils.PaginatedResponse(c, result)
}
