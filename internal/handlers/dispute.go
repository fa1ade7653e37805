// internal/handlers/dispute.go
package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/vendor-settlement/internal/i18n"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
}

func NewDisputeHandler(disputeService *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
	}
}

type DisputeActionRequest struct {
	Action      string          `json:"action" validate:"required,oneof=create resolve list"`
	DisputeData json.RawMessage `json:"dispute_data"`
}

type disputeListData struct {
	CommissionID *uuid.UUID `json:"commission_id,omitempty"`
	VendorID     string     `json:"vendor_id,omitempty"`
	Status       string     `json:"status,omitempty" validate:"omitempty,oneof=open resolved"`
	Page         int        `json:"page,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// POST /disputes
func (h *DisputeHandler) Handle(c *gin.Context) {
	var req DisputeActionRequest
	if !bindJSON(c, &req) {
		return
	}

	switch req.Action {
	case "create":
		h.create(c, req.DisputeData)
	case "resolve":
		h.resolve(c, req.DisputeData)
	default:
		h.list(c, req.DisputeData)
	}
}

func (h *DisputeHandler) create(c *gin.Context, data json.RawMessage) {
	var req services.CreateDisputeRequest
	if !decodeData(c, data, &req) {
		return
	}

	dispute, err := h.disputeService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, dispute)
}

func (h *DisputeHandler) resolve(c *gin.Context, data json.RawMessage) {
	var req services.ResolveDisputeRequest
	if !decodeData(c, data, &req) {
		return
	}

	dispute, err := h.disputeService.Resolve(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, dispute)
}

func (h *DisputeHandler) list(c *gin.Context, data json.RawMessage) {
	var req disputeListData
	if len(data) > 0 && !decodeData(c, data, &req) {
		return
	}

	params := utils.PaginationParams{Page: req.Page, Limit: req.Limit}.Normalize()

	filter := services.DisputeFilter{
		PaginationParams: params,
		CommissionID:     req.CommissionID,
		VendorID:         req.VendorID,
	}
	if req.Status != "" {
		status := models.DisputeStatus(req.Status)
		filter.Status = &status
	}

	disputes, total, err := h.disputeService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(disputes, total, params)
	utils.PaginatedResponse(c, result)
}

func decodeData(c *gin.Context, data json.RawMessage, out interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if len(data) == 0 {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "dispute_data"), nil)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "dispute_data"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(out)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
