// internal/handlers/commission.go
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
	rateResolver      *services.RateResolver
}

func NewCommissionHandler(commissionService *services.CommissionService, rateResolver *services.RateResolver) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		rateResolver:      rateResolver,
	}
}

// POST /commissions/calculate
func (h *CommissionHandler) Calculate(c *gin.Context) {
	var req services.CalculateCommissionRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.commissionService.Calculate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, response)
}

// GET /commissions
func (h *CommissionHandler) List(c *gin.Context) {
	q, ok := listQuery(c, func(s string) bool { return models.CommissionStatus(s).IsValid() })
	if !ok {
		return
	}
	filter := services.CommissionFilter{
		PaginationParams: q.PaginationParams,
		VendorID:         q.VendorID,
		OrderID:          strings.TrimSpace(c.Query("order_id")),
		ProductCategory:  strings.TrimSpace(c.Query("product_category")),
	}
	if q.Status != "" {
		status := models.CommissionStatus(q.Status)
		filter.Status = &status
	}

	records, total, err := h.commissionService.ListCommissions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(records, total, q.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// GET /commissions/:id
func (h *CommissionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid commission ID", nil)
		return
	}

	record, err := h.commissionService.GetCommission(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, record)
}

// GET /vendors/:id/earnings
func (h *CommissionHandler) VendorEarnings(c *gin.Context) {
	includeProjections, _ := strconv.ParseBool(c.DefaultQuery("include_projections", "false"))

	earnings, err := h.commissionService.VendorEarnings(c.Request.Context(), &services.VendorEarningsRequest{
		VendorID:           c.Param("id"),
		Period:             c.DefaultQuery("period", "30d"),
		IncludeProjections: includeProjections,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, earnings)
}

// GET /analytics/commissions
func (h *CommissionHandler) Analytics(c *gin.Context) {
	req := services.AnalyticsRequest{
		Period:        c.DefaultQuery("period", "30d"),
		VendorIDs:     splitList(c.Query("vendor_ids")),
		AnalyticsType: c.DefaultQuery("analytics_type", services.AnalyticsOverview),
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	response, err := h.commissionService.Analytics(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// GET /commission-rates
func (h *CommissionHandler) ListRates(c *gin.Context) {
	rates, err := h.rateResolver.ListRates(c.Request.Context(), c.Query("vendor_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"rates":        rates,
		"default_rate": h.rateResolver.DefaultRate(),
	})
}

// POST /commission-rates
func (h *CommissionHandler) CreateRate(c *gin.Context) {
	var req services.CreateRateRequest
	if !bindJSON(c, &req) {
		return
	}

	rate, err := h.rateResolver.CreateRate(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, rate)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
