// internal/handlers/payout.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

type PayoutHandler struct {
	paymentService *services.PaymentService
	batchGenerator *services.PayoutBatchGenerator
}

func NewPayoutHandler(paymentService *services.PaymentService, batchGenerator *services.PayoutBatchGenerator) *PayoutHandler {
	return &PayoutHandler{
		paymentService: paymentService,
		batchGenerator: batchGenerator,
	}
}

// POST /payouts/process
func (h *PayoutHandler) ProcessPayout(c *gin.Context) {
	var req services.ProcessPayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.paymentService.ProcessPayout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// POST /payouts/batches
func (h *PayoutHandler) GenerateBatch(c *gin.Context) {
	var req services.GenerateBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.batchGenerator.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.DryRun {
		utils.SuccessResponse(c, response)
		return
	}
	utils.CreatedResponse(c, response)
}

// POST /payouts/automated
func (h *PayoutHandler) AutomatedPayouts(c *gin.Context) {
	var req services.AutomatedPayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.paymentService.RunAutomatedPayouts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /payouts/schedule
func (h *PayoutHandler) Schedule(c *gin.Context) {
	daysAhead, _ := strconv.Atoi(c.DefaultQuery("days_ahead", "30"))
	req := services.PayoutScheduleRequest{
		VendorID:  c.Query("vendor_id"),
		DaysAhead: daysAhead,
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	schedule, err := h.batchGenerator.Schedule(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// GET /payouts
func (h *PayoutHandler) List(c *gin.Context) {
	q, ok := listQuery(c, func(s string) bool { return models.PayoutStatus(s).IsValid() })
	if !ok {
		return
	}
	params := q.PaginationParams
	filter := services.PayoutFilter{
		PaginationParams: params,
		VendorID:         q.VendorID,
	}
	if q.Status != "" {
		status := models.PayoutStatus(q.Status)
		filter.Status = &status
	}
	if batchID := c.Query("batch_id"); batchID != "" {
		id, err := uuid.Parse(batchID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid batch ID", nil)
			return
		}
		filter.BatchID = &id
	}

	payouts, total, err := h.paymentService.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(payouts, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /payouts/:id
func (h *PayoutHandler) Get(c *gin.Context) {
	id, ok := parsePayoutID(c)
	if !ok {
		return
	}

	payout, err := h.paymentService.GetPayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, payout)
}

// POST /payouts/:id/retry
func (h *PayoutHandler) Retry(c *gin.Context) {
	id, ok := parsePayoutID(c)
	if !ok {
		return
	}

	payout, err := h.paymentService.RetryPayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, payout)
}

// POST /payouts/:id/release
func (h *PayoutHandler) Release(c *gin.Context) {
	id, ok := parsePayoutID(c)
	if !ok {
		return
	}

	payout, err := h.paymentService.ReleasePayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, payout)
}

func parsePayoutID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid payout ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
