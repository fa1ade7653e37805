// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vendor-settlement/internal/i18n"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

var errorStatus = map[services.ErrorKind]int{
	services.ErrKindDuplicateCommission: http.StatusConflict,
	services.ErrKindInsufficientBalance: http.StatusUnprocessableEntity,
	services.ErrKindPaymentFailure:      http.StatusBadGateway,
	services.ErrKindDisputeConflict:     http.StatusConflict,
	services.ErrKindStatusConflict:      http.StatusConflict,
	services.ErrKindPayoutInFlight:      http.StatusConflict,
	services.ErrKindNotFound:            http.StatusNotFound,
	services.ErrKindInvalidRate:         http.StatusBadRequest,
	services.ErrKindInvalidAmount:       http.StatusBadRequest,
	services.ErrKindValidation:          http.StatusBadRequest,
	services.ErrKindVendorIneligible:    http.StatusUnprocessableEntity,
}

var errorMessageKey = map[services.ErrorKind]string{
	services.ErrKindDuplicateCommission: i18n.KeyDuplicateCommission,
	services.ErrKindInsufficientBalance: i18n.KeyInsufficientBalance,
	services.ErrKindPaymentFailure:      i18n.KeyPaymentFailure,
	services.ErrKindDisputeConflict:     i18n.KeyDisputeConflict,
	services.ErrKindStatusConflict:      i18n.KeyStatusConflict,
	services.ErrKindPayoutInFlight:      i18n.KeyPayoutInFlight,
	services.ErrKindNotFound:            i18n.KeyNotFound,
	services.ErrKindInvalidRate:         i18n.KeyInvalidRate,
	services.ErrKindInvalidAmount:       i18n.KeyInvalidAmount,
	services.ErrKindVendorIneligible:    i18n.KeyVendorIneligible,
}

// listQuery reads the parameters shared by list endpoints. A status outside
// the endpoint's enum is rejected before any query runs.
func listQuery(c *gin.Context, validStatus func(string) bool) (utils.ListQuery, bool) {
	q := utils.GetListQuery(c)
	if q.Status != "" && !validStatus(q.Status) {
		utils.BadRequestResponse(c, "Invalid status filter", gin.H{"status": q.Status})
		return q, false
	}
	return q, true
}

// respondError writes a settlement error in the response envelope. The
// error code is the error kind; unknown errors become INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	var se *services.SettlementError
	if !errors.As(err, &se) {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled error")
		utils.InternalErrorResponse(c, "")
		return
	}

	status, ok := errorStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := se.Message
	if key, ok := errorMessageKey[se.Kind]; ok {
		if lang := utils.GetLangFromContext(c); lang != "en" {
			message = i18n.T(lang, key)
		}
	}

	details := map[string]interface{}{}
	for k, v := range se.Details {
		details[k] = v
	}
	if message != se.Message {
		details["reason"] = se.Message
	}

	utils.ErrorResponse(c, status, string(se.Kind), message, details)
}

// bindJSON binds and validates the request body, writing the error response
// itself when it returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
