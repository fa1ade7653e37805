// internal/router/router_test.go
package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/config"
	"github.com/javajoker/vendor-settlement/internal/database"
	"github.com/javajoker/vendor-settlement/internal/i18n"
	"github.com/javajoker/vendor-settlement/internal/models"
	"github.com/javajoker/vendor-settlement/internal/services"
	"github.com/javajoker/vendor-settlement/internal/utils"
)

var clientSeq atomic.Int32

type SettlementAPITestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	token  string
}

func (suite *SettlementAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize())
}

func (suite *SettlementAPITestSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	suite.Require().NoError(err)
	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	suite.Require().NoError(database.RunMigrations(db))
	suite.db = db

	cfg := &config.Config{
		JWT: config.JWTConfig{SecretKey: "test-secret", Issuer: "settlement-test"},
		AWS: config.AWSConfig{LocalPath: suite.T().TempDir()},
		Commission: config.CommissionConfig{
			DefaultBaseRate:      10,
			DefaultMaximumAmount: 10000,
			RoundingMode:         "half_even",
		},
		Payment: config.PaymentConfig{
			Currency:         "USD",
			MinimumPayout:    50,
			DefaultFrequency: "weekly",
			ExecutionTimeout: 5 * time.Second,
		},
	}

	container, err := services.NewContainer(db, cfg, nil)
	suite.Require().NoError(err)
	suite.router = Initialize(db, cfg, container)

	suite.token = suite.tokenFor(utils.RoleFinance)
}

func (suite *SettlementAPITestSuite) tokenFor(role string) string {
	token, err := utils.GenerateJWT("user-1", "ops@platform.test", role, time.Hour)
	suite.Require().NoError(err)
	return token
}

func (suite *SettlementAPITestSuite) request(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	n := clientSeq.Add(1)
	req.RemoteAddr = fmt.Sprintf("10.1.%d.%d:40000", n/250, n%250+1)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func errorCode(response map[string]interface{}) string {
	errObj, _ := response["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}

func decimalField(data map[string]interface{}, key string) decimal.Decimal {
	switch v := data[key].(type) {
	case string:
		return decimal.RequireFromString(v)
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

func (suite *SettlementAPITestSuite) calculate(orderID, vendorID string, amount int) map[string]interface{} {
	w, response := suite.request("POST", "/v1/commissions/calculate", suite.token, map[string]interface{}{
		"order_id":     orderID,
		"vendor_id":    vendorID,
		"order_amount": amount,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return response["data"].(map[string]interface{})
}

func (suite *SettlementAPITestSuite) TestHealth() {
	w, response := suite.request("GET", "/health", "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "healthy", response["status"])
}

func (suite *SettlementAPITestSuite) TestAuthentication() {
	w, response := suite.request("GET", "/v1/commissions", "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.False(suite.T(), response["success"].(bool))
	assert.Equal(suite.T(), "UNAUTHORIZED", errorCode(response))

	w, _ = suite.request("GET", "/v1/commissions", "not-a-jwt", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w, response = suite.request("GET", "/v1/commissions", suite.tokenFor("vendor"), nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "FORBIDDEN", errorCode(response))

	w, _ = suite.request("GET", "/v1/commissions", suite.tokenFor(utils.RoleAdmin), nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *SettlementAPITestSuite) TestCalculateAndDuplicate() {
	data := suite.calculate("ORD-100", "VA", 1000)
	assert.True(suite.T(), decimalField(data, "net_commission").Equal(decimal.NewFromInt(100)))
	assert.Equal(suite.T(), "calculated", data["status"])
	assert.Equal(suite.T(), "default", data["rate_source"])

	w, response := suite.request("POST", "/v1/commissions/calculate", suite.token, map[string]interface{}{
		"order_id":     "ORD-100",
		"vendor_id":    "VA",
		"order_amount": 1000,
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "DUPLICATE_COMMISSION", errorCode(response))

	w, response = suite.request("GET", "/v1/commissions/"+data["commission_id"].(string), suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "ORD-100", response["data"].(map[string]interface{})["order_id"])

	w, response = suite.request("GET", "/v1/commissions?vendor_id=VA", suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	pagination := response["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(suite.T(), float64(1), pagination["total"])
}

func (suite *SettlementAPITestSuite) TestCalculateValidation() {
	w, response := suite.request("POST", "/v1/commissions/calculate", suite.token, map[string]interface{}{
		"order_id":     "ORD 1",
		"vendor_id":    "VA",
		"order_amount": 10,
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", errorCode(response))

	w, response = suite.request("POST", "/v1/commissions/calculate", suite.token, map[string]interface{}{
		"order_id":     "ORD-2",
		"vendor_id":    "VA",
		"order_amount": -5,
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "INVALID_AMOUNT", errorCode(response))

	w, _ = suite.request("GET", "/v1/commissions/not-a-uuid", suite.token, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w, response = suite.request("GET", "/v1/commissions/"+uuid.NewString(), suite.token, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "NOT_FOUND", errorCode(response))
}

func (suite *SettlementAPITestSuite) TestDisputeActions() {
	commission := suite.calculate("ORD-200", "VA", 300)

	w, response := suite.request("POST", "/v1/disputes", suite.token, map[string]interface{}{
		"action": "create",
		"dispute_data": map[string]interface{}{
			"commission_id":   commission["commission_id"],
			"reason":          "order refunded",
			"disputed_amount": "10",
		},
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	dispute := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "open", dispute["status"])

	w, response = suite.request("POST", "/v1/disputes", suite.token, map[string]interface{}{
		"action":       "create",
		"dispute_data": map[string]interface{}{"commission_id": commission["commission_id"], "reason": "again"},
	})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "DISPUTE_CONFLICT", errorCode(response))

	w, response = suite.request("POST", "/v1/disputes", suite.token, map[string]interface{}{
		"action": "resolve",
		"dispute_data": map[string]interface{}{
			"dispute_id":        dispute["id"],
			"resolution":        "adjust",
			"adjustment_amount": "-10",
		},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(suite.T(), "resolved", response["data"].(map[string]interface{})["status"])

	w, response = suite.request("POST", "/v1/disputes", suite.token, map[string]interface{}{
		"action":       "list",
		"dispute_data": map[string]interface{}{"vendor_id": "VA"},
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"], 1)

	w, response = suite.request("POST", "/v1/disputes", suite.token, map[string]interface{}{"action": "escalate"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", errorCode(response))
}

func (suite *SettlementAPITestSuite) TestProcessPayout() {
	suite.Require().NoError(suite.db.Create(&models.Vendor{
		ID:              "VB",
		Name:            "Vendor B",
		Email:           "vb@vendors.test",
		Status:          models.VendorStatusActive,
		PayoutMethod:    models.PaymentMethodBankTransfer,
		PaymentDetails:  models.JSONB{"account_number": "000123456", "account_name": "Vendor B"},
		PayoutFrequency: models.PayoutFrequencyWeekly,
	}).Error)
	suite.calculate("ORD-300", "VB", 2500)
	suite.calculate("ORD-301", "VB", 2000)

	w, response := suite.request("POST", "/v1/payouts/process", suite.token, map[string]interface{}{
		"vendor_id":     "VB",
		"payout_amount": "900",
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Equal(suite.T(), "INSUFFICIENT_BALANCE", errorCode(response))

	w, response = suite.request("POST", "/v1/payouts/process", suite.token, map[string]interface{}{
		"vendor_id":     "VB",
		"payout_amount": "450",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "completed", data["status"])
	assert.Equal(suite.T(), float64(2), data["commissions_paid"])
	assert.Contains(suite.T(), data["payment_reference"], "BT-")

	w, response = suite.request("GET", "/v1/payouts/"+data["payout_id"].(string), suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "completed", response["data"].(map[string]interface{})["status"])

	w, response = suite.request("GET", "/v1/payouts?vendor_id=VB&status=completed", suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"], 1)

	w, _ = suite.request("GET", "/v1/payouts?status=bogus", suite.token, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w, response = suite.request("GET", "/v1/payouts/schedule?vendor_id=VB", suite.token, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	schedule := response["data"].(map[string]interface{})
	suite.Require().Len(schedule["payouts"], 1)
	assert.NotNil(suite.T(), schedule["payouts"].([]interface{})[0].(map[string]interface{})["last_payout_date"])

	w, response = suite.request("POST", "/v1/payouts/"+data["payout_id"].(string)+"/release", suite.token, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "STATUS_CONFLICT", errorCode(response))

	w, response = suite.request("POST", "/v1/payouts/process", suite.token, map[string]interface{}{
		"vendor_id":     "nobody",
		"payout_amount": "10",
	})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "NOT_FOUND", errorCode(response))
}

func (suite *SettlementAPITestSuite) TestBatchDryRunAndReconciliation() {
	suite.calculate("ORD-400", "VC", 1000)

	w, response := suite.request("POST", "/v1/payouts/batches", suite.token, map[string]interface{}{"dry_run": true})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(suite.T(), true, response["data"].(map[string]interface{})["dry_run"])

	w, response = suite.request("POST", "/v1/reconciliations", suite.token, map[string]interface{}{"period": "7d"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), float64(1), data["vendors_checked"])
	assert.Equal(suite.T(), float64(0), data["discrepancies"])

	w, response = suite.request("GET", "/v1/reconciliations?vendor_id=VC", suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), response["data"], 1)

	w, response = suite.request("GET", "/v1/reconciliations?vendor_id=VC&status=discrepancy", suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	pagination := response["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(suite.T(), float64(0), pagination["total"])

	for _, path := range []string{"/v1/reconciliations?status=late", "/v1/commissions?status=late"} {
		w, response = suite.request("GET", path, suite.token, nil)
		assert.Equal(suite.T(), http.StatusBadRequest, w.Code, path)
		assert.Equal(suite.T(), "BAD_REQUEST", errorCode(response), path)
	}
}

func TestSettlementAPISuite(t *testing.T) {
	suite.Run(t, new(SettlementAPITestSuite))
}
