// internal/services/helpers_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/database"
	"github.com/javajoker/vendor-settlement/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var baseTime = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

// seedRecord writes a ledger record directly with the given net commission.
func seedRecord(t *testing.T, db *gorm.DB, vendorID, orderID, net string, status models.CommissionStatus, txDate time.Time) models.CommissionRecord {
	t.Helper()

	n := dec(net)
	record := models.CommissionRecord{
		OrderID:          orderID,
		VendorID:         vendorID,
		GrossAmount:      n.Mul(decimal.NewFromInt(10)),
		CommissionRate:   dec("10"),
		RateType:         models.RateTypePercentage,
		PlatformFeeRate:  decimal.Zero,
		VATRate:          decimal.Zero,
		CommissionAmount: n,
		PlatformFee:      decimal.Zero,
		VATAmount:        decimal.Zero,
		NetCommission:    n,
		Status:           status,
		TransactionDate:  txDate,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func seedVendor(t *testing.T, db *gorm.DB, id string, method models.PaymentMethod, details models.JSONB) models.Vendor {
	t.Helper()

	vendor := models.Vendor{
		ID:              id,
		Name:            "Vendor " + id,
		Email:           id + "@vendors.test",
		Status:          models.VendorStatusActive,
		PayoutMethod:    method,
		PaymentDetails:  details,
		PayoutFrequency: models.PayoutFrequencyWeekly,
	}
	require.NoError(t, db.Create(&vendor).Error)
	return vendor
}

func reloadRecord(t *testing.T, db *gorm.DB, id uuid.UUID) models.CommissionRecord {
	t.Helper()

	var record models.CommissionRecord
	require.NoError(t, db.First(&record, "id = ?", id).Error)
	return record
}

// stubRail records every instruction it receives and answers from fn.
type stubRail struct {
	mu    sync.Mutex
	calls []PaymentInstruction
	fn    func(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error)
}

func (r *stubRail) Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, instr)
	r.mu.Unlock()
	if r.fn == nil {
		return &PaymentResult{Reference: "REF-" + instr.PayoutID.String()[:8], ProcessedAt: time.Now()}, nil
	}
	return r.fn(ctx, instr)
}

func (r *stubRail) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) PutObject(ctx context.Context, key string, body []byte, contentType string) (*StoredObject, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
	return &StoredObject{Key: key, Location: "mem://" + key, Size: int64(len(body))}, nil
}

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []*gomail.Message
}

func (m *recordingMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *recordingMailer) sent() []*gomail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gomail.Message(nil), m.messages...)
}
