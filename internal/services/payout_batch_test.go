// internal/services/payout_batch_test.go
package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/javajoker/vendor-settlement/internal/models"
)

var bankDetails = models.JSONB{"account_number": "000123456", "account_name": "Vendor Ltd"}

func newTestGenerator(db *gorm.DB, minimum string) *PayoutBatchGenerator {
	g := NewPayoutBatchGenerator(db, NewCommissionLedger(db), NewVendorDirectory(db), "usd", dec(minimum), models.PayoutFrequencyWeekly)
	g.now = func() time.Time { return baseTime.AddDate(0, 0, 10) }
	return g
}

func TestSelectFIFO_StopsAtFirstOverflow(t *testing.T) {
	records := []models.CommissionRecord{
		{NetCommission: dec("200")},
		{NetCommission: dec("150")},
		{NetCommission: dec("300")},
		{NetCommission: dec("10")},
	}

	selected := SelectFIFO(records, dec("400"))
	assert.Len(t, selected, 2)
	assert.Equal(t, "350.00", SumNet(selected).StringFixed(2))

	assert.Empty(t, SelectFIFO(records, dec("100")))
	assert.Len(t, SelectFIFO(records, dec("660")), 4)
}

func TestSelectFIFO_FullBalanceTakesEveryRecord(t *testing.T) {
	records := []models.CommissionRecord{
		{NetCommission: dec("700")},
		{NetCommission: dec("-100")},
	}

	selected := SelectFIFO(records, SumNet(records))
	assert.Len(t, selected, 2)
	assert.Equal(t, "600.00", SumNet(selected).StringFixed(2))
}

func TestGenerate_PaysFullBalanceWithNegativeRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedVendor(t, db, "VN", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VN", "O1", "700", models.CommissionStatusCalculated, baseTime)
	seedRecord(t, db, "VN", "O2", "-100", models.CommissionStatusCalculated, baseTime.Add(time.Hour))

	resp, err := newTestGenerator(db, "500").Generate(ctx, GenerateBatchRequest{})
	require.NoError(t, err)

	require.Len(t, resp.Vendors, 1)
	assert.Equal(t, VendorOutcomeCreated, resp.Vendors[0].Outcome, resp.Vendors[0].Reason)
	assert.Equal(t, 1, resp.PayoutsCreated)
	assert.Equal(t, "600.00", resp.TotalAmount.StringFixed(2))
}

func TestGenerate_ExcludesVendorBelowMinimum(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedVendor(t, db, "VA", models.PaymentMethodBankTransfer, bankDetails)
	for i, amount := range []string{"200", "150", "100"} {
		seedRecord(t, db, "VA", uuid.NewString(), amount, models.CommissionStatusCalculated, baseTime.Add(time.Duration(i)*time.Hour))
	}

	resp, err := newTestGenerator(db, "500").Generate(ctx, GenerateBatchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.PayoutsCreated)
	assert.Equal(t, models.BatchStatusEmpty, resp.Status)
	require.Len(t, resp.Vendors, 1)
	assert.Equal(t, VendorOutcomeSkipped, resp.Vendors[0].Outcome)
	assert.Equal(t, "below_minimum", resp.Vendors[0].Reason)
	assert.Equal(t, "450.00", resp.Vendors[0].Balance.StringFixed(2))

	var payouts int64
	db.Model(&models.PayoutRecord{}).Count(&payouts)
	assert.Zero(t, payouts)
}

func TestGenerate_CreatesPayoutForEligibleVendor(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedVendor(t, db, "VB", models.PaymentMethodBankTransfer, bankDetails)
	var ids []uuid.UUID
	for i, amount := range []string{"250", "200", "150"} {
		r := seedRecord(t, db, "VB", uuid.NewString(), amount, models.CommissionStatusCalculated, baseTime.Add(time.Duration(i)*time.Hour))
		ids = append(ids, r.ID)
	}

	resp, err := newTestGenerator(db, "500").Generate(ctx, GenerateBatchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.PayoutsCreated)
	assert.Equal(t, models.BatchStatusCompleted, resp.Status)
	assert.Equal(t, "600.00", resp.TotalAmount.StringFixed(2))
	assert.NotEmpty(t, resp.BatchID)

	require.Len(t, resp.Vendors, 1)
	require.NotNil(t, resp.Vendors[0].PayoutID)
	payoutID := *resp.Vendors[0].PayoutID

	var payout models.PayoutRecord
	require.NoError(t, db.First(&payout, "id = ?", payoutID).Error)
	assert.Equal(t, models.PayoutStatusPending, payout.Status)
	assert.Equal(t, "600.00", payout.PayoutAmount.StringFixed(2))
	assert.Equal(t, 3, payout.CommissionCount)
	assert.Equal(t, "USD", payout.Currency)

	for _, id := range ids {
		r := reloadRecord(t, db, id)
		assert.Equal(t, models.CommissionStatusPendingPayout, r.Status)
		require.NotNil(t, r.PayoutID)
		assert.Equal(t, payoutID, *r.PayoutID)
	}

	var batch models.PayoutBatch
	require.NoError(t, db.First(&batch, "batch_id = ?", resp.BatchID).Error)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 1, batch.TotalPayouts)
}

func TestGenerate_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedVendor(t, db, "VB", models.PaymentMethodBankTransfer, bankDetails)
	r := seedRecord(t, db, "VB", "O1", "600", models.CommissionStatusCalculated, baseTime)

	resp, err := newTestGenerator(db, "500").Generate(ctx, GenerateBatchRequest{DryRun: true})
	require.NoError(t, err)

	assert.True(t, resp.DryRun)
	assert.Empty(t, resp.BatchID)
	assert.Equal(t, 1, resp.EligibleVendors)
	assert.Equal(t, VendorOutcomeEligible, resp.Vendors[0].Outcome)
	assert.Equal(t, "600.00", resp.TotalAmount.StringFixed(2))

	assert.Equal(t, models.CommissionStatusCalculated, reloadRecord(t, db, r.ID).Status)
	var batches int64
	db.Model(&models.PayoutBatch{}).Count(&batches)
	assert.Zero(t, batches)
}

func TestGenerate_SkipsIneligibleVendors(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	suspended := seedVendor(t, db, "VS", models.PaymentMethodBankTransfer, bankDetails)
	require.NoError(t, db.Model(&suspended).Update("status", models.VendorStatusSuspended).Error)
	seedRecord(t, db, "VS", "O1", "600", models.CommissionStatusCalculated, baseTime)

	seedRecord(t, db, "VX", "O2", "600", models.CommissionStatusCalculated, baseTime)

	seedVendor(t, db, "VR", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VR", "O3", "600", models.CommissionStatusCalculated, baseTime)
	g := newTestGenerator(db, "500")
	recent := models.PayoutRecord{
		VendorID:      "VR",
		PayoutAmount:  dec("100"),
		Currency:      "USD",
		PaymentMethod: models.PaymentMethodBankTransfer,
		Status:        models.PayoutStatusCompleted,
		ScheduledDate: g.now().Add(-48 * time.Hour),
	}
	require.NoError(t, db.Create(&recent).Error)

	resp, err := g.Generate(ctx, GenerateBatchRequest{})
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, v := range resp.Vendors {
		reasons[v.VendorID] = v.Reason
	}
	assert.Equal(t, "vendor_suspended", reasons["VS"])
	assert.Equal(t, "vendor_not_found", reasons["VX"])
	assert.Equal(t, "not_due", reasons["VR"])
	assert.Zero(t, resp.PayoutsCreated)

	// on_demand ignores the last payout date.
	resp, err = g.Generate(ctx, GenerateBatchRequest{VendorIDs: []string{"VR"}, PayoutFrequency: models.PayoutFrequencyOnDemand})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.PayoutsCreated)
}

// The test database has a single connection, so these runs interleave
// between statements rather than in parallel. The stale-read case is
// covered by TestClaimRecords_StaleSelectionLosesRace.
func TestGenerate_ConcurrentRunsNeverDoubleClaim(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	for _, v := range []string{"V1", "V2", "V3"} {
		seedVendor(t, db, v, models.PaymentMethodBankTransfer, bankDetails)
		for i := 0; i < 4; i++ {
			seedRecord(t, db, v, uuid.NewString(), "150", models.CommissionStatusCalculated, baseTime.Add(time.Duration(i)*time.Minute))
		}
	}

	const runs = 4
	var wg sync.WaitGroup
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = newTestGenerator(db, "500").Generate(ctx, GenerateBatchRequest{PayoutFrequency: models.PayoutFrequencyOnDemand})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var records []models.CommissionRecord
	require.NoError(t, db.Find(&records).Error)
	for _, r := range records {
		assert.Equal(t, models.CommissionStatusPendingPayout, r.Status)
	}

	var payouts []models.PayoutRecord
	require.NoError(t, db.Find(&payouts).Error)
	assert.Len(t, payouts, 3)
	for _, p := range payouts {
		var claimed []models.CommissionRecord
		require.NoError(t, db.Where("payout_id = ?", p.ID).Find(&claimed).Error)
		assert.True(t, SumNet(claimed).Equal(p.PayoutAmount))
		assert.Len(t, claimed, p.CommissionCount)
	}
}

func TestClaimRecords_StaleSelectionLosesRace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	g := newTestGenerator(db, "0")
	seedVendor(t, db, "VR", models.PaymentMethodBankTransfer, bankDetails)
	a := seedRecord(t, db, "VR", "O1", "100", models.CommissionStatusCalculated, baseTime)
	b := seedRecord(t, db, "VR", "O2", "100", models.CommissionStatusCalculated, baseTime.Add(time.Hour))

	// Both claimers read the same calculated records before either writes.
	first, err := g.ledger.QueryCalculated(ctx, []string{"VR"})
	require.NoError(t, err)
	second, err := g.ledger.QueryCalculated(ctx, []string{"VR"})
	require.NoError(t, err)
	require.Len(t, second, 2)

	claim := func(records []models.CommissionRecord) (*models.PayoutRecord, error) {
		return g.ClaimRecords(ctx, ClaimRequest{
			VendorID:       "VR",
			PaymentMethod:  models.PaymentMethodBankTransfer,
			PaymentDetails: bankDetails,
			Records:        records,
		})
	}

	winner, err := claim(first[:1])
	require.NoError(t, err)

	// second overlaps the winner on record a, so the whole claim rolls back.
	_, err = claim(second)
	assert.True(t, IsKind(err, ErrKindStatusConflict))

	assert.Equal(t, winner.ID, *reloadRecord(t, db, a.ID).PayoutID)
	untouched := reloadRecord(t, db, b.ID)
	assert.Equal(t, models.CommissionStatusCalculated, untouched.Status)
	assert.Nil(t, untouched.PayoutID)

	var payouts int64
	db.Model(&models.PayoutRecord{}).Count(&payouts)
	assert.Equal(t, int64(1), payouts)
}

func TestClaimRecords_RejectsEmptyAndInvalidMethod(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	g := newTestGenerator(db, "0")

	_, err := g.ClaimRecords(ctx, ClaimRequest{VendorID: "V1", PaymentMethod: models.PaymentMethodBankTransfer})
	assert.True(t, IsKind(err, ErrKindInvalidAmount))

	r := seedRecord(t, db, "V1", "O1", "10", models.CommissionStatusCalculated, baseTime)
	_, err = g.ClaimRecords(ctx, ClaimRequest{VendorID: "V1", PaymentMethod: "cheque", Records: []models.CommissionRecord{r}})
	assert.True(t, IsKind(err, ErrKindVendorIneligible))
}

func TestSchedule_ProjectsNextPayout(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	g := newTestGenerator(db, "500")
	now := g.now()

	seedVendor(t, db, "VA", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VA", "O1", "700", models.CommissionStatusCalculated, baseTime)

	seedVendor(t, db, "VB", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VB", "O2", "100", models.CommissionStatusCalculated, baseTime)
	require.NoError(t, db.Create(&models.PayoutRecord{
		VendorID:      "VB",
		PayoutAmount:  dec("50"),
		Currency:      "USD",
		PaymentMethod: models.PaymentMethodBankTransfer,
		Status:        models.PayoutStatusCompleted,
		ScheduledDate: now.Add(-24 * time.Hour),
	}).Error)

	resp, err := g.Schedule(ctx, PayoutScheduleRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Payouts, 2)

	assert.Equal(t, "VA", resp.Payouts[0].VendorID)
	assert.True(t, resp.Payouts[0].NextPayoutDate.Equal(now))
	assert.True(t, resp.Payouts[0].MeetsMinimum)

	assert.Equal(t, "VB", resp.Payouts[1].VendorID)
	assert.True(t, resp.Payouts[1].NextPayoutDate.Equal(now.Add(6*24*time.Hour)))
	assert.False(t, resp.Payouts[1].MeetsMinimum)
	assert.Equal(t, "700.00", resp.TotalAmount.StringFixed(2))

	_, err = g.Schedule(ctx, PayoutScheduleRequest{VendorID: "missing"})
	assert.True(t, IsKind(err, ErrKindNotFound))
}

func TestSchedule_ProjectsNextPayoutPerVendor(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	g := newTestGenerator(db, "500")

	seedVendor(t, db, "VA", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VA", "O1", "700", models.CommissionStatusCalculated, baseTime)
	require.NoError(t, db.Create(&models.PayoutRecord{
		VendorID:      "VA",
		PayoutAmount:  dec("100"),
		Currency:      "USD",
		PaymentMethod: models.PaymentMethodBankTransfer,
		Status:        models.PayoutStatusCompleted,
		ScheduledDate: g.now().Add(-48 * time.Hour),
	}).Error)

	seedVendor(t, db, "VB", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VB", "O2", "400", models.CommissionStatusCalculated, baseTime)
	seedRecord(t, db, "VB", "O3", "200", models.CommissionStatusCalculated, baseTime.Add(time.Hour))

	seedVendor(t, db, "VC", models.PaymentMethodBankTransfer, bankDetails)
	seedRecord(t, db, "VC", "O4", "100", models.CommissionStatusCalculated, baseTime)

	resp, err := g.Schedule(ctx, PayoutScheduleRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Payouts, 3)

	byVendor := map[string]ScheduledPayout{}
	for _, p := range resp.Payouts {
		byVendor[p.VendorID] = p
	}

	now := g.now().UTC()
	assert.Equal(t, now.Add(5*24*time.Hour), byVendor["VA"].NextPayoutDate)
	require.NotNil(t, byVendor["VA"].LastPayoutDate)
	assert.True(t, byVendor["VA"].MeetsMinimum)

	assert.Equal(t, now, byVendor["VB"].NextPayoutDate)
	assert.Equal(t, "600.00", byVendor["VB"].EstimatedAmount.StringFixed(2))
	assert.Equal(t, 2, byVendor["VB"].CommissionCount)

	assert.False(t, byVendor["VC"].MeetsMinimum)
	assert.Equal(t, "1300.00", resp.TotalAmount.StringFixed(2))
	assert.Equal(t, "VA", resp.Payouts[2].VendorID)

	// VA is due after the horizon.
	resp, err = g.Schedule(ctx, PayoutScheduleRequest{DaysAhead: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Payouts, 2)
	assert.Equal(t, "600.00", resp.TotalAmount.StringFixed(2))

	_, err = g.Schedule(ctx, PayoutScheduleRequest{VendorID: "VZ"})
	assert.True(t, IsKind(err, ErrKindNotFound))
}
