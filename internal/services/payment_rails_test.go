// internal/services/payment_rails_test.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/vendor-settlement/internal/models"
)

func instruction(method models.PaymentMethod, details models.JSONB) PaymentInstruction {
	return PaymentInstruction{
		PayoutID: uuid.MustParse("6f1c2b9e-4d3a-4c1e-9a55-0b7e8d2f1a30"),
		VendorID: "VB",
		Method:   method,
		Details:  details,
		Amount:   dec("600"),
		Currency: "usd",
	}
}

func TestBankTransferRail_WritesInstruction(t *testing.T) {
	store := newMemoryStore()
	rail := NewBankTransferRail(store)
	instr := instruction(models.PaymentMethodBankTransfer, bankDetails)

	result, err := rail.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.Equal(t, "BT-6F1C2B9E4D3A", result.Reference)

	body, ok := store.objects["bank-transfers/"+instr.PayoutID.String()+".json"]
	require.True(t, ok)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "600.00", doc["amount"])
	assert.Equal(t, "USD", doc["currency"])
	assert.Equal(t, "000123456", doc["account_number"])
	assert.Equal(t, result.Reference, doc["reference"])

	// executing again overwrites the same instruction
	_, err = rail.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.Len(t, store.keys(), 1)
}

func TestBankTransferRail_Errors(t *testing.T) {
	store := newMemoryStore()
	rail := NewBankTransferRail(store)

	_, err := rail.Execute(context.Background(), instruction(models.PaymentMethodBankTransfer, models.JSONB{}))
	assert.Error(t, err)

	store.err = errors.New("bucket unavailable")
	_, err = rail.Execute(context.Background(), instruction(models.PaymentMethodBankTransfer, bankDetails))
	assert.ErrorContains(t, err, "bucket unavailable")
}

func TestWalletRail_Success(t *testing.T) {
	var got walletPayoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/payout", r.URL.Path)
		assert.Equal(t, "settlements", r.Header.Get("channel"))
		assert.Equal(t, "s3cret", r.Header.Get("secret"))
		assert.Equal(t, "6f1c2b9e-4d3a-4c1e-9a55-0b7e8d2f1a30", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":true,"code":200,"data":{"transactionId":"WAL-991"}}`)
	}))
	defer srv.Close()

	rail := NewWalletRail(srv.URL+"/", "settlements", "s3cret", srv.Client())
	result, err := rail.Execute(context.Background(), instruction(models.PaymentMethodMobileWallet, models.JSONB{"phone_number": "+85512345678"}))
	require.NoError(t, err)

	assert.Equal(t, "WAL-991", result.Reference)
	assert.Equal(t, "600.00", got.Amount.String())
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "+85512345678", got.PhoneNumber)
}

func TestWalletRail_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status":false,"code":"E_LIMIT","dialog":{"message":"daily limit reached"}}`)
	}))
	defer srv.Close()

	rail := NewWalletRail(srv.URL, "settlements", "s3cret", srv.Client())
	_, err := rail.Execute(context.Background(), instruction(models.PaymentMethodMobileWallet, models.JSONB{"phone_number": "+85512345678"}))
	assert.EqualError(t, err, "wallet API error: E_LIMIT - daily limit reached")

	_, err = rail.Execute(context.Background(), instruction(models.PaymentMethodMobileWallet, models.JSONB{}))
	assert.Error(t, err)

	_, err = NewWalletRail("", "", "", nil).Execute(context.Background(), instruction(models.PaymentMethodMobileWallet, nil))
	assert.EqualError(t, err, "mobile wallet rail is not configured")
}

func TestStripeRail_CreatesTransfer(t *testing.T) {
	var form url.Values
	var idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		idempotencyKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"tr_1Abc","object":"transfer","amount":60000,"currency":"usd","created":1788264000}`)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	rail := NewStripeRail("sk_test_123", "usd", backend)

	instr := instruction(models.PaymentMethodStripeConnect, models.JSONB{"stripe_account_id": "acct_123"})
	result, err := rail.Execute(context.Background(), instr)
	require.NoError(t, err)

	assert.Equal(t, "tr_1Abc", result.Reference)
	assert.Equal(t, int64(1788264000), result.ProcessedAt.Unix())
	assert.Equal(t, instr.PayoutID.String(), idempotencyKey)
	assert.Equal(t, "60000", form.Get("amount"))
	assert.Equal(t, "acct_123", form.Get("destination"))
	assert.Equal(t, "VB", form.Get("metadata[vendor_id]"))

	// sub-cent amounts round to the nearest cent
	instr.Amount = dec("123.456")
	_, err = rail.Execute(context.Background(), instr)
	require.NoError(t, err)
	assert.Equal(t, "12346", form.Get("amount"))

	_, err = rail.Execute(context.Background(), instruction(models.PaymentMethodStripeConnect, models.JSONB{}))
	assert.True(t, strings.Contains(err.Error(), "stripe_account_id"))
}

func TestRailRegistry_UnknownMethod(t *testing.T) {
	registry := NewRailRegistry()
	registry.Register(models.PaymentMethodBankTransfer, &stubRail{})

	assert.True(t, registry.Supports(models.PaymentMethodBankTransfer))
	assert.False(t, registry.Supports(models.PaymentMethodMobileWallet))

	_, err := registry.Execute(context.Background(), instruction(models.PaymentMethodMobileWallet, nil))
	assert.Error(t, err)
}
