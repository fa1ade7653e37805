// internal/services/payment_rails.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/javajoker/vendor-settlement/internal/models"
)

// PaymentInstruction is what a rail needs to move money. PayoutID doubles as
// the idempotency key: a rail must not pay the same payout twice.
type PaymentInstruction struct {
	PayoutID uuid.UUID
	VendorID string
	Method   models.PaymentMethod
	Details  models.JSONB
	Amount   decimal.Decimal
	Currency string
}

type PaymentResult struct {
	Reference   string    `json:"reference"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PaymentRail moves money for one payment method.
type PaymentRail interface {
	Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error)
}

// RailRegistry dispatches an instruction to the rail registered for its method.
type RailRegistry struct {
	rails map[models.PaymentMethod]PaymentRail
}

func NewRailRegistry() *RailRegistry {
	return &RailRegistry{rails: make(map[models.PaymentMethod]PaymentRail)}
}

func (r *RailRegistry) Register(method models.PaymentMethod, rail PaymentRail) {
	r.rails[method] = rail
}

func (r *RailRegistry) Supports(method models.PaymentMethod) bool {
	_, ok := r.rails[method]
	return ok
}

func (r *RailRegistry) Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error) {
	rail, ok := r.rails[instr.Method]
	if !ok {
		return nil, fmt.Errorf("no payment rail configured for method %q", instr.Method)
	}
	return rail.Execute(ctx, instr)
}

// Bank transfer

// BankTransferRail hands transfers to the bank as instruction documents in
// object storage. The object key is derived from the payout id, so a retry
// overwrites the same instruction instead of creating a second one.
type BankTransferRail struct {
	storage ObjectStore
}

func NewBankTransferRail(storage ObjectStore) *BankTransferRail {
	return &BankTransferRail{storage: storage}
}

type bankTransferInstruction struct {
	PayoutID      string `json:"payout_id"`
	VendorID      string `json:"vendor_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code,omitempty"`
	Reference     string `json:"reference"`
	CreatedAt     string `json:"created_at"`
}

func (r *BankTransferRail) Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error) {
	accountNumber := instr.Details.String("account_number")
	if accountNumber == "" {
		accountNumber = instr.Details.String("iban")
	}
	if accountNumber == "" {
		return nil, errors.New("bank transfer requires account_number or iban in payment details")
	}

	now := time.Now().UTC()
	reference := "BT-" + strings.ToUpper(strings.ReplaceAll(instr.PayoutID.String(), "-", "")[:12])

	doc := bankTransferInstruction{
		PayoutID:      instr.PayoutID.String(),
		VendorID:      instr.VendorID,
		Amount:        instr.Amount.StringFixed(2),
		Currency:      strings.ToUpper(instr.Currency),
		AccountName:   instr.Details.String("account_name"),
		AccountNumber: accountNumber,
		BankCode:      instr.Details.String("bank_code"),
		Reference:     reference,
		CreatedAt:     now.Format(time.RFC3339),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer instruction: %w", err)
	}

	key := fmt.Sprintf("bank-transfers/%s.json", instr.PayoutID)
	if _, err := r.storage.PutObject(ctx, key, body, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to submit transfer instruction: %w", err)
	}

	return &PaymentResult{Reference: reference, ProcessedAt: now}, nil
}

// Mobile wallet

// WalletRail pays out through a mobile-wallet JSON API using channel/secret
// header authentication.
type WalletRail struct {
	baseURL string
	channel string
	secret  string
	client  *http.Client
}

func NewWalletRail(baseURL, channel, secret string, client *http.Client) *WalletRail {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WalletRail{
		baseURL: strings.TrimRight(baseURL, "/"),
		channel: channel,
		secret:  secret,
		client:  client,
	}
}

type walletPayoutRequest struct {
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	PhoneNumber string      `json:"phoneNumber"`
	ExternalID  string      `json:"externalId"`
}

type walletResponse struct {
	Status bool                   `json:"status"`
	Code   interface{}            `json:"code"`
	Dialog interface{}            `json:"dialog"`
	Data   map[string]interface{} `json:"data"`
}

func (r *WalletRail) Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error) {
	if r.baseURL == "" || r.channel == "" || r.secret == "" {
		return nil, errors.New("mobile wallet rail is not configured")
	}

	phone := instr.Details.String("phone_number")
	if phone == "" {
		return nil, errors.New("mobile wallet payout requires phone_number in payment details")
	}

	payload, err := json.Marshal(walletPayoutRequest{
		Amount:      json.Number(instr.Amount.StringFixed(2)),
		Currency:    strings.ToUpper(instr.Currency),
		PhoneNumber: phone,
		ExternalID:  instr.PayoutID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/payment/payout", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("channel", r.channel)
	req.Header.Set("secret", r.secret)
	req.Header.Set("Idempotency-Key", instr.PayoutID.String())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var walletResp walletResponse
	if err := json.Unmarshal(body, &walletResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if !walletResp.Status {
		code := "unknown"
		if walletResp.Code != nil {
			code = fmt.Sprintf("%v", walletResp.Code)
		}
		if dialog, ok := walletResp.Dialog.(map[string]interface{}); ok {
			if msg, ok := dialog["message"].(string); ok {
				return nil, fmt.Errorf("wallet API error: %s - %s", code, msg)
			}
		}
		return nil, fmt.Errorf("wallet API error: %s", code)
	}

	reference, _ := walletResp.Data["transactionId"].(string)
	if reference == "" {
		return nil, errors.New("wallet API response missing transactionId")
	}

	logrus.WithFields(logrus.Fields{
		"payout_id": instr.PayoutID,
		"reference": reference,
	}).Debug("Wallet payout accepted")

	return &PaymentResult{Reference: reference, ProcessedAt: time.Now().UTC()}, nil
}

// Stripe Connect

// StripeRail transfers funds to a vendor's connected Stripe account.
type StripeRail struct {
	client   *transfer.Client
	currency string
}

// NewStripeRail builds a rail on the given backend; a nil backend uses the
// default Stripe API backend.
func NewStripeRail(secretKey, currency string, backend stripe.Backend) *StripeRail {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeRail{
		client:   &transfer.Client{B: backend, Key: secretKey},
		currency: currency,
	}
}

func (r *StripeRail) Execute(ctx context.Context, instr PaymentInstruction) (*PaymentResult, error) {
	if r.client.Key == "" {
		return nil, errors.New("stripe rail is not configured")
	}

	destination := instr.Details.String("stripe_account_id")
	if destination == "" {
		return nil, errors.New("stripe payout requires stripe_account_id in payment details")
	}

	currency := instr.Currency
	if currency == "" {
		currency = r.currency
	}

	// Stripe amounts are in the smallest currency unit.
	amountInCents := instr.Amount.Shift(2).RoundBank(0).IntPart()

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amountInCents),
		Currency:      stripe.String(strings.ToLower(currency)),
		Destination:   stripe.String(destination),
		TransferGroup: stripe.String(instr.PayoutID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey(instr.PayoutID.String())
	params.AddMetadata("payout_id", instr.PayoutID.String())
	params.AddMetadata("vendor_id", instr.VendorID)

	tr, err := r.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	processedAt := time.Now().UTC()
	if tr.Created > 0 {
		processedAt = time.Unix(tr.Created, 0).UTC()
	}

	return &PaymentResult{Reference: tr.ID, ProcessedAt: processedAt}, nil
}
