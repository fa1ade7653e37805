// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAccessDenied     = "auth.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyRateLimited       = "request.rate_limited"
	KeyInternalError     = "error.internal"

	// Settlement error kinds
	KeyDuplicateCommission = "commission.duplicate"
	KeyInsufficientBalance = "payout.insufficient_balance"
	KeyPaymentFailure      = "payout.payment_failed"
	KeyPayoutInFlight      = "payout.in_flight"
	KeyDisputeConflict     = "dispute.conflict"
	KeyStatusConflict      = "settlement.status_conflict"
	KeyNotFound            = "resource.not_found"
	KeyInvalidRate         = "commission.invalid_rate"
	KeyInvalidAmount       = "settlement.invalid_amount"
	KeyVendorIneligible    = "vendor.ineligible"
)
