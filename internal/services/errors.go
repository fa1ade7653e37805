// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrKindDuplicateCommission ErrorKind = "DUPLICATE_COMMISSION"
	ErrKindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	ErrKindPaymentFailure      ErrorKind = "PAYMENT_FAILURE"
	ErrKindDisputeConflict     ErrorKind = "DISPUTE_CONFLICT"
	ErrKindStatusConflict      ErrorKind = "STATUS_CONFLICT"
	ErrKindPayoutInFlight      ErrorKind = "PAYOUT_IN_FLIGHT"
	ErrKindNotFound            ErrorKind = "NOT_FOUND"
	ErrKindInvalidRate         ErrorKind = "INVALID_RATE"
	ErrKindInvalidAmount       ErrorKind = "INVALID_AMOUNT"
	ErrKindValidation          ErrorKind = "VALIDATION_ERROR"
	ErrKindVendorIneligible    ErrorKind = "VENDOR_INELIGIBLE"
)

// SettlementError is the structured error returned by every settlement
// operation. Handlers translate Kind into a status code.
type SettlementError struct {
	Kind    ErrorKind              `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *SettlementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

func (e *SettlementError) WithDetail(key string, value interface{}) *SettlementError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind ErrorKind, format string, args ...interface{}) *SettlementError {
	return &SettlementError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ErrDuplicateCommission(orderID, vendorID string) *SettlementError {
	return newError(ErrKindDuplicateCommission, "commission already recorded for order %s and vendor %s", orderID, vendorID).
		WithDetail("order_id", orderID).
		WithDetail("vendor_id", vendorID)
}

func ErrInsufficientBalance(vendorID string, requested, available interface{}) *SettlementError {
	return newError(ErrKindInsufficientBalance, "requested payout exceeds calculated balance for vendor %s", vendorID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

func ErrPaymentFailure(reason string) *SettlementError {
	return newError(ErrKindPaymentFailure, "%s", reason).WithDetail("failure_reason", reason)
}

func ErrNotFound(resource, id string) *SettlementError {
	return newError(ErrKindNotFound, "%s %s not found", resource, id)
}

func ErrStatusConflict(format string, args ...interface{}) *SettlementError {
	return newError(ErrKindStatusConflict, format, args...)
}

// KindOf returns the kind of a settlement error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var se *SettlementError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
