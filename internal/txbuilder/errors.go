package txbuilder

import (
	"errors"
	"fmt"
)

// Code identifies a validation failure. Validation errors are never retried;
// they surface to the caller with a human-readable reason.
type Code string

const (
	CodeInvalidAddress         Code = "invalid_address"
	CodeAssetNotFound          Code = "asset_not_found"
	CodeInvalidAmount          Code = "invalid_amount"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeInsufficientCollateral Code = "insufficient_collateral"
	CodeExcessiveRepay         Code = "excessive_repay"
)

// ValidationError reports why a transaction intent was rejected.
type ValidationError struct {
	Code   Code
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("txbuilder: %s: %s", e.Code, e.Reason)
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func validationErrorf(code Code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
