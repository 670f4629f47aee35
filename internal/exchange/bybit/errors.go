package bybit

import (
	stderrors "errors"
	"fmt"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

// BybitError represents a Bybit API error with additional context
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *BybitError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey     = 10003
	ErrCodeRateLimitExceeded = 10006
	ErrCodeSymbolNotFound    = 10001
)

// IsRateLimitError checks if the error is due to rate limiting
func IsRateLimitError(err error) bool {
	var bybitErr *BybitError
	if stderrors.As(err, &bybitErr) {
		return bybitErr.Code == ErrCodeRateLimitExceeded
	}
	return false
}

// ParseAPIError turns a non-zero return code into a BybitError.
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &BybitError{Code: retCode, Message: retMsg}
}

// wrap tags err as an exchange failure of operation.
func wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(err, errs.CategoryExchange, "bybit", operation, operation+" failed")
}
