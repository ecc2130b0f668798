package utils

import "fmt"

const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeOptimization = "OPTIMIZATION_ERROR"
	ErrCodeInvalidData  = "INVALID_DATA"
	ErrCodeSchema       = "SCHEMA_ERROR"
	ErrCodeSuperseded   = "RUN_SUPERSEDED"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError builds an error payload; only the first detail is kept.
func NewAppError(code, message string, details ...string) *AppError {
	err := &AppError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}
