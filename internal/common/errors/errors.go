// Package errors provides standardized error handling for the discovery pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Collection errors
	ErrCodeDataUnavailable     ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderQueryFailed ErrorCode = "PROVIDER_QUERY_FAILED"

	// Scoring errors
	ErrCodeWeightValidationFailed ErrorCode = "WEIGHT_VALIDATION_FAILED"

	// Briefing errors
	ErrCodeLLMTimeout            ErrorCode = "LLM_TIMEOUT"
	ErrCodeBriefGenerationFailed ErrorCode = "BRIEF_GENERATION_FAILED"

	// Run-level errors
	ErrCodeSuccessFractionBelowMinimum ErrorCode = "SUCCESS_FRACTION_BELOW_MINIMUM"
	ErrCodeConsistencyCheckFailed      ErrorCode = "CONSISTENCY_CHECK_FAILED"
	ErrCodeRunNotFound                 ErrorCode = "RUN_NOT_FOUND"
	ErrCodeInvalidRequest              ErrorCode = "INVALID_REQUEST"

	// Integration errors
	ErrCodeCRMPushFailed    ErrorCode = "CRM_PUSH_FAILED"
	ErrCodeStorageFailed    ErrorCode = "STORAGE_FAILED"
	ErrCodeFeedbackRejected ErrorCode = "FEEDBACK_REJECTED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var other *StandardError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewDataUnavailableError marks a brand whose every provider section failed.
// Non-retryable at the run level: the candidate is excluded, not the run.
func NewDataUnavailableError(brandID string, err error) *StandardError {
	details := fmt.Sprintf("brandId: %s", brandID)
	if err != nil {
		details = fmt.Sprintf("brandId: %s, error: %s", brandID, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   "All market-intelligence providers failed for brand",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable provider timeout error.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   "Market-intelligence provider timeout",
		Details:   fmt.Sprintf("provider: %s", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderQueryFailedError creates a retryable provider query error.
func NewProviderQueryFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderQueryFailed,
		Message:   "Market-intelligence provider query failed",
		Details:   fmt.Sprintf("provider: %s, error: %s", provider, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeightValidationFailedError creates a non-retryable weight vector error.
func NewWeightValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightValidationFailed,
		Message:   "Weight profile failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError(backend string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language-model backend timeout",
		Details:   fmt.Sprintf("backend: %s", backend),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBriefGenerationFailedError marks one candidate's brief as failed after
// primary and fallback backends were both exhausted.
func NewBriefGenerationFailedError(candidateID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBriefGenerationFailed,
		Message:   "Brief generation failed after fallback",
		Details:   fmt.Sprintf("candidateId: %s, error: %s", candidateID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSuccessFractionError creates the run-fatal error raised when too few
// candidates produced usable profiles.
func NewSuccessFractionError(succeeded, total int, minFraction float64) *StandardError {
	return &StandardError{
		Code:    ErrCodeSuccessFractionBelowMinimum,
		Message: "Candidate success fraction below configured minimum",
		Details: fmt.Sprintf("succeeded: %d, total: %d, minFraction: %.2f", succeeded, total, minFraction),
		Metadata: map[string]interface{}{
			"succeeded":   succeeded,
			"total":       total,
			"minFraction": minFraction,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConsistencyCheckFailedError creates the run-fatal pre-DONE check error.
func NewConsistencyCheckFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConsistencyCheckFailed,
		Message:   "Run failed pre-completion consistency check",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunNotFoundError creates a non-retryable lookup error.
func NewRunNotFoundError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunNotFound,
		Message:   "Workflow run not found",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Discovery request failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMPushFailedError creates a CRM delivery error. Pushes are logged and
// never synchronously retried, so the error is marked non-retryable.
func NewCRMPushFailedError(brandID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMPushFailed,
		Message:   "CRM placement push failed",
		Details:   fmt.Sprintf("brandId: %s, error: %s", brandID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageFailedError creates a retryable persistence error.
func NewStorageFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailed,
		Message:   "Pipeline storage operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFeedbackRejectedError creates a non-retryable feedback validation error.
func NewFeedbackRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeedbackRejected,
		Message:   "Outcome feedback rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the bounded retry budget for a code. No code retries
// without bound.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderQueryFailed:
		return 2 // per-provider budget inside one collection call

	case ErrCodeStorageFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1 // one attempt against the fallback backend

	default:
		return 0 // business/validation errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "DATA"):
		return "COLLECTION"
	case strings.Contains(codeStr, "WEIGHT"):
		return "SCORING"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "BRIEF"):
		return "BRIEFING"
	case strings.Contains(codeStr, "CRM") || strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "FEEDBACK"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "REQUEST") || strings.Contains(codeStr, "RUN") ||
		strings.Contains(codeStr, "CONSISTENCY") || strings.Contains(codeStr, "FRACTION"):
		return "RUN"
	default:
		return "OTHER"
	}
}
