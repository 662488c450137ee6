package domain

import (
	"errors"
	"fmt"
)

// Failure classes drive what the pipeline does with an error: admission and
// input errors surface to the caller and are never retried, transient and
// contract errors are retried with backoff before the job goes terminal.
var (
	// Admission errors (quota gate).
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrQuotaExceeded        = errors.New("monthly candidate quota exceeded")

	// Input errors (text extraction).
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("document could not be parsed")

	// Transient judgment-service errors (timeout, rate limit, 5xx).
	ErrJudgeUnavailable = errors.New("judgment service unavailable")

	// Contract-violation errors (response parsed but does not satisfy the
	// structured contract). Retried on the assumption a re-ask may succeed.
	ErrInvalidModelResponse = errors.New("invalid judgment service response")
	ErrInvalidRubric        = errors.New("invalid rubric")
)

// Retryable reports whether the pipeline may re-ask for this failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrJudgeUnavailable) ||
		errors.Is(err, ErrInvalidModelResponse) ||
		errors.Is(err, ErrInvalidRubric)
}

// FailureDetail renders the human-readable reason stored on a terminally
// failed job. Callers never see raw provider errors; wrapping keeps the
// sentinel visible while the message stays short.
func FailureDetail(stage string, err error) string {
	return fmt.Sprintf("%s failed: %v", stage, err)
}
