package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory classifies a failure for recovery-policy purposes
type ErrorCategory string

const (
	CategoryNetwork            ErrorCategory = "network"
	CategoryContentUnavailable ErrorCategory = "content_unavailable"
	CategoryRateLimited        ErrorCategory = "rate_limited"
	CategoryValidation         ErrorCategory = "validation"
	CategorySystem             ErrorCategory = "system"
)

// Severity indicates how urgently a surfaced error needs attention
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ErrorContext is created at the point of failure and never mutated afterward.
// It gives the caller enough to render actionable guidance without knowing
// the extraction pipeline internals.
type ErrorContext struct {
	Operation       string        `json:"operation"`
	URL             string        `json:"url"`
	Category        ErrorCategory `json:"category"`
	Severity        Severity      `json:"severity"`
	SuggestedAction string        `json:"suggested_action"`
	Detail          string        `json:"detail"`
	Timestamp       time.Time     `json:"timestamp"`
}

// ClassifiedError wraps an underlying error with its classification context
type ClassifiedError struct {
	Context ErrorContext
	// RetryAfter is set for rate-limit errors that carry a wait hint
	RetryAfter time.Duration
	Cause      error
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Context.Operation, e.Context.URL, e.Context.Category, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Context.Operation, e.Context.URL, e.Context.Category, e.Context.Detail)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NewClassifiedError builds a classified error for the given failure
func NewClassifiedError(op, url string, category ErrorCategory, cause error) *ClassifiedError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &ClassifiedError{
		Context: ErrorContext{
			Operation:       op,
			URL:             url,
			Category:        category,
			Severity:        severityFor(category),
			SuggestedAction: suggestedActionFor(category),
			Detail:          detail,
			Timestamp:       time.Now(),
		},
		Cause: cause,
	}
}

// NewRateLimitError builds a rate-limit error carrying a retry-after hint
func NewRateLimitError(op, url string, retryAfter time.Duration, cause error) *ClassifiedError {
	err := NewClassifiedError(op, url, CategoryRateLimited, cause)
	err.RetryAfter = retryAfter
	return err
}

func severityFor(category ErrorCategory) Severity {
	switch category {
	case CategoryValidation:
		return SeverityWarning
	case CategorySystem:
		return SeverityCritical
	default:
		return SeverityError
	}
}

func suggestedActionFor(category ErrorCategory) string {
	switch category {
	case CategoryNetwork:
		return "check your connection and try again"
	case CategoryContentUnavailable:
		return "the content is private, deleted or blocked in your region"
	case CategoryRateLimited:
		return "the platform is throttling requests, wait before retrying"
	case CategoryValidation:
		return "check the URL and options"
	case CategorySystem:
		return "check disk space and system resources"
	default:
		return "try again later"
	}
}

// CategoryOf extracts the category from a classified error chain.
// Unclassified errors default to network, the only category that is safe
// to retry.
func CategoryOf(err error) ErrorCategory {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Context.Category
	}
	return CategoryNetwork
}

// RetryAfterOf extracts the retry-after hint from an error chain, if any
func RetryAfterOf(err error) time.Duration {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}

// NotSupportedError is returned when no registered platform matches a URL.
// It is never retried.
type NotSupportedError struct {
	URL string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("no platform handler supports URL: %s", e.URL)
}
