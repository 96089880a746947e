package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifiedError_ContextPopulated(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewClassifiedError("get_video_info", "https://x.com/u/status/1", CategoryNetwork, cause)

	assert.Equal(t, "get_video_info", err.Context.Operation)
	assert.Equal(t, CategoryNetwork, err.Context.Category)
	assert.Equal(t, SeverityError, err.Context.Severity)
	assert.NotEmpty(t, err.Context.SuggestedAction)
	assert.Equal(t, "connection refused", err.Context.Detail)
	assert.False(t, err.Context.Timestamp.IsZero())
	assert.ErrorIs(t, err, cause)
}

func TestSeverityByCategory(t *testing.T) {
	assert.Equal(t, SeverityWarning, NewClassifiedError("op", "u", CategoryValidation, nil).Context.Severity)
	assert.Equal(t, SeverityCritical, NewClassifiedError("op", "u", CategorySystem, nil).Context.Severity)
	assert.Equal(t, SeverityError, NewClassifiedError("op", "u", CategoryContentUnavailable, nil).Context.Severity)
}

func TestCategoryOf(t *testing.T) {
	err := NewClassifiedError("op", "u", CategoryContentUnavailable, errors.New("gone"))
	assert.Equal(t, CategoryContentUnavailable, CategoryOf(err))

	// Survives wrapping
	assert.Equal(t, CategoryContentUnavailable, CategoryOf(fmt.Errorf("outer: %w", err)))

	// Unclassified errors default to network
	assert.Equal(t, CategoryNetwork, CategoryOf(errors.New("mystery")))
}

func TestRetryAfterOf(t *testing.T) {
	err := NewRateLimitError("op", "u", 30*time.Second, errors.New("429"))
	assert.Equal(t, 30*time.Second, RetryAfterOf(err))
	assert.Equal(t, CategoryRateLimited, err.Context.Category)

	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("plain")))
}

func TestNotSupportedError(t *testing.T) {
	err := &NotSupportedError{URL: "https://vimeo.com/1"}
	require.Contains(t, err.Error(), "https://vimeo.com/1")

	var nse *NotSupportedError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &nse))
}
